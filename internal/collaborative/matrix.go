package collaborative

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/feedfuse/feedfuse/internal/config"
	"github.com/feedfuse/feedfuse/pkg/models"
)

// InteractionLog accumulates weighted (user, item) observations and
// materializes a sparse interaction matrix on demand. The log is the
// source of truth; the matrix is a derived, rebuildable view. Row and
// column indices are stable for the lifetime of the process once assigned.
type InteractionLog struct {
	mu           sync.RWMutex
	interactions []models.Interaction
	userIndex    map[string]int
	itemIndex    map[string]int
	users        []string
	items        []string

	cfg *config.EnsembleConfig
	now func() time.Time
}

func NewInteractionLog(cfg *config.EnsembleConfig) *InteractionLog {
	return &InteractionLog{
		userIndex: make(map[string]int),
		itemIndex: make(map[string]int),
		cfg:       cfg,
		now:       time.Now,
	}
}

// Add appends an interaction and assigns indices for unseen users/items.
func (l *InteractionLog) Add(in models.Interaction) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.interactions = append(l.interactions, in)

	if _, ok := l.userIndex[in.UserID]; !ok {
		l.userIndex[in.UserID] = len(l.users)
		l.users = append(l.users, in.UserID)
	}
	if _, ok := l.itemIndex[in.ItemID]; !ok {
		l.itemIndex[in.ItemID] = len(l.items)
		l.items = append(l.items, in.ItemID)
	}
}

// Weight converts an interaction into its matrix weight:
// base(type) · duration_factor · intensity · recency_factor. Long views are
// boosted up to the duration cap; very old interactions keep at least half
// their base weight so collaborative signal never fully evaporates.
func (l *InteractionLog) Weight(in models.Interaction, now time.Time) float64 {
	weight := models.SignalWeight(in.Type)

	if in.Type == models.SignalView && in.Duration > 0 {
		durationFactor := math.Min(in.Duration/60.0, l.cfg.MaxDurationBoost)
		weight *= 1.0 + durationFactor
	}

	weight *= in.Intensity

	hoursAgo := now.Sub(in.Timestamp).Hours()
	if hoursAgo < 0 {
		hoursAgo = 0
	}
	recency := math.Exp(-hoursAgo / l.cfg.RecencyHalfLife.Hours())
	weight *= 0.5 + 0.5*recency

	return weight
}

// Matrix is a sparse user×item weight matrix in row-map form, sized to the
// index assignments at build time.
type Matrix struct {
	Users []string
	Items []string
	Rows  []map[int]float64
	nnz   int
}

// Build materializes the sparse matrix from the current log contents.
func (l *InteractionLog) Build() *Matrix {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	m := &Matrix{
		Users: append([]string(nil), l.users...),
		Items: append([]string(nil), l.items...),
		Rows:  make([]map[int]float64, len(l.users)),
	}
	for i := range m.Rows {
		m.Rows[i] = make(map[int]float64)
	}

	for _, in := range l.interactions {
		u := l.userIndex[in.UserID]
		i := l.itemIndex[in.ItemID]
		if _, seen := m.Rows[u][i]; !seen {
			m.nnz++
		}
		m.Rows[u][i] += l.Weight(in, now)
	}

	return m
}

// UserIndex returns the stable row index for a user.
func (l *InteractionLog) UserIndex(userID string) (int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.userIndex[userID]
	return idx, ok
}

// UserInteractionCount returns the number of logged interactions for a user.
func (l *InteractionLog) UserInteractionCount(userID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for _, in := range l.interactions {
		if in.UserID == userID {
			count++
		}
	}
	return count
}

// Len returns the total number of logged interactions.
func (l *InteractionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.interactions)
}

// Prune drops interactions older than maxAge. Index assignments survive so
// matrix coordinates stay stable.
func (l *InteractionLog) Prune(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	kept := l.interactions[:0]
	removed := 0
	for _, in := range l.interactions {
		if in.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, in)
	}
	l.interactions = kept
	return removed
}

// NNZ returns the number of non-zero matrix cells.
func (m *Matrix) NNZ() int { return m.nnz }

// Dense converts the sparse matrix into a gonum dense matrix for the
// factorization algorithms.
func (m *Matrix) Dense() *mat.Dense {
	if len(m.Users) == 0 || len(m.Items) == 0 {
		return nil
	}
	d := mat.NewDense(len(m.Users), len(m.Items), nil)
	for u, row := range m.Rows {
		for i, w := range row {
			d.Set(u, i, w)
		}
	}
	return d
}

// Seen reports whether user u has any weight on item i.
func (m *Matrix) Seen(u, i int) bool {
	if u < 0 || u >= len(m.Rows) {
		return false
	}
	_, ok := m.Rows[u][i]
	return ok
}
