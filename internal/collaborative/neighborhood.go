package collaborative

import (
	"fmt"
	"math"
)

// neighborhoodModel keeps user-user and item-item cosine similarity
// computed from the same interaction matrix.
type neighborhoodModel struct {
	matrix   *Matrix
	userSims [][]float64
	itemSims [][]float64
}

func trainNeighborhood(m *Matrix) (*neighborhoodModel, error) {
	if m == nil || len(m.Users) == 0 || len(m.Items) == 0 {
		return nil, fmt.Errorf("neighborhood: empty interaction matrix")
	}

	userSims := cosineRows(m.Rows, len(m.Users))

	// Transpose into column maps for item-item similarity.
	cols := make([]map[int]float64, len(m.Items))
	for i := range cols {
		cols[i] = make(map[int]float64)
	}
	for u, row := range m.Rows {
		for i, w := range row {
			cols[i][u] = w
		}
	}
	itemSims := cosineRows(cols, len(m.Items))

	return &neighborhoodModel{matrix: m, userSims: userSims, itemSims: itemSims}, nil
}

func cosineRows(rows []map[int]float64, n int) [][]float64 {
	norms := make([]float64, n)
	for i, row := range rows {
		var sum float64
		for _, w := range row {
			sum += w * w
		}
		norms[i] = math.Sqrt(sum)
	}

	sims := make([][]float64, n)
	for i := range sims {
		sims[i] = make([]float64, n)
		sims[i][i] = 1
	}

	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			if norms[a] == 0 || norms[b] == 0 {
				continue
			}
			var dot float64
			small, large := rows[a], rows[b]
			if len(large) < len(small) {
				small, large = large, small
			}
			for idx, w := range small {
				if w2, ok := large[idx]; ok {
					dot += w * w2
				}
			}
			sim := dot / (norms[a] * norms[b])
			sims[a][b] = sim
			sims[b][a] = sim
		}
	}
	return sims
}

// scores accumulates, for every item, the similarity mass of the top-k
// most similar users that interacted with it.
func (nm *neighborhoodModel) scores(userIdx, neighbors int) []float64 {
	const minSimilarity = 0.1

	type neighbor struct {
		idx int
		sim float64
	}

	candidates := make([]neighbor, 0, len(nm.userSims[userIdx]))
	for other, sim := range nm.userSims[userIdx] {
		if other == userIdx || sim < minSimilarity {
			continue
		}
		candidates = append(candidates, neighbor{idx: other, sim: sim})
	}

	// Partial selection sort for the top-k neighbors.
	if neighbors > len(candidates) {
		neighbors = len(candidates)
	}
	for i := 0; i < neighbors; i++ {
		best := i
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].sim > candidates[best].sim {
				best = j
			}
		}
		candidates[i], candidates[best] = candidates[best], candidates[i]
	}

	out := make([]float64, len(nm.matrix.Items))
	for _, nb := range candidates[:neighbors] {
		for itemIdx := range nm.matrix.Rows[nb.idx] {
			out[itemIdx] += nb.sim
		}
	}
	return out
}
