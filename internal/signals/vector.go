package signals

import (
	"hash/fnv"

	"github.com/feedfuse/feedfuse/pkg/models"
)

// signalVector derives a fixed-length feature vector from a signal using
// the hashing trick: each token (signal type, content id, session id)
// contributes a signed spike at a hashed index, scaled by the signal's
// weighted impact. Deterministic, so EMA updates are reproducible.
func signalVector(s models.Signal, dim int) []float64 {
	vec := make([]float64, dim)
	impact := models.SignalWeight(s.Type) * s.Intensity

	tokens := []string{string(s.Type)}
	if s.ContentID != "" {
		tokens = append(tokens, "content:"+s.ContentID)
	}
	if s.SessionID != "" {
		tokens = append(tokens, "session:"+s.SessionID)
	}
	if category, ok := s.Metadata["category"].(string); ok && category != "" {
		tokens = append(tokens, "category:"+category)
	}

	for _, token := range tokens {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		idx := int(sum % uint64(dim))
		sign := 1.0
		if sum&(1<<63) != 0 {
			sign = -1.0
		}
		vec[idx] += sign * impact
	}
	return vec
}
