package collaborative

import (
	"fmt"
	"math"
	"math/rand"
)

// bprModel is a latent-factor model trained with a Bayesian personalized
// ranking loss over implicit interactions: for sampled (user, positive,
// negative) triples the model learns to score the positive item higher.
type bprModel struct {
	userFactors [][]float64
	itemFactors [][]float64
}

func trainBPR(m *Matrix, factors, epochs int, learningRate, regularization float64, rng *rand.Rand) (*bprModel, error) {
	if m == nil || len(m.Users) == 0 || len(m.Items) == 0 {
		return nil, fmt.Errorf("bpr: empty interaction matrix")
	}

	numUsers, numItems := len(m.Users), len(m.Items)
	k := factors
	if k > numItems {
		k = numItems
	}
	if k < 1 {
		return nil, fmt.Errorf("bpr: matrix too small for factorization")
	}

	// Users with at least one positive observation.
	activeUsers := make([]int, 0, numUsers)
	positives := make([][]int, numUsers)
	for u, row := range m.Rows {
		for i := range row {
			positives[u] = append(positives[u], i)
		}
		if len(positives[u]) > 0 && len(positives[u]) < numItems {
			activeUsers = append(activeUsers, u)
		}
	}
	if len(activeUsers) == 0 {
		return nil, fmt.Errorf("bpr: no usable training triples")
	}

	model := &bprModel{
		userFactors: randomFactors(numUsers, k, rng),
		itemFactors: randomFactors(numItems, k, rng),
	}

	samplesPerEpoch := len(activeUsers) * 8
	for epoch := 0; epoch < epochs; epoch++ {
		for s := 0; s < samplesPerEpoch; s++ {
			u := activeUsers[rng.Intn(len(activeUsers))]
			pos := positives[u][rng.Intn(len(positives[u]))]

			neg := rng.Intn(numItems)
			for attempts := 0; m.Seen(u, neg) && attempts < 10; attempts++ {
				neg = rng.Intn(numItems)
			}
			if m.Seen(u, neg) {
				continue
			}

			model.update(u, pos, neg, learningRate, regularization)
		}
	}

	return model, nil
}

func randomFactors(n, k int, rng *rand.Rand) [][]float64 {
	factors := make([][]float64, n)
	for i := range factors {
		factors[i] = make([]float64, k)
		for f := range factors[i] {
			factors[i][f] = rng.NormFloat64() * 0.01
		}
	}
	return factors
}

func (b *bprModel) update(u, pos, neg int, lr, reg float64) {
	xuij := b.score(u, pos) - b.score(u, neg)
	sigmoid := 1.0 / (1.0 + math.Exp(xuij))

	pu := b.userFactors[u]
	qp := b.itemFactors[pos]
	qn := b.itemFactors[neg]

	for f := range pu {
		gradU := sigmoid*(qp[f]-qn[f]) - reg*pu[f]
		gradP := sigmoid*pu[f] - reg*qp[f]
		gradN := -sigmoid*pu[f] - reg*qn[f]

		pu[f] += lr * gradU
		qp[f] += lr * gradP
		qn[f] += lr * gradN
	}
}

func (b *bprModel) score(u, i int) float64 {
	var dot float64
	for f := range b.userFactors[u] {
		dot += b.userFactors[u][f] * b.itemFactors[i][f]
	}
	return dot
}

func (b *bprModel) scores(userIdx int) []float64 {
	out := make([]float64, len(b.itemFactors))
	for i := range b.itemFactors {
		out[i] = b.score(userIdx, i)
	}
	return out
}
