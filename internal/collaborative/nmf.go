package collaborative

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// nmfModel holds non-negative user/item latent factors fitted with
// multiplicative updates (Lee-Seung). Scores are Wᵤ·Hᵢ.
type nmfModel struct {
	userFactors *mat.Dense // m×k
	itemFactors *mat.Dense // n×k
}

const nmfEpsilon = 1e-9

func trainNMF(v *mat.Dense, factors, iterations int, rng *rand.Rand) (*nmfModel, error) {
	if v == nil {
		return nil, fmt.Errorf("nmf: empty interaction matrix")
	}
	m, n := v.Dims()
	k := factors
	if k > m {
		k = m
	}
	if k > n {
		k = n
	}
	if k < 1 {
		return nil, fmt.Errorf("nmf: matrix too small for factorization")
	}

	w := randomNonNegative(m, k, rng)
	h := randomNonNegative(k, n, rng)

	var (
		wt, ht   mat.Dense
		denH, wh mat.Dense
		denW     mat.Dense
	)

	for iter := 0; iter < iterations; iter++ {
		// H <- H ∘ (WᵀV) / (WᵀWH + ε)
		wt.Mul(w.T(), v)
		wh.Mul(w, h)
		denH.Mul(w.T(), &wh)
		updateMultiplicative(h, &wt, &denH)

		// W <- W ∘ (VHᵀ) / (WHHᵀ + ε)
		ht.Mul(v, h.T())
		wh.Mul(w, h)
		denW.Mul(&wh, h.T())
		updateMultiplicative(w, &ht, &denW)
	}

	itemFactors := mat.DenseCopyOf(h.T())
	return &nmfModel{userFactors: w, itemFactors: itemFactors}, nil
}

func randomNonNegative(r, c int, rng *rand.Rand) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.Float64()*0.1 + 0.01
	}
	return mat.NewDense(r, c, data)
}

func updateMultiplicative(target, numerator, denominator *mat.Dense) {
	r, c := target.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			target.Set(i, j, target.At(i, j)*numerator.At(i, j)/(denominator.At(i, j)+nmfEpsilon))
		}
	}
}

// scores returns this user's predicted weight for every item.
func (m *nmfModel) scores(userIdx int) []float64 {
	n, k := m.itemFactors.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var dot float64
		for f := 0; f < k; f++ {
			dot += m.userFactors.At(userIdx, f) * m.itemFactors.At(i, f)
		}
		out[i] = dot
	}
	return out
}
