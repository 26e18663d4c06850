package collaborative

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// alsModel is an implicit-feedback alternating-least-squares factorization
// (Hu, Koren, Volinsky). Interaction weights become confidence values
// c = 1 + α·w over binary preferences.
type alsModel struct {
	userFactors *mat.Dense
	itemFactors *mat.Dense
}

const alsConfidenceAlpha = 40.0

func trainALS(m *Matrix, factors, iterations int, regularization float64, rng *rand.Rand) (*alsModel, error) {
	if m == nil || len(m.Users) == 0 || len(m.Items) == 0 {
		return nil, fmt.Errorf("als: empty interaction matrix")
	}

	numUsers, numItems := len(m.Users), len(m.Items)
	k := factors
	if k > numUsers {
		k = numUsers
	}
	if k > numItems {
		k = numItems
	}
	if k < 1 {
		return nil, fmt.Errorf("als: matrix too small for factorization")
	}

	x := randomNonNegative(numUsers, k, rng)
	y := randomNonNegative(numItems, k, rng)

	// Column maps for the item solve.
	cols := make([]map[int]float64, numItems)
	for i := range cols {
		cols[i] = make(map[int]float64)
	}
	for u, row := range m.Rows {
		for i, w := range row {
			cols[i][u] = w
		}
	}

	for iter := 0; iter < iterations; iter++ {
		if err := alsStep(x, y, m.Rows, k, regularization); err != nil {
			return nil, fmt.Errorf("als: user solve: %w", err)
		}
		if err := alsStep(y, x, cols, k, regularization); err != nil {
			return nil, fmt.Errorf("als: item solve: %w", err)
		}
	}

	return &alsModel{userFactors: x, itemFactors: y}, nil
}

// alsStep solves (YᵀY + Yᵀ(C−I)Y + λI)·x = Yᵀ·C·p for every row of target,
// where observed maps each target row to its weighted observations.
func alsStep(target, fixed *mat.Dense, observed []map[int]float64, k int, regularization float64) error {
	var yty mat.Dense
	yty.Mul(fixed.T(), fixed)

	for row := 0; row < len(observed); row++ {
		a := mat.DenseCopyOf(&yty)
		b := mat.NewVecDense(k, nil)

		for idx, w := range observed[row] {
			confidence := 1.0 + alsConfidenceAlpha*w
			yv := fixed.RawRowView(idx)
			for f1 := 0; f1 < k; f1++ {
				b.SetVec(f1, b.AtVec(f1)+confidence*yv[f1])
				for f2 := 0; f2 < k; f2++ {
					a.Set(f1, f2, a.At(f1, f2)+(confidence-1.0)*yv[f1]*yv[f2])
				}
			}
		}
		for f := 0; f < k; f++ {
			a.Set(f, f, a.At(f, f)+regularization)
		}

		var solution mat.VecDense
		if err := solution.SolveVec(a, b); err != nil {
			return err
		}
		for f := 0; f < k; f++ {
			target.Set(row, f, solution.AtVec(f))
		}
	}
	return nil
}

// scores returns predicted preferences for every item, excluding items the
// user has already interacted with.
func (a *alsModel) scores(userIdx int, m *Matrix) []float64 {
	n, k := a.itemFactors.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if m.Seen(userIdx, i) {
			continue
		}
		var dot float64
		for f := 0; f < k; f++ {
			dot += a.userFactors.At(userIdx, f) * a.itemFactors.At(i, f)
		}
		out[i] = dot
	}
	return out
}
