/*
Copyright © 2021 the CATS authors.
This file is part of CATS.

CATS is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

CATS is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with CATS.  If not, see <http://www.gnu.org/licenses/>.
*/

package collocation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRadauPoints(t *testing.T) {
	tests := []struct {
		k    int
		want []float64
	}{
		{k: 1, want: []float64{1}},
		{k: 2, want: []float64{1. / 3, 1}},
		{k: 3, want: []float64{0.155051025721682, 0.644948974278318, 1}},
	}
	for _, test := range tests {
		pts, err := RadauPoints(test.k)
		require.NoError(t, err)
		assert.InDeltaSlice(t, test.want, pts, 1e-12, "k=%d", test.k)
	}
	_, err := RadauPoints(0)
	assert.Error(t, err)
}

func TestDerivativeMatrixExactForPolynomials(t *testing.T) {
	e, err := NewElement(3)
	require.NoError(t, err)
	// The basis has degree 3, so cubic derivatives are exact.
	f := func(x float64) float64 { return 2*x*x*x - x + 0.5 }
	df := func(x float64) float64 { return 6*x*x - 1 }
	d2f := func(x float64) float64 { return 12 * x }
	n := len(e.Nodes)
	for i := 0; i < n; i++ {
		var d, d2 float64
		for j := 0; j < n; j++ {
			d += e.D.At(i, j) * f(e.Nodes[j])
			d2 += e.D2.At(i, j) * f(e.Nodes[j])
		}
		assert.InDelta(t, df(e.Nodes[i]), d, 1e-10)
		assert.InDelta(t, d2f(e.Nodes[i]), d2, 1e-9)
	}
}

func TestElementCache(t *testing.T) {
	a, err := NewElement(2)
	require.NoError(t, err)
	b, err := NewElement(2)
	require.NoError(t, err)
	assert.True(t, a == b)
	assert.Equal(t, 2, a.Points())
}

func TestLagrange(t *testing.T) {
	nodes := []float64{0, 0.25, 1}
	l := Lagrange(nodes, 0.25)
	assert.InDeltaSlice(t, []float64{0, 1, 0}, l, 1e-15)
	var sum float64
	for _, v := range Lagrange(nodes, 0.7) {
		sum += v
	}
	assert.False(t, math.Abs(sum-1) > 1e-14)
}
