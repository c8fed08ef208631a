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

// Package collocation computes Lagrange–Radau collocation points and the
// associated differentiation matrices on the unit interval.
package collocation

import (
	"fmt"
	"math"
	"sync"

	"github.com/golang/groupcache/lru"
	"gonum.org/v1/gonum/mat"
)

// JacobiGQ returns the n+1 Gauss quadrature points of the Jacobi
// polynomial P_{n+1}^{(alpha,beta)} on [-1, 1], in ascending order,
// computed as the eigenvalues of the symmetric tridiagonal Jacobi matrix.
func JacobiGQ(alpha, beta float64, n int) ([]float64, error) {
	if n == 0 {
		return []float64{-(alpha - beta) / (alpha + beta + 2)}, nil
	}
	h1 := make([]float64, n+1)
	for i := range h1 {
		h1[i] = 2*float64(i) + alpha + beta
	}
	sym := mat.NewSymDense(n+1, nil)
	fac := beta*beta - alpha*alpha
	for i := 0; i <= n; i++ {
		d := fac / (h1[i] * (h1[i] + 2))
		if i == 0 && alpha+beta < 1e-15 {
			d = 0
		}
		sym.SetSym(i, i, d)
	}
	for i := 0; i < n; i++ {
		ip1 := float64(i + 1)
		v := 2 / (h1[i] + 2) * math.Sqrt(ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/(h1[i]+1)/(h1[i]+3))
		sym.SetSym(i, i+1, v)
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(sym, false); !ok {
		return nil, fmt.Errorf("collocation: Jacobi eigenvalue decomposition failed")
	}
	return eig.Values(nil), nil
}

// RadauPoints returns the k right Radau points on (0, 1]. The last point
// is always 1.
func RadauPoints(k int) ([]float64, error) {
	if k < 1 {
		return nil, fmt.Errorf("collocation: need at least one collocation point, got %d", k)
	}
	o := make([]float64, k)
	o[k-1] = 1
	if k == 1 {
		return o, nil
	}
	// The interior points are the zeros of P_{k-1}^{(1,0)}.
	x, err := JacobiGQ(1, 0, k-2)
	if err != nil {
		return nil, err
	}
	for i, v := range x {
		o[i] = (v + 1) / 2
	}
	return o, nil
}

// Element holds the nodes of a Radau collocation element on [0, 1] and the
// differentiation matrices of the Lagrange basis through them. Nodes[0]
// is 0 and the remaining nodes are the Radau points.
type Element struct {
	Nodes []float64

	// D[i][j] is the derivative of the jth Lagrange polynomial at node i.
	D *mat.Dense

	// D2 is the second-derivative matrix, D·D.
	D2 *mat.Dense
}

// Points returns the number of collocation points of e (excluding the
// left node).
func (e *Element) Points() int { return len(e.Nodes) - 1 }

var (
	cacheMx sync.Mutex
	cache   = lru.New(16)
)

// NewElement returns the Radau element with k collocation points. Elements
// are cached, and callers must not modify the returned value.
func NewElement(k int) (*Element, error) {
	cacheMx.Lock()
	defer cacheMx.Unlock()
	if e, ok := cache.Get(k); ok {
		return e.(*Element), nil
	}
	pts, err := RadauPoints(k)
	if err != nil {
		return nil, err
	}
	nodes := append([]float64{0}, pts...)
	e := &Element{
		Nodes: nodes,
		D:     DerivativeMatrix(nodes),
	}
	e.D2 = mat.NewDense(len(nodes), len(nodes), nil)
	e.D2.Mul(e.D, e.D)
	cache.Add(k, e)
	return e, nil
}

// DerivativeMatrix returns the differentiation matrix of the Lagrange
// basis through the given distinct nodes, using barycentric weights.
func DerivativeMatrix(nodes []float64) *mat.Dense {
	n := len(nodes)
	w := make([]float64, n)
	for j := range nodes {
		w[j] = 1
		for m := range nodes {
			if m != j {
				w[j] *= nodes[j] - nodes[m]
			}
		}
		w[j] = 1 / w[j]
	}
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		var diag float64
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			v := w[j] / w[i] / (nodes[i] - nodes[j])
			d.Set(i, j, v)
			diag -= v
		}
		d.Set(i, i, diag)
	}
	return d
}

// Lagrange returns the values at x of the Lagrange basis polynomials
// through nodes.
func Lagrange(nodes []float64, x float64) []float64 {
	o := make([]float64, len(nodes))
	for j := range nodes {
		o[j] = 1
		for m := range nodes {
			if m != j {
				o[j] *= (x - nodes[m]) / (nodes[j] - nodes[m])
			}
		}
	}
	return o
}
