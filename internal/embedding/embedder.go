// Package embedding holds the sparse vector type shared by the index and its stores.
package embedding

import "math"

// SparseVector is a vector stored as ascending column indices and their values.
type SparseVector struct {
	Indices []int32
	Values  []float64
}

// Len returns the number of non-zero entries.
func (v SparseVector) Len() int { return len(v.Indices) }

// IsZero reports whether the vector has no non-zero entries.
func (v SparseVector) IsZero() bool { return len(v.Indices) == 0 }

// Dot computes the inner product of two sparse vectors.
// Both vectors must have ascending indices.
func (v SparseVector) Dot(o SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(o.Indices) {
		switch {
		case v.Indices[i] == o.Indices[j]:
			sum += v.Values[i] * o.Values[j]
			i++
			j++
		case v.Indices[i] < o.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Norm returns the Euclidean length of the vector.
func (v SparseVector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}
