package sqlite

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeColumns encodes column indices as little-endian uint32 values.
func encodeColumns(cols []int32) []byte {
	b := make([]byte, len(cols)*4)
	for i, c := range cols {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(c))
	}
	return b
}

func decodeColumns(b []byte) ([]int32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid columns blob length %d (not multiple of 4)", len(b))
	}
	out := make([]int32, len(b)/4)
	for i := range out {
		v := binary.LittleEndian.Uint32(b[i*4:])
		if v > math.MaxInt32 {
			return nil, fmt.Errorf("column %d out of range", v)
		}
		out[i] = int32(v)
	}
	return out, nil
}

// encodeWeights encodes weights as little-endian IEEE 754 float64 values.
func encodeWeights(vals []float64) []byte {
	b := make([]byte, len(vals)*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

func decodeWeights(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("invalid weights blob length %d (not multiple of 8)", len(b))
	}
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out, nil
}
