package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Record is a stored enrollment as returned by the backends.
type Record struct {
	UserID    string
	Vector    []float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EncodeVector packs v as little-endian float64s.
func EncodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(x))
	}
	return buf
}

func DecodeVector(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 8", len(b))
	}
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return v, nil
}
