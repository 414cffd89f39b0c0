package pe

import (
	"math"
)

// EntropyCalculator accumulates byte frequencies for a Shannon entropy
// estimate. It is an io.Writer so it can sit behind io.Copy.
type EntropyCalculator struct {
	size        int
	frequencies [256]uint64
}

func (e *EntropyCalculator) Write(p []byte) (n int, err error) {
	e.size += len(p)
	for _, v := range p {
		e.frequencies[v]++
	}
	return len(p), err
}

func (e *EntropyCalculator) Sum() (entropy float64) {
	if e.size == 0 {
		return
	}

	for _, p := range e.frequencies {
		if p > 0 {
			freq := float64(p) / float64(e.size)
			entropy += freq * math.Log2(freq)
		}
	}
	return -entropy
}

// Entropy returns the Shannon entropy of data in bits per byte.
func Entropy(data []byte) float64 {
	var e EntropyCalculator
	_, _ = e.Write(data)
	return e.Sum()
}

func Max(x, y uint32) uint32 {
	if x < y {
		return y
	}
	return x
}

func Min(values []uint32) uint32 {
	min := values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
	}
	return min
}
