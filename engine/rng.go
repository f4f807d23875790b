package engine

import (
	"encoding/binary"

	"lukechampine.com/frand"
)

const (
	rngBufferSize = 1024
	rngRounds     = 12
)

// newRNG returns a ChaCha-backed generator. A zero seed draws from the
// system entropy pool; any other seed is expanded to 256 bits so that the
// same seed always yields the same move order.
func newRNG(seed uint64) *frand.RNG {
	if seed == 0 {
		return frand.New()
	}
	rng := splitmix64{state: seed}
	var key [32]byte
	for i := 0; i < len(key); i += 8 {
		binary.LittleEndian.PutUint64(key[i:], rng.next())
	}
	return frand.NewCustom(key[:], rngBufferSize, rngRounds)
}

type splitmix64 struct {
	state uint64
}

func (s *splitmix64) next() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
