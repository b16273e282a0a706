// Package dice implements the d6 success-pool mechanics used by the
// encounter engine.
//
// All server-side rolling is deterministic with respect to a seed so
// resolution paths can be replayed in tests; production callers seed from
// crypto/rand via NewSeed.
package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
)

// SuccessThreshold is the die face at or above which a d6 counts as a success.
const SuccessThreshold = 5

// ErrInvalidPool indicates a dice pool with a non-positive size.
var ErrInvalidPool = errors.New("dice pool must have at least one die")

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Roller produces d6 results from a seeded source.
type Roller struct {
	rng *rand.Rand
}

// NewRoller creates a roller from the provided seed.
func NewRoller(seed int64) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// RollPool rolls size d6 and returns the individual results.
func (r *Roller) RollPool(size int) ([]int, error) {
	if size <= 0 {
		return nil, ErrInvalidPool
	}
	results := make([]int, size)
	for i := range results {
		results[i] = r.rng.Intn(6) + 1
	}
	return results, nil
}

// RollInitiative rolls 3d6 and returns the total plus the agility modifier
// alongside the raw roll.
func (r *Roller) RollInitiative(agility int) (total, roll int) {
	for i := 0; i < 3; i++ {
		roll += r.rng.Intn(6) + 1
	}
	return roll + agility, roll
}

// CountSuccesses counts dice at or above the success threshold.
func CountSuccesses(results []int) int {
	count := 0
	for _, face := range results {
		if face >= SuccessThreshold {
			count++
		}
	}
	return count
}
