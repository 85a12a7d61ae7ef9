package store

import (
	"math/rand"
	"sync"
	"time"
)

// Operations a FaultInjector can be asked about.
const (
	OpAppendAccepted = "append_accepted"
	OpAppendRejected = "append_rejected"
)

// FaultInjector decides whether a write should fail on purpose.
type FaultInjector interface {
	ShouldFail(op string) bool
}

// NoFaults never fails.
type NoFaults struct{}

func (NoFaults) ShouldFail(string) bool { return false }

// RandomFaultInjector fails accepted-sample writes with a fixed probability.
type RandomFaultInjector struct {
	mu   sync.Mutex
	rate float64
	rnd  *rand.Rand
}

func NewRandomFaultInjector(rate float64, seed int64) *RandomFaultInjector {
	return &RandomFaultInjector{rate: rate, rnd: rand.New(rand.NewSource(seed))}
}

func (f *RandomFaultInjector) ShouldFail(op string) bool {
	if op != OpAppendAccepted || f.rate <= 0 {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rnd.Float64() < f.rate
}

// InjectorForRate returns NoFaults for a non-positive rate.
func InjectorForRate(rate float64) FaultInjector {
	if rate <= 0 {
		return NoFaults{}
	}
	return NewRandomFaultInjector(rate, time.Now().UnixNano())
}

// FailOn is a deterministic injector used by tests and tooling.
type FailOn map[string]bool

func (f FailOn) ShouldFail(op string) bool { return f[op] }
