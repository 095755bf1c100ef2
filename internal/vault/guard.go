package vault

import (
	"fmt"
	"sync"
)

// OperationGuard is the process-wide exclusive lock around export and import.
// Operations never queue: a second caller is rejected immediately with a
// BusyError while the first is in flight.
type OperationGuard struct {
	mu      sync.Mutex
	current string
}

// NewOperationGuard creates an unheld guard
func NewOperationGuard() *OperationGuard {
	return &OperationGuard{}
}

// TryAcquire claims the guard for the named operation. On success it returns
// a release function; the caller must invoke it exactly once when the
// operation finishes.
func (g *OperationGuard) TryAcquire(operationID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current != "" {
		return nil, NewBusyError(
			fmt.Sprintf("operation %s is already in flight", g.current), nil).
			WithContext("operation_id", g.current)
	}
	g.current = operationID

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			g.current = ""
		})
	}, nil
}

// Current returns the ID of the operation holding the guard, or "" when idle
func (g *OperationGuard) Current() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// defaultGuard serializes operations across every Engine in the process
var defaultGuard = NewOperationGuard()
