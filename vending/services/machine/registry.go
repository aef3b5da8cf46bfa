package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	ErrMachineNotFound = fmt.Errorf("machine not found")
	ErrTooManyMachines = fmt.Errorf("machine limit reached")
)

// DefaultMaxMachines bounds the sessions of one process.
const DefaultMaxMachines = 1000

// machineSession serializes the events of one machine.
type machineSession struct {
	mu         sync.Mutex
	controller *PurchaseController
}

// MachineRegistry hosts the purchase controllers of every machine served by
// this process. All machines share one Catalog. A machine lives until it is
// removed or the process exits; at most maxMachines exist at a time.
type MachineRegistry struct {
	mu          sync.RWMutex
	sessions    map[string]*machineSession
	maxMachines int
	catalog     Catalog
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewMachineRegistry creates an empty registry backed by catalog. A
// maxMachines of zero or less means DefaultMaxMachines.
func NewMachineRegistry(catalog Catalog, maxMachines int, logger *zap.Logger, tracer trace.Tracer) *MachineRegistry {
	if maxMachines <= 0 {
		maxMachines = DefaultMaxMachines
	}
	return &MachineRegistry{
		sessions:    make(map[string]*machineSession),
		maxMachines: maxMachines,
		catalog:     catalog,
		logger:      logger,
		tracer:      tracer,
	}
}

// Create registers a new idle machine and returns its id.
func (r *MachineRegistry) Create() (string, error) {
	id := uuid.New().String()
	session := &machineSession{
		controller: NewPurchaseController(r.catalog, r.logger.With(zap.String("machine_id", id)), r.tracer),
	}

	r.mu.Lock()
	if len(r.sessions) >= r.maxMachines {
		r.mu.Unlock()
		return "", fmt.Errorf("%d machines registered: %w", r.maxMachines, ErrTooManyMachines)
	}
	r.sessions[id] = session
	r.mu.Unlock()

	r.logger.Info("machine registered", zap.String("machine_id", id))
	return id, nil
}

// Remove deletes machine id. Coins still pending on it are dropped with it.
func (r *MachineRegistry) Remove(id string) error {
	r.mu.Lock()
	session, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("machine %s: %w", id, ErrMachineNotFound)
	}

	session.mu.Lock()
	pending := session.controller.PendingTotal()
	session.mu.Unlock()
	r.logger.Info("machine removed", zap.String("machine_id", id), zap.Int("pending_total", pending))
	return nil
}

// Do runs fn with exclusive access to the controller of machine id.
func (r *MachineRegistry) Do(ctx context.Context, id string, fn func(ctx context.Context, pc *PurchaseController) (Outcome, error)) (Outcome, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return Outcome{}, fmt.Errorf("machine %s: %w", id, ErrMachineNotFound)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	return fn(ctx, session.controller)
}

// MachineSnapshot is a read-only view of a machine.
type MachineSnapshot struct {
	MachineID    string       `json:"machine_id"`
	State        MachineState `json:"state"`
	Selection    string       `json:"selection,omitempty"`
	PendingTotal int          `json:"pending_total"`
	PendingCoins []Coin       `json:"pending_coins"`
}

// Snapshot returns the current view of machine id.
func (r *MachineRegistry) Snapshot(id string) (MachineSnapshot, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return MachineSnapshot{}, fmt.Errorf("machine %s: %w", id, ErrMachineNotFound)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	sel, _ := session.controller.CurrentSelection()
	return MachineSnapshot{
		MachineID:    id,
		State:        session.controller.State(),
		Selection:    sel,
		PendingTotal: session.controller.PendingTotal(),
		PendingCoins: session.controller.PendingCoins(),
	}, nil
}
