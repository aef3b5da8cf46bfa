package main

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func newTestRegistry(catalog Catalog) *MachineRegistry {
	return NewMachineRegistry(catalog, 0, zap.NewNop(), otel.Tracer("test"))
}

func mustCreate(t *testing.T, registry *MachineRegistry) string {
	t.Helper()
	id, err := registry.Create()
	require.NoError(t, err)
	return id
}

func TestMachineRegistry_CreateAndSnapshot(t *testing.T) {
	registry := newTestRegistry(NewInMemoryCatalog(testStock()))

	first := mustCreate(t, registry)
	second := mustCreate(t, registry)
	require.NotEqual(t, first, second)

	_, err := registry.Do(context.Background(), first, func(ctx context.Context, pc *PurchaseController) (Outcome, error) {
		if _, err := pc.InsertCoin(ctx, 50); err != nil {
			return Outcome{}, err
		}
		return pc.Select(ctx, "2")
	})
	require.NoError(t, err)

	snapshot, err := registry.Snapshot(first)
	require.NoError(t, err)
	assert.Equal(t, MachineSnapshot{
		MachineID:    first,
		State:        StateSelected,
		Selection:    "2",
		PendingTotal: 50,
		PendingCoins: []Coin{50},
	}, snapshot)

	snapshot, err = registry.Snapshot(second)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, snapshot.State)
	assert.Zero(t, snapshot.PendingTotal)
}

func TestMachineRegistry_UnknownMachine(t *testing.T) {
	registry := newTestRegistry(NewInMemoryCatalog(nil))

	_, err := registry.Snapshot("missing")
	assert.ErrorIs(t, err, ErrMachineNotFound)

	called := false
	_, err = registry.Do(context.Background(), "missing", func(context.Context, *PurchaseController) (Outcome, error) {
		called = true
		return Outcome{}, nil
	})
	assert.ErrorIs(t, err, ErrMachineNotFound)
	assert.False(t, called)
}

func TestMachineRegistry_DoSerializesEvents(t *testing.T) {
	registry := newTestRegistry(NewInMemoryCatalog(testStock()))
	id := mustCreate(t, registry)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := registry.Do(context.Background(), id, func(ctx context.Context, pc *PurchaseController) (Outcome, error) {
				return pc.InsertCoin(ctx, 1)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snapshot, err := registry.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, 100, snapshot.PendingTotal)
	assert.Len(t, snapshot.PendingCoins, 100)
}

func TestMachineRegistry_MachinesShareStock(t *testing.T) {
	catalog := NewInMemoryCatalog(testStock())
	registry := newTestRegistry(catalog)
	ids := []string{mustCreate(t, registry), mustCreate(t, registry), mustCreate(t, registry)}

	sales := 0
	for _, id := range ids {
		outcome, err := registry.Do(context.Background(), id, func(ctx context.Context, pc *PurchaseController) (Outcome, error) {
			if _, err := pc.InsertCoin(ctx, 10); err != nil {
				return Outcome{}, err
			}
			return pc.Select(ctx, "1")
		})
		require.NoError(t, err)
		if outcome.Kind == OutcomeSaleCompleted {
			sales++
		} else {
			assert.Equal(t, OutcomeOutOfStock, outcome.Kind)
		}
	}

	assert.Equal(t, 2, sales)
	assert.Equal(t, 0, quantityOf(t, catalog, "1"))
}

func TestMachineRegistry_Limit(t *testing.T) {
	registry := NewMachineRegistry(NewInMemoryCatalog(nil), 2, zap.NewNop(), otel.Tracer("test"))
	first := mustCreate(t, registry)
	mustCreate(t, registry)

	_, err := registry.Create()
	assert.ErrorIs(t, err, ErrTooManyMachines)

	require.NoError(t, registry.Remove(first))
	_, err = registry.Snapshot(first)
	assert.ErrorIs(t, err, ErrMachineNotFound)

	mustCreate(t, registry)
}

func TestMachineRegistry_RemoveUnknown(t *testing.T) {
	registry := newTestRegistry(NewInMemoryCatalog(nil))

	assert.ErrorIs(t, registry.Remove("missing"), ErrMachineNotFound)
}

func TestNewMachineRegistry_DefaultLimit(t *testing.T) {
	registry := newTestRegistry(NewInMemoryCatalog(nil))

	assert.Equal(t, DefaultMaxMachines, registry.maxMachines)
}
