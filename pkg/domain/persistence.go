package domain

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// PersistentStore is the durable record of a run. Every method is
// synchronous; CreateIndividual returns the durable id before it returns.
type PersistentStore interface {
	CreateSimulation(ctx context.Context, sim SimulationRecord) (int64, error)
	GetSimulation(ctx context.Context, simulationID int64) (SimulationRecord, error)
	UpdateSimulationProgress(ctx context.Context, simulationID int64, cyclesCompleted int) error
	FinishSimulation(ctx context.Context, simulationID int64, status SimulationStatus, finalPopulation int) error
	CreateTraits(ctx context.Context, simulationID int64, traits []Trait) error
	CreateBreeder(ctx context.Context, simulationID int64, spec BreederSpec) (int64, error)
	CreateIndividual(ctx context.Context, rec IndividualRecord) (int64, error)
	UpdateOwnership(ctx context.Context, individualID, breederID int64) error
	UpdateHomedFlag(ctx context.Context, individualID int64) error
	MarkDeceased(ctx context.Context, individualID int64, cycle int) error
	RecordOwnershipTransfer(ctx context.Context, transfer OwnershipTransfer) error
	RecordCycleStats(ctx context.Context, simulationID int64, stats CycleStats) error
	CountIndividuals(ctx context.Context, simulationID int64) (int, error)
	ListCycleStats(ctx context.Context, simulationID int64) ([]CycleStats, error)
	Close() error
}
