package manager

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const maxTrackedOps = 256

// OpState is the state of a background operation.
type OpState string

const (
	OpRunning OpState = "running"
	OpDone    OpState = "done"
	OpFailed  OpState = "failed"
)

// Operation tracks one background preload.
type Operation struct {
	ID         string
	ModelID    string
	State      OpState
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Preload kicks off an async LoadByID and returns an operation ID.
// The load runs on a context detached from ctx so it survives the caller;
// shutdown still stops it from becoming resident.
func (m *Manager) Preload(ctx context.Context, id string, opts LoadOptions) (string, error) {
	if m.shut.Load() {
		return "", ErrShutdown
	}
	if _, ok := m.catalog.Get(id); !ok {
		return "", ErrModelNotFound(id)
	}
	op := &Operation{ID: uuid.NewString(), ModelID: id, State: OpRunning, StartedAt: time.Now()}
	m.opMu.Lock()
	if m.ops == nil {
		m.ops = make(map[string]*Operation)
	}
	m.pruneOpsLocked()
	m.ops[op.ID] = op
	m.opMu.Unlock()

	bg := context.WithoutCancel(ctx)
	go func() {
		_, err := m.LoadByID(bg, id, opts)
		m.opMu.Lock()
		defer m.opMu.Unlock()
		op.FinishedAt = time.Now()
		if err != nil {
			op.State, op.Error = OpFailed, err.Error()
			return
		}
		op.State = OpDone
	}()
	return op.ID, nil
}

// Operation returns a copy of the operation with the given id.
func (m *Manager) Operation(opID string) (Operation, bool) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	op, ok := m.ops[opID]
	if !ok {
		return Operation{}, false
	}
	return *op, true
}

// pruneOpsLocked drops the oldest finished operations once the table is full.
func (m *Manager) pruneOpsLocked() {
	for len(m.ops) >= maxTrackedOps {
		var oldest *Operation
		for _, op := range m.ops {
			if op.State == OpRunning {
				continue
			}
			if oldest == nil || op.FinishedAt.Before(oldest.FinishedAt) {
				oldest = op
			}
		}
		if oldest == nil {
			return
		}
		delete(m.ops, oldest.ID)
	}
}
