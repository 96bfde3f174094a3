package live

import (
	"context"
	"sync"
)

// MutationKind identifies a local mutation.
type MutationKind int

const (
	MutationAdd MutationKind = iota + 1
	MutationDelete
)

func (k MutationKind) String() string {
	switch k {
	case MutationAdd:
		return "add"
	case MutationDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Mutation is the outcome handle of a local add or delete. It resolves once
// the backing store call finishes: nil on success, a *PersistenceError on
// failure.
type Mutation struct {
	kind MutationKind
	id   string

	once sync.Once
	done chan struct{}
	err  error
}

func newMutation(kind MutationKind, id string) *Mutation {
	return &Mutation{kind: kind, id: id, done: make(chan struct{})}
}

// Kind returns whether this is an add or a delete.
func (m *Mutation) Kind() MutationKind { return m.kind }

// ID is the id the mutation was applied under. For adds this is the
// provisional id.
func (m *Mutation) ID() string { return m.id }

// Done is closed when the mutation has resolved.
func (m *Mutation) Done() <-chan struct{} { return m.done }

// Err returns the outcome, or ErrPending until Done is closed.
func (m *Mutation) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return ErrPending
	}
}

// Wait blocks until the mutation resolves or ctx ends.
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mutation) resolve(err error) {
	m.once.Do(func() {
		m.err = err
		close(m.done)
	})
}
