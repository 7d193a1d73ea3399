// Copyright (c) 2024 Kasar Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at kasarlabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package storage exposes the per-entity trie handlers of the state layer:
// the contracts trie, the per-contract storage tries, and the classes trie.
// Write handlers follow an explicit init / update / commit / apply-changes
// lifecycle and are protected by a single-writer guard; read handlers
// operate on the live store without locking.
package storage

import (
	"fmt"
	"sync"

	"github.com/kasarlabs/bonsai-go/backend"
	"github.com/kasarlabs/bonsai-go/common"
	"github.com/kasarlabs/bonsai-go/database"
)

// TrieHeight is the height of all state tries: keys are field elements
// below 2^251.
const TrieHeight = 251

// Manager owns the three trie namespaces of the state layer and hands out
// handlers over them. A single Manager instance is shared by all block
// processing.
type Manager struct {
	contracts *database.Database
	storage   *database.Database
	classes   *database.Database
	guard     writerGuard
}

// NewManager binds the three trie namespaces to the given store.
func NewManager(store *backend.KeyedStore, config database.Config) *Manager {
	return &Manager{
		contracts: database.New(store, database.ContractsMapping, config),
		storage:   database.New(store, database.StorageMapping, config),
		classes:   database.New(store, database.ClassesMapping, config),
		guard:     writerGuard{held: make(map[string]struct{})},
	}
}

// Snapshot captures the current state of all three namespaces under the
// logical id, so write handlers can later be opened against it.
func (m *Manager) Snapshot(id database.BasicId) error {
	if err := m.contracts.Snapshot(id); err != nil {
		return err
	}
	if err := m.storage.Snapshot(id); err != nil {
		return err
	}
	return m.classes.Snapshot(id)
}

// writerGuard enforces the single-writer-per-entity invariant at runtime:
// acquiring a handler for an entity that is already held fails fast
// instead of racing.
type writerGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func (g *writerGuard) acquire(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[name]; ok {
		return fmt.Errorf("%w: %s trie is already held by another writer", common.ErrInvariantViolation, name)
	}
	g.held[name] = struct{}{}
	return nil
}

func (g *writerGuard) release(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, name)
}

// phase is the lifecycle state of a write handler.
type phase uint8

const (
	phaseEmpty phase = iota
	phaseInitialized
	phaseStaged
	phaseCommitted
	phaseMerged
)

func (p phase) String() string {
	switch p {
	case phaseEmpty:
		return "empty"
	case phaseInitialized:
		return "initialized"
	case phaseStaged:
		return "staged"
	case phaseCommitted:
		return "committed"
	case phaseMerged:
		return "merged"
	default:
		return "unknown"
	}
}

// lifecycle tracks and checks handler phase transitions. Calling a
// lifecycle method out of order is a caller error, reported as an
// invariant violation rather than left as undefined behavior.
type lifecycle struct {
	phase phase
}

func (l *lifecycle) require(op string, allowed ...phase) error {
	for _, p := range allowed {
		if l.phase == p {
			return nil
		}
	}
	return fmt.Errorf("%w: %s called in phase %s", common.ErrInvariantViolation, op, l.phase)
}

func (l *lifecycle) advance(p phase) {
	l.phase = p
}

// transaction opens a write view pinned to the snapshot at the id,
// translating a missing snapshot into an invariant violation.
func transaction(db *database.Database, id database.BasicId) (*database.Transaction, error) {
	tx, ok := db.Transaction(id)
	if !ok {
		return nil, fmt.Errorf("%w: no snapshot retained at id %d", common.ErrInvariantViolation, uint64(id))
	}
	return tx, nil
}
