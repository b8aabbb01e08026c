package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/txnfold/internal/disputes"
)

// MemoryStore keeps reserved ids and retained deposits in process
// memory. It is the default store and the fastest one.
type MemoryStore struct {
	mu       sync.RWMutex
	seen     map[uint32]struct{}
	deposits map[uint32]Deposit
}

var _ TransactionStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen:     make(map[uint32]struct{}),
		deposits: make(map[uint32]Deposit),
	}
}

func (s *MemoryStore) ReserveTxID(_ context.Context, id uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return false, nil
	}
	s.seen[id] = struct{}{}
	return true, nil
}

func (s *MemoryStore) PutDeposit(_ context.Context, dep Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deposits[dep.TxID] = dep
	return nil
}

func (s *MemoryStore) GetDeposit(_ context.Context, id uint32) (Deposit, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dep, ok := s.deposits[id]
	return dep, ok, nil
}

func (s *MemoryStore) SetDisputeState(_ context.Context, id uint32, state disputes.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dep, ok := s.deposits[id]
	if !ok {
		return fmt.Errorf("no retained deposit for transaction %d", id)
	}
	dep.State = state
	s.deposits[id] = dep
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
