// Package memory is a process-local storage backend with the same
// contracts as the Postgres one. Transactions are serialised store-wide and
// rolled back by restoring a snapshot; writes outside a transaction commit
// immediately under the same lock.
package memory

import (
	"context"
	"fmt"
	"sync"

	"chatedge-be/internal/entity"
	"chatedge-be/internal/repository/contract"
	"chatedge-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type state struct {
	users    map[uuid.UUID]entity.User
	emails   map[string]uuid.UUID
	sessions map[uuid.UUID]entity.ChatSession
	messages map[uuid.UUID][]entity.ChatMessage
}

func newState() state {
	return state{
		users:    make(map[uuid.UUID]entity.User),
		emails:   make(map[string]uuid.UUID),
		sessions: make(map[uuid.UUID]entity.ChatSession),
		messages: make(map[uuid.UUID][]entity.ChatMessage),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.messages {
		c.messages[k] = append([]entity.ChatMessage(nil), v...)
	}
	return c
}

type Store struct {
	txMu sync.Mutex   // one writer (transaction or auto-commit write) at a time
	mu   sync.RWMutex // guards data
	data state
}

func NewStore() *Store {
	return &Store{data: newState()}
}

// NewRepositoryFactory exposes the store through the unit-of-work contract.
func NewRepositoryFactory(store *Store) unitofwork.RepositoryFactory {
	return &repositoryFactory{store: store}
}

type repositoryFactory struct {
	store *Store
}

func (f *repositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &UnitOfWork{store: f.store}
}

type UnitOfWork struct {
	store    *Store
	inTx     bool
	snapshot state
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.inTx {
		return fmt.Errorf("transaction already started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	u.store.txMu.Lock()
	u.store.mu.RLock()
	u.snapshot = u.store.data.clone()
	u.store.mu.RUnlock()
	u.inTx = true
	return nil
}

func (u *UnitOfWork) Commit() error {
	if !u.inTx {
		return fmt.Errorf("no transaction to commit")
	}
	u.inTx = false
	u.snapshot = state{}
	u.store.txMu.Unlock()
	return nil
}

func (u *UnitOfWork) Rollback() error {
	if !u.inTx {
		return fmt.Errorf("no transaction to rollback")
	}
	u.store.mu.Lock()
	u.store.data = u.snapshot
	u.store.mu.Unlock()
	u.inTx = false
	u.snapshot = state{}
	u.store.txMu.Unlock()
	return nil
}

// write runs fn with exclusive access, taking the writer lock unless the
// unit of work already holds it.
func (u *UnitOfWork) write(fn func(d *state) error) error {
	if !u.inTx {
		u.store.txMu.Lock()
		defer u.store.txMu.Unlock()
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	return fn(&u.store.data)
}

func (u *UnitOfWork) read(fn func(d *state)) {
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	fn(&u.store.data)
}

func (u *UnitOfWork) UserRepository() contract.UserRepository {
	return &userRepository{uow: u}
}

func (u *UnitOfWork) ChatSessionRepository() contract.ChatSessionRepository {
	return &chatSessionRepository{uow: u}
}

func (u *UnitOfWork) ChatMessageRepository() contract.ChatMessageRepository {
	return &chatMessageRepository{uow: u}
}
