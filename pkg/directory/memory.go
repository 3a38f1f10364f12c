package directory

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store. Transactions are serialized and work
// on a private copy of the rows that replaces the shared state on commit.
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[int64]Admin
	nextID int64
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:   make(map[int64]Admin),
		nextID: 1,
	}
}

// WithTx implements Store
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		rows:   make(map[int64]Admin, len(s.rows)),
		nextID: s.nextID,
	}
	for id, row := range s.rows {
		tx.rows[id] = row
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.rows = tx.rows
	s.nextID = tx.nextID
	return nil
}

type memoryTx struct {
	rows   map[int64]Admin
	nextID int64
}

func (tx *memoryTx) FindByEmail(_ context.Context, email string) (*Admin, error) {
	for _, row := range tx.rows {
		if NormalizeEmail(row.Email) == email {
			found := row
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (tx *memoryTx) FindByID(_ context.Context, id int64) (*Admin, error) {
	row, ok := tx.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (tx *memoryTx) Insert(_ context.Context, admin *Admin) error {
	if tx.emailTaken(admin.Email, 0) {
		return ErrEmailConflict
	}
	admin.ID = tx.nextID
	tx.nextID++
	tx.rows[admin.ID] = *admin
	return nil
}

func (tx *memoryTx) Update(_ context.Context, admin *Admin) error {
	row, ok := tx.rows[admin.ID]
	if !ok {
		return ErrNotFound
	}
	if tx.emailTaken(admin.Email, admin.ID) {
		return ErrEmailConflict
	}
	row.Email = admin.Email
	row.IsDeleted = admin.IsDeleted
	row.UpdatedAt = admin.UpdatedAt
	tx.rows[admin.ID] = row
	return nil
}

func (tx *memoryTx) List(_ context.Context) ([]*Admin, error) {
	admins := make([]*Admin, 0, len(tx.rows))
	for _, row := range tx.rows {
		row := row
		admins = append(admins, &row)
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].ID < admins[j].ID })
	return admins, nil
}

func (tx *memoryTx) emailTaken(email string, exceptID int64) bool {
	email = NormalizeEmail(email)
	for id, row := range tx.rows {
		if id != exceptID && NormalizeEmail(row.Email) == email {
			return true
		}
	}
	return false
}
