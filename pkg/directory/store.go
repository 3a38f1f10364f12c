package directory

import "context"

// Store runs directory operations transactionally
type Store interface {
	// WithTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back when fn returns an error or panics. The
	// error from fn is returned unchanged.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of reads and writes available inside a transaction. Emails
// passed in are already normalized.
type Tx interface {
	// FindByEmail returns ErrNotFound when no row matches
	FindByEmail(ctx context.Context, email string) (*Admin, error)
	// FindByID returns ErrNotFound when no row matches
	FindByID(ctx context.Context, id int64) (*Admin, error)
	// Insert stores a new row and sets admin.ID. It returns ErrEmailConflict
	// if the email is already taken.
	Insert(ctx context.Context, admin *Admin) error
	// Update rewrites email, IsDeleted and UpdatedAt of the row with admin.ID.
	// It returns ErrEmailConflict if the new email is taken by another row.
	Update(ctx context.Context, admin *Admin) error
	// List returns every row ordered by id
	List(ctx context.Context) ([]*Admin, error)
}
