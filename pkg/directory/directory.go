package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/sitemgmt/pkg/observability"
)

// Notifier is told about deactivations after they have been committed.
// Implementations must not block the caller and cannot fail the operation.
type Notifier interface {
	AdminDeactivated(ctx context.Context, email string)
}

// Directory manages the administrator roster
type Directory struct {
	store    Store
	notifier Notifier
	metrics  *observability.Metrics
	now      func() time.Time
}

// Option configures a Directory
type Option func(*Directory)

// WithNotifier sets the deactivation hook
func WithNotifier(n Notifier) Option {
	return func(d *Directory) {
		d.notifier = n
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Directory) {
		d.metrics = m
	}
}

// WithClock overrides the time source used for row timestamps
func WithClock(now func() time.Time) Option {
	return func(d *Directory) {
		d.now = now
	}
}

// New creates a Directory backed by store
func New(store Store, opts ...Option) *Directory {
	d := &Directory{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Lookup returns the active admin holding email. It fails with ErrNotFound
// for unknown emails and ErrInactive for deactivated admins.
func (d *Directory) Lookup(ctx context.Context, email string) (*Admin, error) {
	started := time.Now()
	email = NormalizeEmail(email)

	var admin *Admin
	err := d.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if email == "" {
			return ErrNotFound
		}
		found, err := tx.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		admin = found
		return nil
	})
	if err == nil && admin.IsDeleted {
		admin, err = nil, ErrInactive
	}

	err = classify(err)
	d.observe(ctx, "lookup", "found", err, started)
	return admin, err
}

// Get returns the active admin with the given id. Deactivated admins yield
// ErrInactive.
func (d *Directory) Get(ctx context.Context, id int64) (*Admin, error) {
	started := time.Now()

	var admin *Admin
	err := d.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		found, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		admin = found
		return nil
	})
	if err == nil && admin.IsDeleted {
		admin, err = nil, ErrInactive
	}

	err = classify(err)
	d.observe(ctx, "get", "found", err, started)
	return admin, err
}

// List returns every admin, including deactivated ones, ordered by id
func (d *Directory) List(ctx context.Context) ([]*Admin, error) {
	started := time.Now()

	var admins []*Admin
	err := d.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		admins, err = tx.List(ctx)
		return err
	})

	err = classify(err)
	d.observe(ctx, "list", "listed", err, started)
	return admins, err
}

// CreateOrReactivate makes email an active admin. A concurrent insert of the
// same email is resolved by retrying once, which then sees the winner's row.
func (d *Directory) CreateOrReactivate(ctx context.Context, email string) (Result, *Admin, error) {
	started := time.Now()
	email = NormalizeEmail(email)

	if !ValidEmail(email) {
		d.observe(ctx, "create_or_reactivate", "", ErrInvalidEmail, started)
		return 0, nil, ErrInvalidEmail
	}

	var (
		result Result
		admin  *Admin
		err    error
	)
	for attempt := 0; attempt < 2; attempt++ {
		result, admin, err = d.createOrReactivate(ctx, email)
		if !errors.Is(err, ErrEmailConflict) {
			break
		}
		observability.FromContext(ctx).
			WithField("attempt", attempt+1).
			Debug("Concurrent admin insert detected, retrying")
	}
	if errors.Is(err, ErrEmailConflict) {
		err = fmt.Errorf("%w: insert kept conflicting: %w", ErrPersistence, err)
	}

	err = classify(err)
	d.observe(ctx, "create_or_reactivate", result.String(), err, started)
	if err != nil {
		return 0, nil, err
	}
	return result, admin, nil
}

func (d *Directory) createOrReactivate(ctx context.Context, email string) (Result, *Admin, error) {
	var (
		result Result
		admin  *Admin
	)
	err := d.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		existing, err := tx.FindByEmail(ctx, email)
		switch {
		case errors.Is(err, ErrNotFound):
			now := d.now()
			admin = &Admin{Email: email, CreatedAt: now, UpdatedAt: now}
			if err := tx.Insert(ctx, admin); err != nil {
				return err
			}
			result = Created
			return nil
		case err != nil:
			return err
		}

		admin = existing
		if !existing.IsDeleted {
			result = AlreadyActive
			return nil
		}

		existing.IsDeleted = false
		existing.UpdatedAt = d.now()
		if err := tx.Update(ctx, existing); err != nil {
			return err
		}
		result = Reactivated
		return nil
	})
	return result, admin, err
}

// Deactivate soft-deletes the admin holding email. Deactivating an already
// deactivated admin succeeds again. The notifier runs only after the change
// has been committed.
func (d *Directory) Deactivate(ctx context.Context, email string) (Result, error) {
	started := time.Now()
	email = NormalizeEmail(email)

	err := d.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if email == "" {
			return ErrNotFound
		}
		admin, err := tx.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		admin.IsDeleted = true
		admin.UpdatedAt = d.now()
		return tx.Update(ctx, admin)
	})

	err = classify(err)
	d.observe(ctx, "deactivate", Deactivated.String(), err, started)
	if err != nil {
		return 0, err
	}

	if d.notifier != nil {
		d.notifier.AdminDeactivated(ctx, email)
	}
	return Deactivated, nil
}

// UpdateEmail renames the admin holding oldEmail to newEmail, reactivating
// it if needed. An empty newEmail only reactivates a deactivated admin.
func (d *Directory) UpdateEmail(ctx context.Context, oldEmail, newEmail string) (Result, error) {
	started := time.Now()
	oldEmail = NormalizeEmail(oldEmail)
	newEmail = NormalizeEmail(newEmail)

	var result Result
	err := d.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if oldEmail == "" {
			return ErrNotFound
		}
		admin, err := tx.FindByEmail(ctx, oldEmail)
		if err != nil {
			return err
		}

		if newEmail == "" {
			if !admin.IsDeleted {
				return ErrEmptyEmail
			}
			admin.IsDeleted = false
			admin.UpdatedAt = d.now()
			result = Reactivated
			return tx.Update(ctx, admin)
		}

		if !ValidEmail(newEmail) {
			return ErrInvalidEmail
		}

		holder, err := tx.FindByEmail(ctx, newEmail)
		switch {
		case err == nil && holder.ID != admin.ID:
			return ErrEmailConflict
		case err != nil && !errors.Is(err, ErrNotFound):
			return err
		}

		result = Updated
		if admin.IsDeleted {
			result = ReactivatedAndUpdated
		}
		admin.Email = newEmail
		admin.IsDeleted = false
		admin.UpdatedAt = d.now()
		return tx.Update(ctx, admin)
	})

	err = classify(err)
	d.observe(ctx, "update_email", result.String(), err, started)
	if err != nil {
		return 0, err
	}
	return result, nil
}

// classify leaves domain errors intact and marks everything else as a
// persistence failure
func classify(err error) error {
	switch {
	case err == nil,
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInactive),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrEmptyEmail),
		errors.Is(err, ErrEmailConflict),
		errors.Is(err, ErrPersistence):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
}

func (d *Directory) observe(ctx context.Context, operation, success string, err error, started time.Time) {
	label := success
	if err != nil {
		label = errorLabel(err)
		if errors.Is(err, ErrPersistence) {
			observability.FromContext(ctx).
				WithField("operation", operation).
				WithError(err).
				Error("Admin directory operation failed")
		}
	}
	d.metrics.ObserveDirectoryOperation(operation, label, started)
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInactive):
		return "inactive"
	case errors.Is(err, ErrInvalidEmail):
		return "invalid_email"
	case errors.Is(err, ErrEmptyEmail):
		return "empty_email"
	case errors.Is(err, ErrEmailConflict):
		return "email_conflict"
	default:
		return "error"
	}
}
