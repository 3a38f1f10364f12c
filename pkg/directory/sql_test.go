package directory

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var adminRowColumns = []string{"id", "email", "is_deleted", "created_at", "updated_at"}

const (
	pgSelectByEmail = "SELECT id, email, is_deleted, created_at, updated_at FROM admins WHERE lower(email) = $1"
	pgInsert        = "INSERT INTO admins (email, is_deleted, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id"
	pgUpdate        = "UPDATE admins SET email = $1, is_deleted = $2, updated_at = $3 WHERE id = $4"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLStore(db, DialectPostgres)
	require.NoError(t, err)
	return store, mock
}

func TestSQLStore_DeactivateCommitFailure(t *testing.T) {
	store, mock := newMockStore(t)
	notifier := &recordingNotifier{}
	dir := New(store, WithNotifier(notifier))
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(pgSelectByEmail)).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(adminRowColumns).AddRow(int64(1), "a@example.com", false, now, now))
	mock.ExpectExec(regexp.QuoteMeta(pgUpdate)).
		WithArgs("a@example.com", true, sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("connection reset by peer"))

	_, err := dir.Deactivate(context.Background(), "A@example.com")

	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, notifier.sent())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_RollbackOnDomainError(t *testing.T) {
	store, mock := newMockStore(t)
	dir := New(store)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(pgSelectByEmail)).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows(adminRowColumns))
	mock.ExpectRollback()

	_, err := dir.Deactivate(context.Background(), "ghost@example.com")

	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_CreateRetriesAfterUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	dir := New(store)
	now := time.Now()

	// first attempt loses the race to a concurrent insert
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(pgSelectByEmail)).
		WithArgs("race@example.com").
		WillReturnRows(sqlmock.NewRows(adminRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta(pgInsert)).
		WithArgs("race@example.com", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	// second attempt sees the winner
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(pgSelectByEmail)).
		WithArgs("race@example.com").
		WillReturnRows(sqlmock.NewRows(adminRowColumns).AddRow(int64(7), "race@example.com", false, now, now))
	mock.ExpectCommit()

	result, admin, err := dir.CreateOrReactivate(context.Background(), "race@example.com")

	require.NoError(t, err)
	assert.Equal(t, AlreadyActive, result)
	assert.Equal(t, int64(7), admin.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_InsertReturnsID(t *testing.T) {
	store, mock := newMockStore(t)
	dir := New(store)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(pgSelectByEmail)).
		WithArgs("new@example.com").
		WillReturnRows(sqlmock.NewRows(adminRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta(pgInsert)).
		WithArgs("new@example.com", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectCommit()

	result, admin, err := dir.CreateOrReactivate(context.Background(), "new@example.com")

	require.NoError(t, err)
	assert.Equal(t, Created, result)
	assert.Equal(t, int64(42), admin.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_UpdateConflictMapsToEmailConflict(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(pgUpdate)).
		WithArgs("taken@example.com", false, sqlmock.AnyArg(), int64(3)).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.Update(ctx, &Admin{ID: 3, Email: "taken@example.com", UpdatedAt: now})
	})

	assert.ErrorIs(t, err, ErrEmailConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_BeginFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := New(store).Lookup(context.Background(), "a@example.com")

	assert.ErrorIs(t, err, ErrPersistence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Rebind(t *testing.T) {
	pg, err := NewSQLStore(nil, DialectPostgres)
	require.NoError(t, err)
	lite, err := NewSQLStore(nil, DialectSQLite)
	require.NoError(t, err)

	query := "UPDATE admins SET email = ?, is_deleted = ? WHERE id = ?"
	assert.Equal(t, "UPDATE admins SET email = $1, is_deleted = $2 WHERE id = $3", pg.db.Rebind(query))
	assert.Equal(t, query, lite.db.Rebind(query))
}

func TestSQLStore_ListScansRows(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, is_deleted, created_at, updated_at FROM admins ORDER BY id")).
		WillReturnRows(sqlmock.NewRows(adminRowColumns).
			AddRow(int64(1), "a@example.com", false, now, now).
			AddRow(int64(2), "b@example.com", true, now, now))
	mock.ExpectCommit()

	admins, err := New(store).List(context.Background())

	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.Equal(t, "b@example.com", admins[1].Email)
	assert.True(t, admins[1].IsDeleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{
		"postgres":   DialectPostgres,
		"PostgreSQL": DialectPostgres,
		"sqlite3":    DialectSQLite,
		"sqlite":     DialectSQLite,
	} {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseDialect("mysql")
	assert.Error(t, err)
}

func TestNewSQLStore_RejectsUnknownDialect(t *testing.T) {
	_, err := NewSQLStore(nil, Dialect("oracle"))
	assert.Error(t, err)
}
