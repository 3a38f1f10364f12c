// Package directory maintains the roster of administrators allowed to sign
// in.
//
// Every administrator is identified by a case-insensitively unique email.
// Rows are never deleted: Deactivate sets IsDeleted and a later
// CreateOrReactivate or UpdateEmail brings the row back. Each operation runs
// as a single Store transaction, and the SQL schema carries a unique index
// on lower(email) for the insert race the transaction alone cannot close.
//
// Successful mutations report a Result; failures are one of the package's
// sentinel errors, with storage problems wrapped in ErrPersistence:
//
//	result, err := dir.UpdateEmail(ctx, "old@example.com", "new@example.com")
//	switch {
//	case errors.Is(err, directory.ErrEmailConflict):
//		// another admin already holds the new email
//	case err == nil:
//		fmt.Println(result.Message())
//	}
//
// Store implementations: SQLStore (sqlx over PostgreSQL via lib/pq or SQLite via
// go-sqlite3, schema managed by goose) and MemoryStore.
package directory
