package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/cashpro/pkg/observability"
)

func TestMigrateAppliesOnlyPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	migrations := []Migration{
		{Version: 1, Description: "one", SQL: "CREATE TABLE one (id INT)"},
		{Version: 2, Description: "two", SQL: "CREATE TABLE two (id INT)"},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE two").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(2, "two").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), db, "schema_migrations", migrations, observability.NewDiscardLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRollsBackFailedMigration(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tenant_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM tenant_migrations").WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec("BROKEN").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err = Migrate(context.Background(), db, "tenant_migrations",
		[]Migration{{Version: 1, Description: "broken", SQL: "BROKEN"}}, observability.NewDiscardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute migration 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRejectsBadTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = Migrate(context.Background(), db, "x; DROP TABLE people", nil, observability.NewDiscardLogger())
	assert.Error(t, err)
}

func TestControlMigrationsAreOrdered(t *testing.T) {
	prev := 0
	for _, m := range ControlMigrations() {
		assert.Greater(t, m.Version, prev)
		assert.NotEmpty(t, m.Description)
		prev = m.Version
	}
}

func TestWithTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE companies").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, WithTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), "UPDATE companies SET name = 'x'")
		return err
	}))

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()
	assert.ErrorIs(t, WithTx(context.Background(), db, func(*sql.Tx) error { return boom }), boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorClassification(t *testing.T) {
	unique := &pq.Error{Code: "23505", Constraint: "people_email_key"}
	assert.True(t, IsUniqueViolation(unique, ""))
	assert.True(t, IsUniqueViolation(unique, "people_email_key"))
	assert.False(t, IsUniqueViolation(unique, "people_username_key"))
	assert.False(t, IsUniqueViolation(errors.New("other"), ""))

	assert.True(t, IsDuplicateDatabase(&pq.Error{Code: "42P04"}))
	assert.True(t, IsForeignKeyViolation(&pq.Error{Code: "23503"}))
}
