package persist

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestSQLStorePostgres(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewSQLStore(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vstore_snapshots (snapshot_key, data, updated_at) VALUES ($1, $2, NOW())")).
		WithArgs("app", []byte("{}")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Save(ctx, "app", []byte("{}")))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM vstore_snapshots WHERE snapshot_key = $1")).
		WithArgs("app").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"v":1}`)))
	data, err := s.Load(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(data))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM vstore_snapshots")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))
	data, err = s.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, data)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM vstore_snapshots WHERE snapshot_key = $1")).
		WithArgs("app").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Delete(ctx, "app"))

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Save(ctx, "app", nil), ErrStoreClosed)
}

func TestSQLStoreDialects(t *testing.T) {
	tests := []struct {
		dialect SQLDialect
		save    string
		create  string
	}{
		{DialectMySQL, "ON DUPLICATE KEY UPDATE", "LONGBLOB"},
		{DialectSQLite, "INSERT OR REPLACE INTO snaps", "snapshot_key TEXT PRIMARY KEY"},
		{DialectPostgreSQL, "ON CONFLICT (snapshot_key)", "BYTEA"},
	}

	for _, tt := range tests {
		db, mock := newMockDB(t)
		s := NewSQLStore(db, WithSQLDialect(tt.dialect), WithSQLTableName("snaps"))

		mock.ExpectExec(regexp.QuoteMeta(tt.create)).WillReturnResult(sqlmock.NewResult(0, 0))
		require.NoError(t, s.CreateTable(context.Background()))

		mock.ExpectExec(regexp.QuoteMeta(tt.save)).
			WithArgs("k", []byte("d")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, s.Save(context.Background(), "k", []byte("d")))
	}
}

func TestSQLStoreLoadError(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewSQLStore(db, WithSQLDialect(DialectSQLite))

	mock.ExpectQuery(regexp.QuoteMeta("WHERE snapshot_key = ?")).
		WithArgs("k").
		WillReturnError(sql.ErrConnDone)
	_, err := s.Load(context.Background(), "k")
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestParseDialect(t *testing.T) {
	for name, want := range map[string]SQLDialect{
		"postgres": DialectPostgreSQL,
		"pgx":      DialectPostgreSQL,
		"mysql":    DialectMySQL,
		"sqlite3":  DialectSQLite,
	} {
		got, err := ParseDialect(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseDialect("oracle")
	assert.Error(t, err)
}
