package mysql

import (
	"context"
	stdErrors "errors"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"OpenMCP-Stellar/deploy/migrations"
	"OpenMCP-Stellar/internal/journal"
	"OpenMCP-Stellar/pkg/logger"
)

func newMockStore(t *testing.T) (*JournalStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	store := &JournalStore{db: db, log: logger.Named("journal")}
	t.Cleanup(func() { store.Close() })
	return store, mock
}

func TestMigrateAppliesPendingSteps(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS journal_schema_versions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM journal_schema_versions").WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS submission_journal").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO journal_schema_versions").
		WithArgs("0001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := store.migrate(context.Background(), migrations.Files); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMigrateSkipsAppliedSteps(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS journal_schema_versions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM journal_schema_versions").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0001"))

	if err := store.migrate(context.Background(), migrations.Files); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMigrateRollsBackFailedStep(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS journal_schema_versions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM journal_schema_versions").WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS submission_journal").WillReturnError(stdErrors.New("disk full"))
	mock.ExpectRollback()

	if err := store.migrate(context.Background(), migrations.Files); err == nil {
		t.Fatalf("expected migrate to fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSchemaStepsOrderAndSkip(t *testing.T) {
	files := fstest.MapFS{
		"0002_offers.sql": {Data: []byte("ALTER TABLE a ADD b INT;\nALTER TABLE a ADD c INT;")},
		"0001_init.sql":   {Data: []byte("CREATE TABLE a (id INT);")},
		"0003_empty.sql":  {Data: []byte(" ;\n ")},
		"README.md":       {Data: []byte("not sql")},
	}
	steps, err := schemaSteps(files)
	if err != nil {
		t.Fatalf("schema steps: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %+v", steps)
	}
	if steps[0].version != "0001" || steps[1].version != "0002" || len(steps[1].stmts) != 2 {
		t.Fatalf("unexpected steps %+v", steps)
	}
}

func TestJournalStoreRecordAndLatest(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submission_journal")).
		WithArgs(sqlmock.AnyArg(), "GSRC", "sell", "accepted", "abc", int32(99), "", "", "AAAA", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Record(context.Background(), journal.Entry{
		Source: "GSRC", Action: "sell", Status: "accepted", Hash: "abc", Ledger: 99, EnvelopeXDR: "AAAA",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "source", "action", "status", "hash", "ledger", "code", "detail", "envelope_xdr", "created_at"}).
		AddRow("id-1", "GSRC", "sell", "accepted", "abc", 99, "", "", "AAAA", created.UnixMilli())
	mock.ExpectQuery(regexp.QuoteMeta("FROM submission_journal WHERE source = ?")).
		WithArgs("GSRC", 5).
		WillReturnRows(rows)

	entries, err := store.Latest(context.Background(), "GSRC", 5)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(entries) != 1 || entries[0].Ledger != 99 || !entries[0].CreatedAt.Equal(created) {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
