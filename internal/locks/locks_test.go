package locks

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock, func()) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		WithoutReturning:     true,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open gorm: %v", err)
	}
	return New(gormDB), mock, func() { sqlDB.Close() }
}

func TestKey(t *testing.T) {
	if got := Key(7, "MintAddr111"); got != "trade:7:MintAddr111" {
		t.Fatalf("unexpected key: %s", got)
	}
}

func TestAcquire_FreshInsert(t *testing.T) {
	repo, mock, closeFn := newMockRepo(t)
	defer closeFn()

	mock.ExpectExec("INSERT INTO trade_locks").
		WithArgs("trade:1:Mint", "buy", "instance-a", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	acquired, err := repo.Acquire(context.Background(), "trade:1:Mint", "buy", "instance-a", 30*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected lock to be acquired on a fresh insert")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestAcquire_HeldByOther(t *testing.T) {
	repo, mock, closeFn := newMockRepo(t)
	defer closeFn()

	// A live, unexpired holder means the WHERE clause excludes the row: zero rows affected.
	mock.ExpectExec("INSERT INTO trade_locks").
		WithArgs("trade:1:Mint", "sell", "instance-b", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	acquired, err := repo.Acquire(context.Background(), "trade:1:Mint", "sell", "instance-b", 30*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Fatal("expected acquire to fail while another instance holds a live lease")
	}
}

func TestRelease_OwnedByInstance(t *testing.T) {
	repo, mock, closeFn := newMockRepo(t)
	defer closeFn()

	mock.ExpectExec("DELETE FROM \"trade_locks\"").
		WithArgs("trade:1:Mint", "instance-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Release(context.Background(), "trade:1:Mint", "instance-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
