package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newPaymentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositoryListByStudentAttachesAllocations(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now()
	paymentRows := sqlmock.NewRows([]string{"id", "student_id", "term", "amount", "date", "method", "particulars", "created_at"}).
		AddRow("pay-1", "stu-1", "Year 1 Semester 1", int64(500000), now, "cash", "fees", now).
		AddRow("pay-2", "stu-1", "Year 1 Semester 1", int64(250000), now, "bank", "", now)
	mock.ExpectQuery("SELECT id, student_id, term, amount, date, method, particulars, created_at\\s+FROM payments").
		WithArgs("stu-1").
		WillReturnRows(paymentRows)

	allocationRows := sqlmock.NewRows([]string{"payment_id", "fee_key", "amount"}).
		AddRow("pay-1", "Tuition", int64(300000)).
		AddRow("pay-1", "service: Transport", int64(200000))
	mock.ExpectQuery("SELECT a.payment_id, a.fee_key, a.amount\\s+FROM payment_allocations").
		WithArgs("stu-1").
		WillReturnRows(allocationRows)

	payments, err := repo.ListByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	require.Equal(t, int64(300000), payments[0].Allocations["Tuition"])
	require.Equal(t, int64(200000), payments[0].Allocations["service: Transport"])
	// Legacy payment carries no allocation rows and stays nil.
	require.Nil(t, payments[1].Allocations)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListByStudentEmpty(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("SELECT id, student_id, term, amount, date, method, particulars, created_at\\s+FROM payments").
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "term", "amount", "date", "method", "particulars", "created_at"}))

	payments, err := repo.ListByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Empty(t, payments)
	require.NoError(t, mock.ExpectationsWereMet())
}
