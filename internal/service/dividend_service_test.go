package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capstack-hq/capstack-backend/internal/repository"
)

type fakeDividendTx struct {
	payment *repository.DividendPayment

	updatedStatus string
	markedPaid    bool
	reopened      bool
}

func (t *fakeDividendTx) GetPaymentByTransferIDForUpdate(_ context.Context, transferID string) (*repository.DividendPayment, error) {
	if t.payment == nil || t.payment.TransferID == nil || *t.payment.TransferID != transferID {
		return nil, nil
	}
	return t.payment, nil
}

func (t *fakeDividendTx) UpdatePaymentStatus(_ context.Context, _, status string) error {
	t.updatedStatus = status
	return nil
}

func (t *fakeDividendTx) MarkDividendsPaid(context.Context, string) error {
	t.markedPaid = true
	return nil
}

func (t *fakeDividendTx) ReopenDividends(context.Context, string) error {
	t.reopened = true
	return nil
}

type fakeDividendRepo struct {
	tx *fakeDividendTx
}

func (r *fakeDividendRepo) InTx(_ context.Context, fn func(tx repository.DividendTx) error) error {
	return fn(r.tx)
}

func (r *fakeDividendRepo) ListPendingPayments(context.Context, time.Duration) ([]*repository.DividendPayment, error) {
	return nil, nil
}

func (r *fakeDividendRepo) ListDividendsByPayment(context.Context, string) ([]*repository.Dividend, error) {
	return nil, nil
}

func newDividendFixture(paymentStatus string) (*fakeDividendTx, DividendService) {
	transferID := "tr_123"
	tx := &fakeDividendTx{payment: &repository.DividendPayment{
		ID:         "pay1",
		CompanyID:  "c1",
		TransferID: &transferID,
		Status:     paymentStatus,
	}}
	svc := NewDividendService(
		&fakeDividendRepo{tx: tx},
		&fakeCompanyRepo{companies: map[string]*repository.Company{}},
		&fakeUserRepo{usersByID: map[string]*repository.User{}},
		nil, "", nil,
	)
	return tx, svc
}

func TestUpdateTransferStatus_Processed(t *testing.T) {
	tx, svc := newDividendFixture("pending")

	err := svc.UpdateTransferStatus(context.Background(), "tr_123", "processed")
	require.NoError(t, err)

	assert.Equal(t, "processed", tx.updatedStatus)
	assert.True(t, tx.markedPaid)
	assert.False(t, tx.reopened)
}

func TestUpdateTransferStatus_Failed(t *testing.T) {
	tx, svc := newDividendFixture("pending")

	err := svc.UpdateTransferStatus(context.Background(), "tr_123", "failed")
	require.NoError(t, err)

	assert.Equal(t, "failed", tx.updatedStatus)
	assert.True(t, tx.reopened)
	assert.False(t, tx.markedPaid)
}

func TestUpdateTransferStatus_Pending(t *testing.T) {
	tx, svc := newDividendFixture("initial")

	err := svc.UpdateTransferStatus(context.Background(), "tr_123", "pending")
	require.NoError(t, err)

	assert.Equal(t, "pending", tx.updatedStatus)
	assert.False(t, tx.markedPaid)
	assert.False(t, tx.reopened)
}

func TestUpdateTransferStatus_IdempotentRetry(t *testing.T) {
	tx, svc := newDividendFixture("processed")

	err := svc.UpdateTransferStatus(context.Background(), "tr_123", "processed")
	require.NoError(t, err)

	assert.Empty(t, tx.updatedStatus, "a repeated callback writes nothing")
	assert.False(t, tx.markedPaid)
}

func TestUpdateTransferStatus_UnknownTransfer(t *testing.T) {
	_, svc := newDividendFixture("pending")

	err := svc.UpdateTransferStatus(context.Background(), "tr_unknown", "processed")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTransferStatus_InvalidStatus(t *testing.T) {
	tx, svc := newDividendFixture("pending")

	for _, status := range []string{"", "initial", "done", "PROCESSED"} {
		err := svc.UpdateTransferStatus(context.Background(), "tr_123", status)
		assert.ErrorIs(t, err, ErrInvalidStatus, "status %q", status)
	}
	assert.Empty(t, tx.updatedStatus)
}
