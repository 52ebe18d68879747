package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capstack-hq/capstack-backend/internal/repository"
)

// ============================================
// Fakes
// ============================================

type fakeCompanyRepo struct {
	companies map[string]*repository.Company
}

func (f *fakeCompanyRepo) Create(context.Context, *repository.Company) error { return nil }
func (f *fakeCompanyRepo) FindByID(_ context.Context, id string) (*repository.Company, error) {
	return f.companies[id], nil
}
func (f *fakeCompanyRepo) FindByUserID(context.Context, string) ([]*repository.Company, error) {
	return nil, nil
}
func (f *fakeCompanyRepo) Update(context.Context, *repository.Company) error { return nil }

type fakeEquityTx struct {
	grant *repository.EquityGrant

	cancelledGrantID string
	cancelledReason  string
	forfeited        int64
	poolReturns      map[string]int64
}

func (t *fakeEquityTx) GetGrantForUpdate(_ context.Context, grantID string) (*repository.EquityGrant, error) {
	if t.grant == nil || t.grant.ID != grantID {
		return nil, nil
	}
	return t.grant, nil
}

func (t *fakeEquityTx) UpdateGrantCancelled(_ context.Context, grantID, reason string, forfeited int64) error {
	t.cancelledGrantID = grantID
	t.cancelledReason = reason
	t.forfeited = forfeited
	return nil
}

func (t *fakeEquityTx) AddPoolAvailableShares(_ context.Context, poolID string, shares int64) error {
	if t.poolReturns == nil {
		t.poolReturns = map[string]int64{}
	}
	t.poolReturns[poolID] += shares
	return nil
}

type fakeEquityRepo struct {
	tx       *fakeEquityTx
	invoices map[string]*repository.Invoice

	appliedInvoiceID string
	appliedPct       int
	appliedCents     int64
	appliedShares    int64
}

func (r *fakeEquityRepo) InTx(_ context.Context, fn func(tx repository.EquityTx) error) error {
	return fn(r.tx)
}

func (r *fakeEquityRepo) FindGrantByID(context.Context, string) (*repository.EquityGrant, error) {
	return nil, nil
}
func (r *fakeEquityRepo) ListGrantsByCompany(context.Context, string) ([]*repository.EquityGrant, error) {
	return nil, nil
}
func (r *fakeEquityRepo) FindInvoiceByID(_ context.Context, id string) (*repository.Invoice, error) {
	return r.invoices[id], nil
}
func (r *fakeEquityRepo) UpdateInvoiceEquity(_ context.Context, invoiceID string, pct int, amountCents, shares int64) error {
	r.appliedInvoiceID = invoiceID
	r.appliedPct = pct
	r.appliedCents = amountCents
	r.appliedShares = shares
	return nil
}
func (r *fakeEquityRepo) FindPoolByCompany(context.Context, string) (*repository.OptionPool, error) {
	return nil, nil
}

func newEquityFixture() (*fakeEquityRepo, *fakeCompanyRepo, EquityService) {
	sharePrice := "2.5000"
	companyRepo := &fakeCompanyRepo{companies: map[string]*repository.Company{
		"c1": {ID: "c1", Name: "Northwind Robotics", SharePriceUSD: &sharePrice, EquityEnabled: true},
	}}
	equityRepo := &fakeEquityRepo{tx: &fakeEquityTx{}, invoices: map[string]*repository.Invoice{}}
	svc := NewEquityService(equityRepo, companyRepo, &fakeUserRepo{usersByID: map[string]*repository.User{}}, nil, nil)
	return equityRepo, companyRepo, svc
}

// ============================================
// Calculation
// ============================================

func TestCalculateEquity_Rounding(t *testing.T) {
	tests := []struct {
		name       string
		totalCents int64
		percentage int
		sharePrice string
		wantCents  int64
		wantShares int64
	}{
		{"even split", 100000, 50, "2.5", 50000, 200},
		{"rounds half cent up", 333, 50, "1", 167, 2},
		{"zero percent", 100000, 0, "2.5", 0, 0},
		{"full percent", 45001, 100, "0.01", 45001, 45001},
		{"fractional shares round", 100000, 33, "7", 33000, 47},
		{"tiny invoice", 1, 50, "2.5", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := decimal.NewFromString(tt.sharePrice)
			require.NoError(t, err)

			got := calculateEquity(tt.totalCents, tt.percentage, price)
			assert.Equal(t, tt.wantCents, got.AmountCents)
			assert.Equal(t, tt.wantShares, got.Shares)
			assert.Equal(t, tt.percentage, got.SelectedPercentage)
		})
	}
}

func TestCalculateInvoiceEquity_Guards(t *testing.T) {
	_, companyRepo, svc := newEquityFixture()
	ctx := context.Background()

	_, err := svc.CalculateInvoiceEquity(ctx, "c1", 1000, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CalculateInvoiceEquity(ctx, "c1", 1000, 101)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CalculateInvoiceEquity(ctx, "missing", 1000, 10)
	assert.ErrorIs(t, err, ErrNotFound)

	companyRepo.companies["c2"] = &repository.Company{ID: "c2", EquityEnabled: false}
	_, err = svc.CalculateInvoiceEquity(ctx, "c2", 1000, 10)
	assert.ErrorIs(t, err, ErrEquityDisabled)

	zero := "0"
	companyRepo.companies["c3"] = &repository.Company{ID: "c3", EquityEnabled: true, SharePriceUSD: &zero}
	_, err = svc.CalculateInvoiceEquity(ctx, "c3", 1000, 10)
	assert.ErrorIs(t, err, ErrEquityDisabled)
}

// ============================================
// Apply to invoice
// ============================================

func TestApplyInvoiceEquity(t *testing.T) {
	equityRepo, _, svc := newEquityFixture()
	equityRepo.invoices["inv1"] = &repository.Invoice{
		ID: "inv1", CompanyID: "c1", TotalAmountCents: 100000,
	}

	equity, err := svc.ApplyInvoiceEquity(context.Background(), "c1", "inv1", 50, testActorID)
	require.NoError(t, err)

	assert.Equal(t, int64(50000), equity.AmountCents)
	assert.Equal(t, int64(200), equity.Shares)
	assert.Equal(t, "inv1", equityRepo.appliedInvoiceID)
	assert.Equal(t, 50, equityRepo.appliedPct)
	assert.Equal(t, int64(50000), equityRepo.appliedCents)
	assert.Equal(t, int64(200), equityRepo.appliedShares)
}

func TestApplyInvoiceEquity_WrongCompany(t *testing.T) {
	equityRepo, _, svc := newEquityFixture()
	equityRepo.invoices["inv1"] = &repository.Invoice{
		ID: "inv1", CompanyID: "other-company", TotalAmountCents: 100000,
	}

	_, err := svc.ApplyInvoiceEquity(context.Background(), "c1", "inv1", 50, testActorID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, equityRepo.appliedInvoiceID)
}

// ============================================
// Grant cancellation
// ============================================

func TestCancelGrant(t *testing.T) {
	equityRepo, _, svc := newEquityFixture()
	poolID := "pool1"
	equityRepo.tx.grant = &repository.EquityGrant{
		ID: "g1", CompanyID: "c1", UserID: "holder-1",
		OptionPoolID:    &poolID,
		NumberOfShares:  10000,
		VestedShares:    2500,
		UnvestedShares:  7500,
		ForfeitedShares: 100,
		Status:          "active",
	}

	err := svc.CancelGrant(context.Background(), "c1", "g1", testActorID, "engagement ended")
	require.NoError(t, err)

	assert.Equal(t, "g1", equityRepo.tx.cancelledGrantID)
	assert.Equal(t, "engagement ended", equityRepo.tx.cancelledReason)
	assert.Equal(t, int64(7600), equityRepo.tx.forfeited, "forfeited accumulates prior forfeits plus unvested")
	assert.Equal(t, int64(7500), equityRepo.tx.poolReturns["pool1"], "unvested shares flow back to the pool")
}

func TestCancelGrant_NoPool(t *testing.T) {
	equityRepo, _, svc := newEquityFixture()
	equityRepo.tx.grant = &repository.EquityGrant{
		ID: "g1", CompanyID: "c1", UserID: "holder-1",
		UnvestedShares: 5000,
		Status:         "active",
	}

	err := svc.CancelGrant(context.Background(), "c1", "g1", testActorID, "performance")
	require.NoError(t, err)
	assert.Empty(t, equityRepo.tx.poolReturns)
}

func TestCancelGrant_Errors(t *testing.T) {
	tests := []struct {
		name    string
		grant   *repository.EquityGrant
		wantErr error
	}{
		{"missing grant", nil, ErrNotFound},
		{
			"grant belongs elsewhere",
			&repository.EquityGrant{ID: "g1", CompanyID: "other", Status: "active"},
			ErrNotFound,
		},
		{
			"already cancelled",
			&repository.EquityGrant{ID: "g1", CompanyID: "c1", Status: "cancelled"},
			ErrGrantNotActive,
		},
		{
			"exercised",
			&repository.EquityGrant{ID: "g1", CompanyID: "c1", Status: "exercised"},
			ErrGrantNotActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equityRepo, _, svc := newEquityFixture()
			equityRepo.tx.grant = tt.grant

			err := svc.CancelGrant(context.Background(), "c1", "g1", testActorID, "reason")
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
			assert.Empty(t, equityRepo.tx.cancelledGrantID, "nothing may be written on a rejected cancel")
		})
	}
}
