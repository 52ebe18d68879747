// internal/seed/seed.go
package seed

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/capstack-hq/capstack-backend/internal/repository"
)

func SeedData(repos *repository.Repositories, pool *pgxpool.Pool) {
	ctx := context.Background()

	// Check if data already exists
	existing, _ := repos.UserRepo.FindByEmail(ctx, "claire.fontaine@capstack.io")
	if existing != nil {
		log.Println("[Seed] Data already exists, skipping...")
		return
	}

	log.Println("[Seed] 🌱 Creating initial data with real scenarios...")

	// ============================================
	// CREATE USERS (4 real people)
	// ============================================
	password, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)

	// 1. CLAIRE - Company owner and administrator
	claire := &repository.User{
		Email:    "claire.fontaine@capstack.io",
		Password: string(password),
		Name:     "Claire Fontaine",
		Status:   "online",
	}
	repos.UserRepo.Create(ctx, claire)

	// 2. DIEGO - Second administrator
	diego := &repository.User{
		Email:    "diego.moran@capstack.io",
		Password: string(password),
		Name:     "Diego Moran",
		Status:   "online",
	}
	repos.UserRepo.Create(ctx, diego)

	// 3. PRIYA - Company lawyer
	priya := &repository.User{
		Email:    "priya.raman@lexfield.law",
		Password: string(password),
		Name:     "Priya Raman",
		Status:   "away",
	}
	repos.UserRepo.Create(ctx, priya)

	// 4. TOMASZ - Contractor with an equity grant
	tomasz := &repository.User{
		Email:    "tomasz.wojcik@freelance.dev",
		Password: string(password),
		Name:     "Tomasz Wojcik",
		Status:   "online",
	}
	repos.UserRepo.Create(ctx, tomasz)

	log.Printf("✅ Created 4 users: Claire (admin/owner), Diego (admin), Priya (lawyer), Tomasz (contractor)")

	// ============================================
	// SCENARIO 1: CREATE COMPANY
	// Claire creates "Northwind Robotics" with equity enabled
	// ============================================
	sharePrice := "2.5000"
	company := &repository.Company{
		Name:          "Northwind Robotics",
		OwnerID:       claire.ID,
		SharePriceUSD: &sharePrice,
		EquityEnabled: true,
	}
	repos.CompanyRepo.Create(ctx, company)

	// Seat Claire and Diego as administrators
	repos.MemberRepo.AddAdmin(ctx, &repository.CompanyAdministrator{
		CompanyID: company.ID,
		UserID:    claire.ID,
	})
	repos.MemberRepo.AddAdmin(ctx, &repository.CompanyAdministrator{
		CompanyID: company.ID,
		UserID:    diego.ID,
	})

	// Seat Priya as the company lawyer
	pool.Exec(ctx,
		`INSERT INTO company_lawyers (external_id, company_id, user_id) VALUES ($1, $2, $3)`,
		repository.NewExternalID(), company.ID, priya.ID,
	)

	log.Printf("✅ Created company: Northwind Robotics (share price $2.50, equity on)")
	log.Printf("   └─ Admins: Claire, Diego; Lawyer: Priya")

	// ============================================
	// SCENARIO 2: CONTRACTOR + OPTION POOL + GRANT
	// Tomasz is an active contractor with a partially vested grant
	// ============================================
	pool.Exec(ctx,
		`INSERT INTO company_contractors (external_id, company_id, user_id, pay_rate_cents, equity_percentage)
		 VALUES ($1, $2, $3, $4, $5)`,
		repository.NewExternalID(), company.ID, tomasz.ID, 12500, 20,
	)

	var poolID string
	pool.QueryRow(ctx,
		`INSERT INTO option_pools (company_id, name, authorized_shares, issued_shares, available_shares)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		company.ID, "2026 Option Pool", 100000, 10000, 90000,
	).Scan(&poolID)

	pool.Exec(ctx,
		`INSERT INTO equity_grants
		   (external_id, company_id, user_id, option_pool_id, number_of_shares,
		    vested_shares, unvested_shares, share_price_usd, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'active')`,
		repository.NewExternalID(), company.ID, tomasz.ID, poolID,
		10000, 2500, 7500, sharePrice,
	)

	log.Printf("✅ Created option pool (100k authorized) and Tomasz's grant (10k shares, 2.5k vested)")

	// ============================================
	// SCENARIO 3: OPEN INVOICE
	// Tomasz has an open invoice eligible for an equity election
	// ============================================
	pool.Exec(ctx,
		`INSERT INTO invoices (external_id, company_id, user_id, total_amount_cents, status)
		 VALUES ($1, $2, $3, $4, 'open')`,
		repository.NewExternalID(), company.ID, tomasz.ID, 450000,
	)

	log.Printf("✅ Created open invoice for Tomasz ($4,500.00)")

	// ============================================
	// SCENARIO 4: DIVIDEND RUN IN FLIGHT
	// One payment pending with the processor, dividends issued against it
	// ============================================
	var paymentID string
	pool.QueryRow(ctx,
		`INSERT INTO dividend_payments
		   (external_id, company_id, transfer_id, processor_name, total_transaction_cents, status)
		 VALUES ($1, $2, $3, $4, $5, 'pending') RETURNING id`,
		repository.NewExternalID(), company.ID, "tr_seed_0001", "increase", 120000,
	).Scan(&paymentID)

	pool.Exec(ctx,
		`INSERT INTO dividends (company_id, user_id, dividend_payment_id, total_amount_cents, status)
		 VALUES ($1, $2, $3, $4, 'issued')`,
		company.ID, tomasz.ID, paymentID, 120000,
	)

	log.Printf("✅ Created pending dividend payment tr_seed_0001 ($1,200.00 to Tomasz)")

	log.Println("[Seed] 🎉 Seed complete")
	log.Println("[Seed] Login with any seeded email / password123")
}
