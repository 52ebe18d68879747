// internal/db/sqlx.go
package db

import (
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// NewSQLxDB opens a secondary database/sql connection through the pgx stdlib
// driver. The equity and dividend repositories run on it.
func NewSQLxDB(databaseURL string) (*sqlx.DB, error) {
	dbx, err := sqlx.Connect("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlx connection: %w", err)
	}

	dbx.SetMaxOpenConns(10)
	dbx.SetMaxIdleConns(5)
	dbx.SetConnMaxLifetime(time.Hour)

	log.Println("[DB] ✅ sqlx connection ready")
	return dbx, nil
}
