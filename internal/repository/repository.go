package repository

import (
	"crypto/rand"
	"errors"
	"math/big"
)

var (
	// ErrDuplicateMember signals a unique-constraint hit on a role table.
	ErrDuplicateMember = errors.New("user already holds this role")

	// ErrBatchStatement wraps a failed multi-row INSERT whose rows are safe
	// to retry one at a time. Statement failures outside the retryable
	// SQLSTATE classes are returned unwrapped and abort the transaction.
	ErrBatchStatement = errors.New("batch insert statement failed")
)

const (
	externalIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	// ExternalIDLength is the length of the display/routing identifier on
	// role, company and ledger rows. Not a security token.
	ExternalIDLength = 13
)

// NewExternalID returns a random lowercase-alphanumeric identifier.
func NewExternalID() string {
	max := big.NewInt(int64(len(externalIDAlphabet)))
	buf := make([]byte, ExternalIDLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			panic(err)
		}
		buf[i] = externalIDAlphabet[n.Int64()]
	}
	return string(buf)
}
