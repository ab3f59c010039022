package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// DocumentKind is the prefix of a human-readable document number.
type DocumentKind string

const (
	KindInvoice  DocumentKind = "GSA"
	KindPurchase DocumentKind = "ACHAT"
)

// nextDocumentNumber allocates the next number for kind in the year of at,
// formatted PREFIX-YYYY-NNNNNN. The upsert row lock makes the sequence gapless
// and safe under concurrent callers; a rolled-back caller releases its number.
func nextDocumentNumber(ctx context.Context, tx pgx.Tx, kind DocumentKind, at time.Time) (string, error) {
	year := at.Year()
	var last int64
	err := tx.QueryRow(ctx, `
		INSERT INTO document_sequences (kind, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (kind, year)
		DO UPDATE SET last_number = document_sequences.last_number + 1
		RETURNING last_number
	`, string(kind), year).Scan(&last)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s sequence number: %w", kind, err)
	}
	return formatDocumentNumber(kind, year, last), nil
}

func formatDocumentNumber(kind DocumentKind, year int, n int64) string {
	return fmt.Sprintf("%s-%d-%06d", kind, year, n)
}
