package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/vestcore/vest/internal/apierror"
	"github.com/vestcore/vest/model"
)

const ledgerEntryColumns = `entry_id, wallet_id, entry_type, amount, description, reference_type, reference_id, meta_data, created_by, created_at`

func scanLedgerEntry(row interface {
	Scan(dest ...interface{}) error
}) (*model.LedgerEntry, error) {
	entry := &model.LedgerEntry{}
	var metaDataJSON []byte
	err := row.Scan(&entry.EntryID, &entry.WalletID, &entry.EntryType, &entry.Amount, &entry.Description, &entry.ReferenceType, &entry.ReferenceID, &metaDataJSON, &entry.CreatedBy, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &entry.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}
	return entry, nil
}

// GetLedgerEntries returns a wallet's entries in reverse chronological
// order, windowed by limit and offset.
func (d Datasource) GetLedgerEntries(ctx context.Context, walletID string, limit, offset int64) ([]model.LedgerEntry, error) {
	ctx, span := otel.Tracer("database.ledger").Start(ctx, "Fetching ledger entries")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM vest.ledger_entries
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ledgerEntryColumns), walletID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ledger entries", err)
	}
	defer rows.Close()

	entries := []model.LedgerEntry{}
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan ledger entry", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating ledger entries", err)
	}
	return entries, nil
}

func (d Datasource) GetLedgerEntry(ctx context.Context, entryID string) (*model.LedgerEntry, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM vest.ledger_entries
		WHERE entry_id = $1
	`, ledgerEntryColumns), entryID)

	entry, err := scanLedgerEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Ledger entry with ID '%s' not found", entryID), err)
		}
		if _, ok := err.(apierror.APIError); ok {
			return nil, err
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ledger entry", err)
	}
	return entry, nil
}
