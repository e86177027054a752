package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"github.com/vestcore/vest/internal/apierror"
	"github.com/vestcore/vest/model"
)

// CreateWallet inserts a new wallet row with zeroed balances and
// version 1. The partial unique index on (owner_id, wallet_type,
// project_id) makes concurrent get-or-create races surface here as a
// conflict, which callers resolve by re-reading.
func (d Datasource) CreateWallet(wallet model.Wallet) (model.Wallet, error) {
	metaDataJSON, err := json.Marshal(wallet.MetaData)
	if err != nil {
		return model.Wallet{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	wallet.WalletID = model.GenerateUUIDWithSuffix("wal")
	wallet.CreatedAt = time.Now()
	wallet.InitializeBalanceFields()
	wallet.Version = 1

	_, err = d.Conn.Exec(`
		INSERT INTO vest.wallets (wallet_id, owner_id, wallet_type, project_id, balance, credit_balance, debit_balance, version, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, wallet.WalletID, wallet.OwnerID, wallet.WalletType, wallet.ProjectID, wallet.Balance.String(), wallet.CreditBalance.String(), wallet.DebitBalance.String(), wallet.Version, wallet.CreatedAt, metaDataJSON)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return model.Wallet{}, apierror.NewAPIError(apierror.ErrConflict, "Wallet already exists for this owner, type and project", err)
			default:
				return model.Wallet{}, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return model.Wallet{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create wallet", err)
	}

	return wallet, nil
}

const walletColumns = `wallet_id, owner_id, wallet_type, project_id, balance, credit_balance, debit_balance, version, created_at, meta_data`

func scanWallet(row interface {
	Scan(dest ...interface{}) error
}) (*model.Wallet, error) {
	wallet := &model.Wallet{}
	var balanceStr, creditStr, debitStr string
	var metaDataJSON []byte
	err := row.Scan(&wallet.WalletID, &wallet.OwnerID, &wallet.WalletType, &wallet.ProjectID, &balanceStr, &creditStr, &debitStr, &wallet.Version, &wallet.CreatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}

	wallet.Balance, _ = new(big.Int).SetString(balanceStr, 10)
	wallet.CreditBalance, _ = new(big.Int).SetString(creditStr, 10)
	wallet.DebitBalance, _ = new(big.Int).SetString(debitStr, 10)
	wallet.InitializeBalanceFields()

	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &wallet.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}
	return wallet, nil
}

// GetWallet looks up a wallet by its identity tuple. projectID is ""
// for wallet types that are not project scoped.
func (d Datasource) GetWallet(ownerID, walletType, projectID string) (*model.Wallet, error) {
	row := d.Conn.QueryRow(fmt.Sprintf(`
		SELECT %s
		FROM vest.wallets
		WHERE owner_id = $1 AND wallet_type = $2 AND project_id = $3
	`, walletColumns), ownerID, walletType, projectID)

	wallet, err := scanWallet(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Wallet not found for owner '%s' type '%s'", ownerID, walletType), err)
		}
		if _, ok := err.(apierror.APIError); ok {
			return nil, err
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve wallet", err)
	}
	return wallet, nil
}

func (d Datasource) GetWalletByID(walletID string) (*model.Wallet, error) {
	row := d.Conn.QueryRow(fmt.Sprintf(`
		SELECT %s
		FROM vest.wallets
		WHERE wallet_id = $1
	`, walletColumns), walletID)

	wallet, err := scanWallet(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Wallet with ID '%s' not found", walletID), err)
		}
		if _, ok := err.(apierror.APIError); ok {
			return nil, err
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve wallet", err)
	}
	return wallet, nil
}

// GetWalletsByOwner returns all wallets held by one owner, newest
// first. Used for the portfolio summary.
func (d Datasource) GetWalletsByOwner(ownerID string) ([]model.Wallet, error) {
	rows, err := d.Conn.Query(fmt.Sprintf(`
		SELECT %s
		FROM vest.wallets
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, walletColumns), ownerID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve wallets", err)
	}
	defer rows.Close()

	wallets := []model.Wallet{}
	for rows.Next() {
		wallet, err := scanWallet(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan wallet", err)
		}
		wallets = append(wallets, *wallet)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating wallets", err)
	}
	return wallets, nil
}

func insertLedgerEntry(ctx context.Context, tx *sql.Tx, entry *model.LedgerEntry) error {
	metaDataJSON, err := json.Marshal(entry.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vest.ledger_entries (entry_id, wallet_id, entry_type, amount, description, reference_type, reference_id, meta_data, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.EntryID, entry.WalletID, entry.EntryType, entry.Amount, entry.Description, entry.ReferenceType, entry.ReferenceID, metaDataJSON, entry.CreatedBy, entry.CreatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record ledger entry", err)
	}
	return nil
}

// updateWallet persists the materialized balances under optimistic
// locking. The version predicate catches lost updates; no rows
// affected means another writer got there first.
func updateWallet(ctx context.Context, tx *sql.Tx, wallet *model.Wallet) error {
	query := `
        UPDATE vest.wallets
        SET balance = $2, credit_balance = $3, debit_balance = $4, version = version + 1
        WHERE wallet_id = $1 AND version = $5
    `
	result, err := tx.ExecContext(ctx, query, wallet.WalletID, wallet.Balance.String(), wallet.CreditBalance.String(), wallet.DebitBalance.String(), wallet.Version)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update wallet", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Optimistic locking failure: wallet with ID '%s' may have been updated by another transaction", wallet.WalletID), nil)
	}

	wallet.Version++
	return nil
}

// ApplyLedgerEntry appends one entry and updates its wallet's
// materialized balances in a single database transaction. Either both
// land or neither does.
func (d Datasource) ApplyLedgerEntry(ctx context.Context, wallet *model.Wallet, entry *model.LedgerEntry) error {
	ctx, span := otel.Tracer("database.wallet").Start(ctx, "Applying ledger entry")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				span.RecordError(rbErr)
			}
		}
	}()

	if err = insertLedgerEntry(ctx, tx, entry); err != nil {
		return err
	}
	if err = updateWallet(ctx, tx, wallet); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// ApplyTransferEntries appends the debit and credit legs of a transfer
// and updates both wallets, all in one database transaction.
func (d Datasource) ApplyTransferEntries(ctx context.Context, source, destination *model.Wallet, debitEntry, creditEntry *model.LedgerEntry) error {
	ctx, span := otel.Tracer("database.wallet").Start(ctx, "Applying transfer entries")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				span.RecordError(rbErr)
			}
		}
	}()

	if err = insertLedgerEntry(ctx, tx, debitEntry); err != nil {
		return err
	}
	if err = insertLedgerEntry(ctx, tx, creditEntry); err != nil {
		return err
	}
	if err = updateWallet(ctx, tx, source); err != nil {
		return err
	}
	if err = updateWallet(ctx, tx, destination); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// SumLedgerEntries recomputes the credit and debit sides of a wallet
// from its entry log. Used by reconciliation to audit the
// materialized balances.
func (d Datasource) SumLedgerEntries(ctx context.Context, walletID string) (*big.Int, *big.Int, error) {
	var creditStr, debitStr string
	err := d.Conn.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE entry_type = 'CREDIT'), 0)::text,
			COALESCE(SUM(amount) FILTER (WHERE entry_type = 'DEBIT'), 0)::text
		FROM vest.ledger_entries
		WHERE wallet_id = $1
	`, walletID).Scan(&creditStr, &debitStr)
	if err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to sum ledger entries", err)
	}

	credit, ok := new(big.Int).SetString(creditStr, 10)
	if !ok {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Invalid credit sum", nil)
	}
	debit, ok := new(big.Int).SetString(debitStr, 10)
	if !ok {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Invalid debit sum", nil)
	}
	return credit, debit, nil
}

// UpdateWalletBalances writes recomputed balances back outside the
// normal entry path, still under the version guard. Only
// reconciliation calls this.
func (d Datasource) UpdateWalletBalances(ctx context.Context, wallet *model.Wallet) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	if err = updateWallet(ctx, tx, wallet); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to rollback transaction", rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}
