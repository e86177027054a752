package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vestcore/vest/internal/apierror"
	"github.com/vestcore/vest/model"
)

func (d Datasource) CreateShare(share model.Share) (model.Share, error) {
	share.ShareID = model.GenerateUUIDWithSuffix("shr")
	share.CreatedAt = time.Now()
	if share.Status == "" {
		share.Status = model.InstrumentStatusPending
	}
	share.AvailableShares = share.TotalShares

	_, err := d.Conn.Exec(`
		INSERT INTO vest.shares (share_id, creator_id, project_id, price_per_share, total_shares, available_shares, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, share.ShareID, share.CreatorID, share.ProjectID, share.PricePerShare, share.TotalShares, share.AvailableShares, share.Status, share.CreatedAt)

	if err != nil {
		return model.Share{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create share", err)
	}
	return share, nil
}

func (d Datasource) GetShare(shareID string) (*model.Share, error) {
	row := d.Conn.QueryRow(`
		SELECT share_id, creator_id, project_id, price_per_share, total_shares, available_shares, status, created_at
		FROM vest.shares
		WHERE share_id = $1
	`, shareID)

	share := &model.Share{}
	err := row.Scan(&share.ShareID, &share.CreatorID, &share.ProjectID, &share.PricePerShare, &share.TotalShares, &share.AvailableShares, &share.Status, &share.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Share with ID '%s' not found", shareID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve share", err)
	}
	return share, nil
}

// ReserveShares atomically decrements availability. The predicate
// rejects oversubscription in the database instead of trusting a
// prior read.
func (d Datasource) ReserveShares(ctx context.Context, shareID string, units int64) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE vest.shares
		SET available_shares = available_shares - $2
		WHERE share_id = $1 AND available_shares >= $2
	`, shareID, units)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to reserve shares", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Not enough available units in share '%s'", shareID), nil)
	}
	return nil
}

// ReleaseShares returns reserved units after a failed settlement.
func (d Datasource) ReleaseShares(ctx context.Context, shareID string, units int64) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE vest.shares
		SET available_shares = available_shares + $2
		WHERE share_id = $1
	`, shareID, units)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to release shares", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Share with ID '%s' not found", shareID), nil)
	}
	return nil
}

func (d Datasource) CreateShareHolding(holding model.ShareHolding) (model.ShareHolding, error) {
	holding.HoldingID = model.GenerateUUIDWithSuffix("hld")
	holding.CreatedAt = time.Now()

	_, err := d.Conn.Exec(`
		INSERT INTO vest.share_holdings (holding_id, share_id, owner_id, units, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, holding.HoldingID, holding.ShareID, holding.OwnerID, holding.Units, holding.Amount, holding.CreatedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "foreign_key_violation" {
			return model.ShareHolding{}, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid share ID", err)
		}
		return model.ShareHolding{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create share holding", err)
	}
	return holding, nil
}

func (d Datasource) GetShareHoldingsByOwner(ownerID string) ([]model.ShareHolding, error) {
	rows, err := d.Conn.Query(`
		SELECT holding_id, share_id, owner_id, units, amount, created_at
		FROM vest.share_holdings
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve share holdings", err)
	}
	defer rows.Close()

	holdings := []model.ShareHolding{}
	for rows.Next() {
		holding := model.ShareHolding{}
		if err := rows.Scan(&holding.HoldingID, &holding.ShareID, &holding.OwnerID, &holding.Units, &holding.Amount, &holding.CreatedAt); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan share holding", err)
		}
		holdings = append(holdings, holding)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating share holdings", err)
	}
	return holdings, nil
}
