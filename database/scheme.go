package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/vestcore/vest/internal/apierror"
	"github.com/vestcore/vest/model"
)

func (d Datasource) CreateScheme(scheme model.Scheme) (model.Scheme, error) {
	metaDataJSON, err := json.Marshal(scheme.MetaData)
	if err != nil {
		return model.Scheme{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	scheme.SchemeID = model.GenerateUUIDWithSuffix("sch")
	scheme.CreatedAt = time.Now()
	if scheme.Status == "" {
		scheme.Status = model.InstrumentStatusPending
	}

	_, err = d.Conn.Exec(`
		INSERT INTO vest.schemes (scheme_id, creator_id, project_id, title, interest_percent, maturity_days, schedule_days, min_amount, status, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, scheme.SchemeID, scheme.CreatorID, scheme.ProjectID, scheme.Title, scheme.InterestPercent, scheme.MaturityDays, scheme.ScheduleDays, scheme.MinAmount, scheme.Status, scheme.CreatedAt, metaDataJSON)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return model.Scheme{}, apierror.NewAPIError(apierror.ErrConflict, "Scheme with this ID already exists", err)
		}
		return model.Scheme{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create scheme", err)
	}

	return scheme, nil
}

// GetScheme reads a scheme through the cache. Scheme terms are
// immutable once created; only status changes, and reviews invalidate
// the cached copy.
func (d Datasource) GetScheme(schemeID string) (*model.Scheme, error) {
	ctx := context.Background()
	cacheKey := fmt.Sprintf("scheme:%s", schemeID)

	if d.Cache != nil {
		cached := &model.Scheme{}
		if err := d.Cache.Get(ctx, cacheKey, cached); err == nil && cached.SchemeID != "" {
			return cached, nil
		}
	}

	row := d.Conn.QueryRow(`
		SELECT scheme_id, creator_id, project_id, title, interest_percent, maturity_days, schedule_days, min_amount, status, created_at, meta_data
		FROM vest.schemes
		WHERE scheme_id = $1
	`, schemeID)

	scheme := &model.Scheme{}
	var metaDataJSON []byte
	err := row.Scan(&scheme.SchemeID, &scheme.CreatorID, &scheme.ProjectID, &scheme.Title, &scheme.InterestPercent, &scheme.MaturityDays, &scheme.ScheduleDays, &scheme.MinAmount, &scheme.Status, &scheme.CreatedAt, &metaDataJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Scheme with ID '%s' not found", schemeID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve scheme", err)
	}

	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &scheme.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}

	if d.Cache != nil {
		if err := d.Cache.Set(ctx, cacheKey, scheme, 5*time.Minute); err != nil {
			log.Printf("Failed to cache scheme %s: %v", schemeID, err)
		}
	}
	return scheme, nil
}

func (d Datasource) UpdateSchemeStatus(schemeID, status string) error {
	result, err := d.Conn.Exec(`
		UPDATE vest.schemes
		SET status = $2
		WHERE scheme_id = $1
	`, schemeID, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update scheme status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Scheme with ID '%s' not found", schemeID), nil)
	}

	if d.Cache != nil {
		if err := d.Cache.Delete(context.Background(), fmt.Sprintf("scheme:%s", schemeID)); err != nil {
			log.Printf("Failed to invalidate scheme %s: %v", schemeID, err)
		}
	}
	return nil
}

// CreateSchemeInvestment persists a holding with the scheme terms
// already snapshotted by the caller.
func (d Datasource) CreateSchemeInvestment(investment model.SchemeInvestment) (model.SchemeInvestment, error) {
	metaDataJSON, err := json.Marshal(investment.MetaData)
	if err != nil {
		return model.SchemeInvestment{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	investment.InvestmentID = model.GenerateUUIDWithSuffix("inv")
	investment.CreatedAt = time.Now()
	if investment.Status == "" {
		investment.Status = model.InvestmentStatusActive
	}

	_, err = d.Conn.Exec(`
		INSERT INTO vest.scheme_investments (investment_id, scheme_id, owner_id, creator_id, project_id, principal, interest_percent, maturity_days, schedule_days, start_date, maturity_date, status, accumulated_interest, total_interest_paid, last_accrued_at, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, investment.InvestmentID, investment.SchemeID, investment.OwnerID, investment.CreatorID, investment.ProjectID, investment.Principal, investment.InterestPercent, investment.MaturityDays, investment.ScheduleDays, investment.StartDate, investment.MaturityDate, investment.Status, investment.AccumulatedInterest.String(), investment.TotalInterestPaid.String(), investment.LastAccruedAt, investment.CreatedAt, metaDataJSON)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "foreign_key_violation" {
			return model.SchemeInvestment{}, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid scheme ID", err)
		}
		return model.SchemeInvestment{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create scheme investment", err)
	}

	return investment, nil
}

const schemeInvestmentColumns = `investment_id, scheme_id, owner_id, creator_id, project_id, principal, interest_percent, maturity_days, schedule_days, start_date, maturity_date, status, accumulated_interest, total_interest_paid, last_accrued_at, created_at, meta_data`

func scanSchemeInvestment(row interface {
	Scan(dest ...interface{}) error
}) (*model.SchemeInvestment, error) {
	investment := &model.SchemeInvestment{}
	var accumulatedStr, paidStr string
	var lastAccrued sql.NullTime
	var metaDataJSON []byte
	err := row.Scan(&investment.InvestmentID, &investment.SchemeID, &investment.OwnerID, &investment.CreatorID, &investment.ProjectID, &investment.Principal, &investment.InterestPercent, &investment.MaturityDays, &investment.ScheduleDays, &investment.StartDate, &investment.MaturityDate, &investment.Status, &accumulatedStr, &paidStr, &lastAccrued, &investment.CreatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}

	investment.AccumulatedInterest, err = decimal.NewFromString(accumulatedStr)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Invalid accumulated interest value", err)
	}
	investment.TotalInterestPaid, err = decimal.NewFromString(paidStr)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Invalid total interest paid value", err)
	}
	if lastAccrued.Valid {
		t := lastAccrued.Time
		investment.LastAccruedAt = &t
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &investment.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}
	return investment, nil
}

func (d Datasource) GetSchemeInvestment(investmentID string) (*model.SchemeInvestment, error) {
	row := d.Conn.QueryRow(fmt.Sprintf(`
		SELECT %s
		FROM vest.scheme_investments
		WHERE investment_id = $1
	`, schemeInvestmentColumns), investmentID)

	investment, err := scanSchemeInvestment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Scheme investment with ID '%s' not found", investmentID), err)
		}
		if _, ok := err.(apierror.APIError); ok {
			return nil, err
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve scheme investment", err)
	}
	return investment, nil
}

// GetActiveSchemeInvestments pages through ACTIVE holdings in creation
// order. The accrual job walks these batches until an empty page.
func (d Datasource) GetActiveSchemeInvestments(ctx context.Context, limit, offset int64) ([]model.SchemeInvestment, error) {
	ctx, span := otel.Tracer("database.scheme").Start(ctx, "Fetching active scheme investments")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM vest.scheme_investments
		WHERE status = 'ACTIVE'
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`, schemeInvestmentColumns), limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve scheme investments", err)
	}
	defer rows.Close()

	investments := []model.SchemeInvestment{}
	for rows.Next() {
		investment, err := scanSchemeInvestment(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan scheme investment", err)
		}
		investments = append(investments, *investment)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating scheme investments", err)
	}
	return investments, nil
}

// UpdateSchemeInvestment writes back the accrual state after the day's
// processing for one holding.
func (d Datasource) UpdateSchemeInvestment(ctx context.Context, investment *model.SchemeInvestment) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE vest.scheme_investments
		SET status = $2, accumulated_interest = $3, total_interest_paid = $4, last_accrued_at = $5
		WHERE investment_id = $1
	`, investment.InvestmentID, investment.Status, investment.AccumulatedInterest.String(), investment.TotalInterestPaid.String(), investment.LastAccruedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update scheme investment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Scheme investment with ID '%s' not found", investment.InvestmentID), nil)
	}
	return nil
}
