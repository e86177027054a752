package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vestcore/vest/internal/apierror"
	"github.com/vestcore/vest/model"
)

func (d Datasource) CreateCapitalOption(option model.CapitalOption) (model.CapitalOption, error) {
	metaDataJSON, err := json.Marshal(option.MetaData)
	if err != nil {
		return model.CapitalOption{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	option.CapitalID = model.GenerateUUIDWithSuffix("cap")
	option.CreatedAt = time.Now()
	if option.Status == "" {
		option.Status = model.InstrumentStatusPending
	}

	_, err = d.Conn.Exec(`
		INSERT INTO vest.capital_options (capital_id, creator_id, project_id, kind, title, min_amount, interest_percent, status, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, option.CapitalID, option.CreatorID, option.ProjectID, option.Kind, option.Title, option.MinAmount, option.InterestPercent, option.Status, option.CreatedAt, metaDataJSON)

	if err != nil {
		return model.CapitalOption{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create capital option", err)
	}
	return option, nil
}

func (d Datasource) GetCapitalOption(capitalID string) (*model.CapitalOption, error) {
	row := d.Conn.QueryRow(`
		SELECT capital_id, creator_id, project_id, kind, title, min_amount, interest_percent, status, created_at, meta_data
		FROM vest.capital_options
		WHERE capital_id = $1
	`, capitalID)

	option := &model.CapitalOption{}
	var metaDataJSON []byte
	err := row.Scan(&option.CapitalID, &option.CreatorID, &option.ProjectID, &option.Kind, &option.Title, &option.MinAmount, &option.InterestPercent, &option.Status, &option.CreatedAt, &metaDataJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Capital option with ID '%s' not found", capitalID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve capital option", err)
	}

	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &option.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}
	return option, nil
}

func (d Datasource) UpdateCapitalOptionStatus(capitalID, status string) error {
	result, err := d.Conn.Exec(`
		UPDATE vest.capital_options
		SET status = $2
		WHERE capital_id = $1
	`, capitalID, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update capital option status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Capital option with ID '%s' not found", capitalID), nil)
	}
	return nil
}

func (d Datasource) CreateCapitalInvestment(investment model.CapitalInvestment) (model.CapitalInvestment, error) {
	investment.InvestmentID = model.GenerateUUIDWithSuffix("cin")
	investment.CreatedAt = time.Now()

	_, err := d.Conn.Exec(`
		INSERT INTO vest.capital_investments (investment_id, capital_id, owner_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, investment.InvestmentID, investment.CapitalID, investment.OwnerID, investment.Amount, investment.CreatedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "foreign_key_violation" {
			return model.CapitalInvestment{}, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid capital option ID", err)
		}
		return model.CapitalInvestment{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create capital investment", err)
	}
	return investment, nil
}

func (d Datasource) GetCapitalInvestmentsByOwner(ownerID string) ([]model.CapitalInvestment, error) {
	rows, err := d.Conn.Query(`
		SELECT investment_id, capital_id, owner_id, amount, created_at
		FROM vest.capital_investments
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve capital investments", err)
	}
	defer rows.Close()

	investments := []model.CapitalInvestment{}
	for rows.Next() {
		investment := model.CapitalInvestment{}
		if err := rows.Scan(&investment.InvestmentID, &investment.CapitalID, &investment.OwnerID, &investment.Amount, &investment.CreatedAt); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan capital investment", err)
		}
		investments = append(investments, investment)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating capital investments", err)
	}
	return investments, nil
}
