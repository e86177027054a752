package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vestcore/vest/internal/apierror"
	"github.com/vestcore/vest/model"
)

func (d Datasource) CreatePaymentRequest(request model.PaymentRequest) (model.PaymentRequest, error) {
	metaDataJSON, err := json.Marshal(request.MetaData)
	if err != nil {
		return model.PaymentRequest{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	request.RequestID = model.GenerateUUIDWithSuffix("req")
	request.CreatedAt = time.Now()
	request.Status = model.PaymentStatusPending

	_, err = d.Conn.Exec(`
		INSERT INTO vest.payment_requests (request_id, owner_id, wallet_type, project_id, direction, amount, note, status, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, request.RequestID, request.OwnerID, request.WalletType, request.ProjectID, request.Direction, request.Amount, request.Note, request.Status, request.CreatedAt, metaDataJSON)

	if err != nil {
		return model.PaymentRequest{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create payment request", err)
	}
	return request, nil
}

const paymentRequestColumns = `request_id, owner_id, wallet_type, project_id, direction, amount, note, status, reviewed_by, reviewed_at, created_at, meta_data`

func scanPaymentRequest(row interface {
	Scan(dest ...interface{}) error
}) (*model.PaymentRequest, error) {
	request := &model.PaymentRequest{}
	var reviewedBy sql.NullString
	var reviewedAt sql.NullTime
	var metaDataJSON []byte
	err := row.Scan(&request.RequestID, &request.OwnerID, &request.WalletType, &request.ProjectID, &request.Direction, &request.Amount, &request.Note, &request.Status, &reviewedBy, &reviewedAt, &request.CreatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}
	if reviewedBy.Valid {
		request.ReviewedBy = reviewedBy.String
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		request.ReviewedAt = &t
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &request.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}
	return request, nil
}

func (d Datasource) GetPaymentRequest(requestID string) (*model.PaymentRequest, error) {
	row := d.Conn.QueryRow(fmt.Sprintf(`
		SELECT %s
		FROM vest.payment_requests
		WHERE request_id = $1
	`, paymentRequestColumns), requestID)

	request, err := scanPaymentRequest(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Payment request with ID '%s' not found", requestID), err)
		}
		if _, ok := err.(apierror.APIError); ok {
			return nil, err
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payment request", err)
	}
	return request, nil
}

func (d Datasource) GetPendingPaymentRequests(limit, offset int64) ([]model.PaymentRequest, error) {
	rows, err := d.Conn.Query(fmt.Sprintf(`
		SELECT %s
		FROM vest.payment_requests
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`, paymentRequestColumns), limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payment requests", err)
	}
	defer rows.Close()

	requests := []model.PaymentRequest{}
	for rows.Next() {
		request, err := scanPaymentRequest(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan payment request", err)
		}
		requests = append(requests, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating payment requests", err)
	}
	return requests, nil
}

// ReviewPaymentRequest moves a request out of PENDING exactly once.
// The status predicate makes a second review attempt a conflict
// rather than a silent overwrite.
func (d Datasource) ReviewPaymentRequest(requestID, status, reviewedBy string) error {
	result, err := d.Conn.Exec(`
		UPDATE vest.payment_requests
		SET status = $2, reviewed_by = $3, reviewed_at = NOW()
		WHERE request_id = $1 AND status = 'PENDING'
	`, requestID, status, reviewedBy)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to review payment request", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Payment request '%s' is not pending review", requestID), nil)
	}
	return nil
}
