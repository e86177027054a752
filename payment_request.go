/*
Copyright 2025 Vestcore Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package vest

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/vestcore/vest/internal/apierror"
	"github.com/vestcore/vest/model"
)

// PaymentRequestInput is a user-submitted top-up or withdrawal
// awaiting admin review.
type PaymentRequestInput struct {
	OwnerID    string                 `json:"owner_id"`
	WalletType string                 `json:"wallet_type"`
	ProjectID  string                 `json:"project_id"`
	Direction  string                 `json:"direction"`
	Amount     int64                  `json:"amount"`
	Note       string                 `json:"note"`
	MetaData   map[string]interface{} `json:"meta_data"`
}

func (r PaymentRequestInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OwnerID, validation.Required),
		validation.Field(&r.WalletType, validation.Required, validation.In(walletTypes...)),
		validation.Field(&r.Direction, validation.Required, validation.In(model.PaymentDirectionDeposit, model.PaymentDirectionWithdrawal)),
		validation.Field(&r.Amount, validation.Required, validation.Min(int64(1))),
	)
}

// SubmitPaymentRequest records a PENDING request. No money moves until
// an admin reviews it.
func (l *Vest) SubmitPaymentRequest(ctx context.Context, input PaymentRequestInput) (*model.PaymentRequest, error) {
	_, span := tracer.Start(ctx, "Submitting payment request")
	defer span.End()

	if err := input.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid payment request", err)
	}

	request, err := l.datasource.CreatePaymentRequest(model.PaymentRequest{
		OwnerID:    input.OwnerID,
		WalletType: input.WalletType,
		ProjectID:  input.ProjectID,
		Direction:  input.Direction,
		Amount:     input.Amount,
		Note:       input.Note,
		MetaData:   input.MetaData,
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (l *Vest) GetPaymentRequest(_ context.Context, requestID string) (*model.PaymentRequest, error) {
	return l.datasource.GetPaymentRequest(requestID)
}

func (l *Vest) GetPendingPaymentRequests(_ context.Context, limit, offset int64) ([]model.PaymentRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.datasource.GetPendingPaymentRequests(limit, offset)
}

// ApprovePaymentRequest settles a reviewed request. A DEPOSIT credits
// the requester's wallet (TOPUP); a WITHDRAWAL debits it and may come
// back declined, in which case the request stays PENDING for the
// admin to retry or reject.
func (l *Vest) ApprovePaymentRequest(ctx context.Context, requestID, reviewedBy string) (*model.LedgerResult, error) {
	ctx, span := tracer.Start(ctx, "Approving payment request")
	defer span.End()

	request, err := l.datasource.GetPaymentRequest(requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != model.PaymentStatusPending {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("payment request %s already reviewed", requestID), nil)
	}

	var result *model.LedgerResult
	switch request.Direction {
	case model.PaymentDirectionDeposit:
		result, err = l.CreditWallet(ctx, CreditRequest{
			OwnerID:       request.OwnerID,
			WalletType:    request.WalletType,
			ProjectID:     request.ProjectID,
			Amount:        request.Amount,
			Description:   request.Note,
			ReferenceType: model.ReferenceTopUp,
			ReferenceID:   request.RequestID,
			CreatedBy:     reviewedBy,
		})
	case model.PaymentDirectionWithdrawal:
		result, err = l.DebitWallet(ctx, DebitRequest{
			OwnerID:       request.OwnerID,
			WalletType:    request.WalletType,
			ProjectID:     request.ProjectID,
			Amount:        request.Amount,
			Description:   request.Note,
			ReferenceType: model.ReferenceWithdrawal,
			ReferenceID:   request.RequestID,
			CreatedBy:     reviewedBy,
		})
	default:
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("unknown direction %s", request.Direction), nil)
	}
	if err != nil {
		return nil, err
	}
	if result.Declined {
		return result, nil
	}

	if err := l.datasource.ReviewPaymentRequest(requestID, model.PaymentStatusApproved, reviewedBy); err != nil {
		return nil, err
	}
	return result, nil
}

// RejectPaymentRequest closes a request without moving money.
func (l *Vest) RejectPaymentRequest(ctx context.Context, requestID, reviewedBy string) error {
	_, span := tracer.Start(ctx, "Rejecting payment request")
	defer span.End()

	return l.datasource.ReviewPaymentRequest(requestID, model.PaymentStatusRejected, reviewedBy)
}
