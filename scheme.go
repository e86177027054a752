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
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"

	"github.com/vestcore/vest/internal/apierror"
	"github.com/vestcore/vest/internal/notification"
	"github.com/vestcore/vest/model"
)

// SchemeRequest carries the terms of a new fixed-deposit scheme.
type SchemeRequest struct {
	CreatorID       string                 `json:"creator_id"`
	ProjectID       string                 `json:"project_id"`
	Title           string                 `json:"title"`
	InterestPercent float64                `json:"interest_percent"`
	MaturityDays    int                    `json:"maturity_days"`
	ScheduleDays    int                    `json:"schedule_days"`
	MinAmount       int64                  `json:"min_amount"`
	MetaData        map[string]interface{} `json:"meta_data"`
}

func (r SchemeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CreatorID, validation.Required),
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.InterestPercent, validation.Required, validation.Min(0.01)),
		validation.Field(&r.MaturityDays, validation.Required, validation.Min(1)),
		validation.Field(&r.ScheduleDays, validation.Min(0)),
		validation.Field(&r.MinAmount, validation.Min(int64(0))),
	)
}

// SubscribeRequest commits an investor into a scheme.
type SubscribeRequest struct {
	SchemeID string `json:"scheme_id"`
	OwnerID  string `json:"owner_id"`
	Amount   int64  `json:"amount"`
}

func (r SubscribeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SchemeID, validation.Required),
		validation.Field(&r.OwnerID, validation.Required),
		validation.Field(&r.Amount, validation.Required, validation.Min(int64(1))),
	)
}

// CreateScheme registers a new scheme in PENDING state awaiting admin
// approval.
func (l *Vest) CreateScheme(ctx context.Context, req SchemeRequest) (*model.Scheme, error) {
	_, span := tracer.Start(ctx, "Creating scheme")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid scheme request", err)
	}

	scheme, err := l.datasource.CreateScheme(model.Scheme{
		CreatorID:       req.CreatorID,
		ProjectID:       req.ProjectID,
		Title:           req.Title,
		InterestPercent: req.InterestPercent,
		MaturityDays:    req.MaturityDays,
		ScheduleDays:    req.ScheduleDays,
		MinAmount:       req.MinAmount,
		MetaData:        req.MetaData,
	})
	if err != nil {
		return nil, err
	}
	return &scheme, nil
}

// reviewInstrumentStatus enforces the PENDING -> APPROVED/REJECTED
// transition shared by schemes and capital options.
func reviewInstrumentStatus(current, next string) error {
	if current != model.InstrumentStatusPending {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("instrument already reviewed: status is %s", current), nil)
	}
	if next != model.InstrumentStatusApproved && next != model.InstrumentStatusRejected {
		return apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("invalid review status %s", next), nil)
	}
	return nil
}

// ReviewScheme moves a PENDING scheme to APPROVED or REJECTED.
func (l *Vest) ReviewScheme(ctx context.Context, schemeID, status string) (*model.Scheme, error) {
	_, span := tracer.Start(ctx, "Reviewing scheme")
	defer span.End()

	scheme, err := l.datasource.GetScheme(schemeID)
	if err != nil {
		return nil, err
	}
	if err := reviewInstrumentStatus(scheme.Status, status); err != nil {
		return nil, err
	}
	if err := l.datasource.UpdateSchemeStatus(schemeID, status); err != nil {
		return nil, err
	}
	scheme.Status = status
	return scheme, nil
}

func (l *Vest) GetScheme(_ context.Context, schemeID string) (*model.Scheme, error) {
	return l.datasource.GetScheme(schemeID)
}

// SubscribeToScheme settles an investor into a scheme: the investor
// wallet is debited first, the creator's business wallet is credited,
// and only then is the holding recorded with the scheme terms
// snapshotted. A declined debit returns the declined result with no
// holding and no entries.
func (l *Vest) SubscribeToScheme(ctx context.Context, req SubscribeRequest) (*model.SchemeInvestment, *model.LedgerResult, error) {
	ctx, span := tracer.Start(ctx, "Subscribing to scheme")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid subscribe request", err)
	}

	scheme, err := l.datasource.GetScheme(req.SchemeID)
	if err != nil {
		return nil, nil, err
	}
	if scheme.Status != model.InstrumentStatusApproved {
		return nil, nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("scheme %s is not open for subscription", req.SchemeID), nil)
	}
	if req.Amount < scheme.MinAmount {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("amount below scheme minimum of %d", scheme.MinAmount), nil)
	}

	debitResult, err := l.DebitWallet(ctx, DebitRequest{
		OwnerID:       req.OwnerID,
		WalletType:    model.WalletTypeInvestorBusiness,
		ProjectID:     scheme.ProjectID,
		Amount:        req.Amount,
		Description:   fmt.Sprintf("subscription to %s", scheme.Title),
		ReferenceType: model.ReferenceInvestment,
		ReferenceID:   scheme.SchemeID,
		CreatedBy:     req.OwnerID,
	})
	if err != nil {
		return nil, nil, err
	}
	if debitResult.Declined {
		return nil, debitResult, nil
	}

	l.creditCounterparty(ctx, scheme.CreatorID, scheme.ProjectID, req.Amount,
		fmt.Sprintf("investment into %s", scheme.Title), model.ReferenceInvestment, scheme.SchemeID, req.OwnerID)

	start := time.Now()
	investment, err := l.datasource.CreateSchemeInvestment(model.SchemeInvestment{
		SchemeID:        scheme.SchemeID,
		OwnerID:         req.OwnerID,
		CreatorID:       scheme.CreatorID,
		ProjectID:       scheme.ProjectID,
		Principal:       req.Amount,
		InterestPercent: scheme.InterestPercent,
		MaturityDays:    scheme.MaturityDays,
		ScheduleDays:    scheme.ScheduleDays,
		StartDate:       start,
		MaturityDate:    start.AddDate(0, 0, scheme.MaturityDays),
	})
	if err != nil {
		return nil, nil, err
	}
	return &investment, debitResult, nil
}

// creditCounterparty credits the business side of a settlement. The
// investor's debit has already been committed; an unresolvable
// counterparty wallet is logged and reported, never unwound.
func (l *Vest) creditCounterparty(ctx context.Context, creatorID, projectID string, amount int64, description, referenceType, referenceID, createdBy string) {
	_, err := l.CreditWallet(ctx, CreditRequest{
		OwnerID:       creatorID,
		WalletType:    model.WalletTypeBusiness,
		ProjectID:     projectID,
		Amount:        amount,
		Description:   description,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		CreatedBy:     createdBy,
	})
	if err != nil {
		logrus.Errorf("counterparty credit skipped for %s (%s): %v", creatorID, referenceID, err)
		notification.NotifyError(err)
	}
}
