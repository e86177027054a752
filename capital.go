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

// CapitalOptionRequest carries the terms of a new loan or partnership
// instrument.
type CapitalOptionRequest struct {
	CreatorID       string                 `json:"creator_id"`
	ProjectID       string                 `json:"project_id"`
	Kind            string                 `json:"kind"`
	Title           string                 `json:"title"`
	MinAmount       int64                  `json:"min_amount"`
	InterestPercent float64                `json:"interest_percent"`
	MetaData        map[string]interface{} `json:"meta_data"`
}

func (r CapitalOptionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CreatorID, validation.Required),
		validation.Field(&r.Kind, validation.Required, validation.In(model.CapitalKindLoan, model.CapitalKindPartnership)),
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.MinAmount, validation.Min(int64(0))),
		validation.Field(&r.InterestPercent, validation.Min(0.0)),
	)
}

// CapitalInvestRequest commits an investor into a capital option.
type CapitalInvestRequest struct {
	CapitalID string `json:"capital_id"`
	OwnerID   string `json:"owner_id"`
	Amount    int64  `json:"amount"`
}

func (r CapitalInvestRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CapitalID, validation.Required),
		validation.Field(&r.OwnerID, validation.Required),
		validation.Field(&r.Amount, validation.Required, validation.Min(int64(1))),
	)
}

// CreateCapitalOption registers a loan or partnership instrument in
// PENDING state.
func (l *Vest) CreateCapitalOption(ctx context.Context, req CapitalOptionRequest) (*model.CapitalOption, error) {
	_, span := tracer.Start(ctx, "Creating capital option")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid capital option request", err)
	}

	option, err := l.datasource.CreateCapitalOption(model.CapitalOption{
		CreatorID:       req.CreatorID,
		ProjectID:       req.ProjectID,
		Kind:            req.Kind,
		Title:           req.Title,
		MinAmount:       req.MinAmount,
		InterestPercent: req.InterestPercent,
		MetaData:        req.MetaData,
	})
	if err != nil {
		return nil, err
	}
	return &option, nil
}

// ReviewCapitalOption moves a PENDING option to APPROVED or REJECTED.
func (l *Vest) ReviewCapitalOption(ctx context.Context, capitalID, status string) (*model.CapitalOption, error) {
	_, span := tracer.Start(ctx, "Reviewing capital option")
	defer span.End()

	option, err := l.datasource.GetCapitalOption(capitalID)
	if err != nil {
		return nil, err
	}
	if err := reviewInstrumentStatus(option.Status, status); err != nil {
		return nil, err
	}
	if err := l.datasource.UpdateCapitalOptionStatus(capitalID, status); err != nil {
		return nil, err
	}
	option.Status = status
	return option, nil
}

func (l *Vest) GetCapitalOption(_ context.Context, capitalID string) (*model.CapitalOption, error) {
	return l.datasource.GetCapitalOption(capitalID)
}

// InvestInCapitalOption settles an investor commitment: debit the
// investor wallet, credit the creator's business wallet, record the
// commitment only after the debit succeeded. A declined debit returns
// the declined result with nothing recorded.
func (l *Vest) InvestInCapitalOption(ctx context.Context, req CapitalInvestRequest) (*model.CapitalInvestment, *model.LedgerResult, error) {
	ctx, span := tracer.Start(ctx, "Investing in capital option")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid capital invest request", err)
	}

	option, err := l.datasource.GetCapitalOption(req.CapitalID)
	if err != nil {
		return nil, nil, err
	}
	if option.Status != model.InstrumentStatusApproved {
		return nil, nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("capital option %s is not open for investment", req.CapitalID), nil)
	}
	if req.Amount < option.MinAmount {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("amount below option minimum of %d", option.MinAmount), nil)
	}

	debitResult, err := l.DebitWallet(ctx, DebitRequest{
		OwnerID:       req.OwnerID,
		WalletType:    model.WalletTypeInvestorBusiness,
		ProjectID:     option.ProjectID,
		Amount:        req.Amount,
		Description:   fmt.Sprintf("investment into %s", option.Title),
		ReferenceType: model.ReferenceInvestment,
		ReferenceID:   option.CapitalID,
		CreatedBy:     req.OwnerID,
	})
	if err != nil {
		return nil, nil, err
	}
	if debitResult.Declined {
		return nil, debitResult, nil
	}

	l.creditCounterparty(ctx, option.CreatorID, option.ProjectID, req.Amount,
		fmt.Sprintf("capital raised via %s", option.Title), model.ReferenceInvestment, option.CapitalID, req.OwnerID)

	investment, err := l.datasource.CreateCapitalInvestment(model.CapitalInvestment{
		CapitalID: option.CapitalID,
		OwnerID:   req.OwnerID,
		Amount:    req.Amount,
	})
	if err != nil {
		return nil, nil, err
	}
	return &investment, debitResult, nil
}
