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

	"github.com/vestcore/vest/internal/apierror"
	"github.com/vestcore/vest/model"
)

// PlanRequest defines a subscription tier for business users.
type PlanRequest struct {
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	DurationDays int    `json:"duration_days"`
}

func (r PlanRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Price, validation.Min(int64(0))),
		validation.Field(&r.DurationDays, validation.Required, validation.Min(1)),
	)
}

// ActivatePlanRequest subscribes a business user to a plan.
type ActivatePlanRequest struct {
	PlanID  string `json:"plan_id"`
	OwnerID string `json:"owner_id"`
}

func (r ActivatePlanRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PlanID, validation.Required),
		validation.Field(&r.OwnerID, validation.Required),
	)
}

func (l *Vest) CreatePlan(ctx context.Context, req PlanRequest) (*model.Plan, error) {
	_, span := tracer.Start(ctx, "Creating plan")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid plan request", err)
	}

	plan, err := l.datasource.CreatePlan(model.Plan{
		Name:         req.Name,
		Price:        req.Price,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (l *Vest) GetPlan(_ context.Context, planID string) (*model.Plan, error) {
	return l.datasource.GetPlan(planID)
}

// ActivatePlan settles a subscription: the business wallet pays the
// plan price into the platform's admin wallet, tagged SUBSCRIPTION,
// and the activation window opens only after the payment applied. A
// declined debit activates nothing.
func (l *Vest) ActivatePlan(ctx context.Context, req ActivatePlanRequest, adminOwnerID string) (*model.PlanActivation, *model.TransferResult, error) {
	ctx, span := tracer.Start(ctx, "Activating plan")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid activate plan request", err)
	}

	plan, err := l.datasource.GetPlan(req.PlanID)
	if err != nil {
		return nil, nil, err
	}
	if plan.Status != model.InstrumentStatusApproved {
		return nil, nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("plan %s is not available", req.PlanID), nil)
	}

	transferResult, err := l.TransferFunds(ctx, TransferRequest{
		SourceOwnerID:    req.OwnerID,
		SourceWalletType: model.WalletTypeBusiness,
		DestOwnerID:      adminOwnerID,
		DestWalletType:   model.WalletTypeAdmin,
		Amount:           plan.Price,
		Description:      fmt.Sprintf("subscription to plan %s", plan.Name),
		ReferenceType:    model.ReferenceSubscription,
		ReferenceID:      plan.PlanID,
		CreatedBy:        req.OwnerID,
	})
	if err != nil {
		return nil, nil, err
	}
	if transferResult.Declined {
		return nil, transferResult, nil
	}

	now := time.Now()
	activation, err := l.datasource.CreatePlanActivation(model.PlanActivation{
		PlanID:      plan.PlanID,
		OwnerID:     req.OwnerID,
		ActivatedAt: now,
		ExpiresAt:   now.AddDate(0, 0, plan.DurationDays),
	})
	if err != nil {
		return nil, nil, err
	}
	return &activation, transferResult, nil
}

// HasActivePlan reports whether the owner holds an unexpired
// activation.
func (l *Vest) HasActivePlan(_ context.Context, ownerID string) (bool, error) {
	_, err := l.datasource.GetActivePlanActivation(ownerID)
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
