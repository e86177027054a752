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
	"math"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"

	"github.com/vestcore/vest/internal/apierror"
	"github.com/vestcore/vest/model"
)

// ShareRequest carries the terms of a new share issue.
type ShareRequest struct {
	CreatorID     string `json:"creator_id"`
	ProjectID     string `json:"project_id"`
	PricePerShare int64  `json:"price_per_share"`
	TotalShares   int64  `json:"total_shares"`
}

func (r ShareRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CreatorID, validation.Required),
		validation.Field(&r.PricePerShare, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.TotalShares, validation.Required, validation.Min(int64(1))),
	)
}

// PurchaseRequest buys units of a share issue.
type PurchaseRequest struct {
	ShareID string `json:"share_id"`
	OwnerID string `json:"owner_id"`
	Units   int64  `json:"units"`
}

func (r PurchaseRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ShareID, validation.Required),
		validation.Field(&r.OwnerID, validation.Required),
		validation.Field(&r.Units, validation.Required, validation.Min(int64(1))),
	)
}

// CreateShare registers a share issue. All units start available.
func (l *Vest) CreateShare(ctx context.Context, req ShareRequest) (*model.Share, error) {
	_, span := tracer.Start(ctx, "Creating share issue")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid share request", err)
	}

	share, err := l.datasource.CreateShare(model.Share{
		CreatorID:     req.CreatorID,
		ProjectID:     req.ProjectID,
		PricePerShare: req.PricePerShare,
		TotalShares:   req.TotalShares,
		Status:        model.InstrumentStatusApproved,
	})
	if err != nil {
		return nil, err
	}
	return &share, nil
}

func (l *Vest) GetShare(_ context.Context, shareID string) (*model.Share, error) {
	return l.datasource.GetShare(shareID)
}

// PurchaseShares settles a share purchase. Units are reserved with an
// atomic conditional decrement before any money moves, so two buyers
// cannot oversubscribe the issue; a failed or declined debit releases
// the reservation.
func (l *Vest) PurchaseShares(ctx context.Context, req PurchaseRequest) (*model.ShareHolding, *model.LedgerResult, error) {
	ctx, span := tracer.Start(ctx, "Purchasing shares")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid purchase request", err)
	}

	share, err := l.datasource.GetShare(req.ShareID)
	if err != nil {
		return nil, nil, err
	}
	if share.Status != model.InstrumentStatusApproved {
		return nil, nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("share %s is not open for purchase", req.ShareID), nil)
	}

	if share.PricePerShare > 0 && req.Units > math.MaxInt64/share.PricePerShare {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("purchase of %d units at %d exceeds the maximum settleable amount", req.Units, share.PricePerShare), nil)
	}
	cost := share.PricePerShare * req.Units

	if err := l.datasource.ReserveShares(ctx, share.ShareID, req.Units); err != nil {
		return nil, nil, err
	}

	debitResult, err := l.DebitWallet(ctx, DebitRequest{
		OwnerID:       req.OwnerID,
		WalletType:    model.WalletTypeInvestorBusiness,
		ProjectID:     share.ProjectID,
		Amount:        cost,
		Description:   fmt.Sprintf("purchase of %d units", req.Units),
		ReferenceType: model.ReferenceShare,
		ReferenceID:   share.ShareID,
		CreatedBy:     req.OwnerID,
	})
	if err != nil || (debitResult != nil && debitResult.Declined) {
		if releaseErr := l.datasource.ReleaseShares(ctx, share.ShareID, req.Units); releaseErr != nil {
			logrus.Errorf("failed to release %d units of %s: %v", req.Units, share.ShareID, releaseErr)
		}
		if err != nil {
			return nil, nil, err
		}
		return nil, debitResult, nil
	}

	l.creditCounterparty(ctx, share.CreatorID, share.ProjectID, cost,
		fmt.Sprintf("sale of %d units", req.Units), model.ReferenceShare, share.ShareID, req.OwnerID)

	holding, err := l.datasource.CreateShareHolding(model.ShareHolding{
		ShareID: share.ShareID,
		OwnerID: req.OwnerID,
		Units:   req.Units,
		Amount:  cost,
	})
	if err != nil {
		return nil, nil, err
	}
	return &holding, debitResult, nil
}
