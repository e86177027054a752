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
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vestcore/vest/config"
	"github.com/vestcore/vest/internal/notification"
	"github.com/vestcore/vest/model"
)

// AccrualSummary reports what one daily run did.
type AccrualSummary struct {
	Processed int `json:"processed"`
	Accrued   int `json:"accrued"`
	Payouts   int `json:"payouts"`
	Matured   int `json:"matured"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// ProcessDueInvestments is the daily interest and maturity job. It
// walks ACTIVE scheme investments in batches and, per investment:
// pays out principal plus accumulated interest at maturity (terminal),
// otherwise accrues one day of simple interest and fires the periodic
// payout when the schedule lands. Each investment is persisted as it
// is processed, so a crashed run can be re-run the same day without
// double-accruing. Per-investment failures are reported and the batch
// continues.
func (l *Vest) ProcessDueInvestments(ctx context.Context, asOf time.Time) (*AccrualSummary, error) {
	ctx, span := tracer.Start(ctx, "Processing due investments")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	batchSize := int64(cnf.Accrual.BatchSize)
	if batchSize <= 0 {
		batchSize = 500
	}

	summary := &AccrualSummary{}
	var offset int64
	for {
		investments, err := l.datasource.GetActiveSchemeInvestments(ctx, batchSize, offset)
		if err != nil {
			return summary, err
		}
		if len(investments) == 0 {
			break
		}

		maturedBefore := summary.Matured
		for i := range investments {
			investment := &investments[i]
			summary.Processed++
			if err := l.processInvestment(ctx, investment, asOf, summary); err != nil {
				summary.Failed++
				logrus.Errorf("accrual failed for %s: %v", investment.InvestmentID, err)
				notification.NotifyError(fmt.Errorf("accrual failed for %s: %w", investment.InvestmentID, err))
			}
		}

		if int64(len(investments)) < batchSize {
			break
		}
		// matured investments drop out of the ACTIVE scan, shifting
		// every later row back; advance only past the rows still there
		offset += int64(len(investments) - (summary.Matured - maturedBefore))
	}

	logrus.Infof("accrual run for %s: %d processed, %d accrued, %d payouts, %d matured, %d skipped, %d failed",
		asOf.Format("2006-01-02"), summary.Processed, summary.Accrued, summary.Payouts, summary.Matured, summary.Skipped, summary.Failed)
	return summary, nil
}

func (l *Vest) processInvestment(ctx context.Context, investment *model.SchemeInvestment, asOf time.Time, summary *AccrualSummary) error {
	if investment.IsMatured(asOf) {
		if err := l.settleMaturity(ctx, investment); err != nil {
			return err
		}
		summary.Matured++
		return nil
	}

	if investment.AccruedToday(asOf) {
		summary.Skipped++
		return nil
	}

	investment.AccumulatedInterest = investment.AccumulatedInterest.Add(investment.DailyInterest())
	accruedAt := asOf
	investment.LastAccruedAt = &accruedAt

	if investment.PayoutDue(asOf) {
		if err := l.settlePayout(ctx, investment, model.ReferencePayout, "periodic interest payout"); err != nil {
			return err
		}
		summary.Payouts++
	}

	if err := l.datasource.UpdateSchemeInvestment(ctx, investment); err != nil {
		return err
	}
	summary.Accrued++
	return nil
}

// settlePayout transfers the accumulated interest from the scheme
// creator's business wallet to the investor's income wallet, then
// folds it into totalInterestPaid.
func (l *Vest) settlePayout(ctx context.Context, investment *model.SchemeInvestment, referenceType, description string) error {
	amount := model.RoundToMinor(investment.AccumulatedInterest)
	if amount <= 0 {
		return nil
	}

	result, err := l.TransferFunds(ctx, TransferRequest{
		SourceOwnerID:    investment.CreatorID,
		SourceWalletType: model.WalletTypeBusiness,
		SourceProjectID:  investment.ProjectID,
		DestOwnerID:      investment.OwnerID,
		DestWalletType:   model.WalletTypeInvestorIncome,
		DestProjectID:    investment.ProjectID,
		Amount:           amount,
		Description:      description,
		ReferenceType:    referenceType,
		ReferenceID:      investment.InvestmentID,
		CreatedBy:        model.SystemActor,
	})
	if err != nil {
		return err
	}
	if result.Declined {
		return fmt.Errorf("payout declined for %s: creator wallet short %d minor units", investment.InvestmentID, amount)
	}

	investment.TotalInterestPaid = investment.TotalInterestPaid.Add(investment.AccumulatedInterest)
	investment.AccumulatedInterest = decimal.Zero

	go func() {
		if err := l.queue.queueWebhook(context.Background(), NewWebhook{Event: "payout.applied", Payload: result.CreditEntry}); err != nil {
			notification.NotifyError(err)
		}
	}()
	return nil
}

// settleMaturity pays out principal plus all accumulated interest and
// closes the investment. MATURED is terminal; no accrual happens on
// the maturity day.
func (l *Vest) settleMaturity(ctx context.Context, investment *model.SchemeInvestment) error {
	payout := decimal.NewFromInt(investment.Principal).Add(investment.AccumulatedInterest)
	amount := model.RoundToMinor(payout)

	result, err := l.TransferFunds(ctx, TransferRequest{
		SourceOwnerID:    investment.CreatorID,
		SourceWalletType: model.WalletTypeBusiness,
		SourceProjectID:  investment.ProjectID,
		DestOwnerID:      investment.OwnerID,
		DestWalletType:   model.WalletTypeInvestorIncome,
		DestProjectID:    investment.ProjectID,
		Amount:           amount,
		Description:      "maturity payout",
		ReferenceType:    model.ReferenceMaturity,
		ReferenceID:      investment.InvestmentID,
		CreatedBy:        model.SystemActor,
	})
	if err != nil {
		return err
	}
	if result.Declined {
		return fmt.Errorf("maturity payout declined for %s: creator wallet short %d minor units", investment.InvestmentID, amount)
	}

	investment.TotalInterestPaid = investment.TotalInterestPaid.Add(investment.AccumulatedInterest)
	investment.AccumulatedInterest = decimal.Zero
	investment.Status = model.InvestmentStatusMatured

	if err := l.datasource.UpdateSchemeInvestment(ctx, investment); err != nil {
		return err
	}

	go func() {
		if err := l.queue.queueWebhook(context.Background(), NewWebhook{Event: "investment.matured", Payload: result.CreditEntry}); err != nil {
			notification.NotifyError(err)
		}
	}()
	return nil
}

// EnqueueAccrualRun queues an accrual run for the given day instead of
// executing it inline. Runs are deduplicated per calendar day.
func (l *Vest) EnqueueAccrualRun(ctx context.Context, asOf time.Time) error {
	return l.queue.QueueAccrualRun(ctx, asOf)
}

// ProcessAccrualTask is the asynq handler for the accrual queue. The
// payload is the run date; the periodic scheduler and the CLI both
// enqueue this task type.
func (l *Vest) ProcessAccrualTask(ctx context.Context, task *asynq.Task) error {
	var asOf time.Time
	if err := json.Unmarshal(task.Payload(), &asOf); err != nil {
		return err
	}

	cnf, err := config.Fetch()
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(cnf.Accrual.Timezone)
	if err != nil {
		loc = time.UTC
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}

	_, err = l.ProcessDueInvestments(ctx, asOf.In(loc))
	return err
}
