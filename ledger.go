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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vestcore/vest/internal/apierror"
	redlock "github.com/vestcore/vest/internal/lock"
	"github.com/vestcore/vest/internal/notification"
	"github.com/vestcore/vest/model"
)

var tracer = otel.Tracer("Ledger service")

var referenceTypes = []interface{}{
	model.ReferenceTopUp, model.ReferenceWithdrawal, model.ReferenceInvestment,
	model.ReferencePayout, model.ReferenceEMI, model.ReferenceInterest,
	model.ReferenceMaturity, model.ReferenceSubscription, model.ReferenceShare,
	model.ReferenceTransfer,
}

var walletTypes = []interface{}{
	model.WalletTypeAdmin, model.WalletTypeBusiness, model.WalletTypeInvestorBusiness,
	model.WalletTypeInvestorIncome, model.WalletTypeStock, model.WalletTypeLocker,
}

// CreditRequest describes a single unconditional credit.
type CreditRequest struct {
	OwnerID       string                 `json:"owner_id"`
	WalletType    string                 `json:"wallet_type"`
	ProjectID     string                 `json:"project_id"`
	Amount        int64                  `json:"amount"`
	Description   string                 `json:"description"`
	ReferenceType string                 `json:"reference_type"`
	ReferenceID   string                 `json:"reference_id"`
	CreatedBy     string                 `json:"created_by"`
	MetaData      map[string]interface{} `json:"meta_data"`
}

func (r CreditRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OwnerID, validation.Required),
		validation.Field(&r.WalletType, validation.Required, validation.In(walletTypes...)),
		validation.Field(&r.Amount, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.ReferenceType, validation.Required, validation.In(referenceTypes...)),
		validation.Field(&r.CreatedBy, validation.Required),
	)
}

// DebitRequest describes a conditional debit. Insufficient balance is
// reported as a declined LedgerResult, not an error.
type DebitRequest struct {
	OwnerID       string                 `json:"owner_id"`
	WalletType    string                 `json:"wallet_type"`
	ProjectID     string                 `json:"project_id"`
	Amount        int64                  `json:"amount"`
	Description   string                 `json:"description"`
	ReferenceType string                 `json:"reference_type"`
	ReferenceID   string                 `json:"reference_id"`
	CreatedBy     string                 `json:"created_by"`
	MetaData      map[string]interface{} `json:"meta_data"`
}

func (r DebitRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OwnerID, validation.Required),
		validation.Field(&r.WalletType, validation.Required, validation.In(walletTypes...)),
		validation.Field(&r.Amount, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.ReferenceType, validation.Required, validation.In(referenceTypes...)),
		validation.Field(&r.CreatedBy, validation.Required),
	)
}

// TransferRequest moves funds between two wallets as one atomic
// debit-credit pair.
type TransferRequest struct {
	SourceOwnerID      string                 `json:"source_owner_id"`
	SourceWalletType   string                 `json:"source_wallet_type"`
	SourceProjectID    string                 `json:"source_project_id"`
	DestOwnerID        string                 `json:"dest_owner_id"`
	DestWalletType     string                 `json:"dest_wallet_type"`
	DestProjectID      string                 `json:"dest_project_id"`
	Amount             int64                  `json:"amount"`
	Description        string                 `json:"description"`
	ReferenceType      string                 `json:"reference_type"`
	ReferenceID        string                 `json:"reference_id"`
	CreatedBy          string                 `json:"created_by"`
	MetaData           map[string]interface{} `json:"meta_data"`
}

func (r TransferRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SourceOwnerID, validation.Required),
		validation.Field(&r.SourceWalletType, validation.Required, validation.In(walletTypes...)),
		validation.Field(&r.DestOwnerID, validation.Required),
		validation.Field(&r.DestWalletType, validation.Required, validation.In(walletTypes...)),
		validation.Field(&r.Amount, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.ReferenceType, validation.Required, validation.In(referenceTypes...)),
		validation.Field(&r.CreatedBy, validation.Required),
	)
}

func logAndRecordError(span trace.Span, msg string, err error) error {
	err = fmt.Errorf("%s: %w", msg, err)
	span.RecordError(err)
	logrus.Error(err)
	return err
}

// GetOrCreateWallet returns the wallet for the identity tuple,
// creating it lazily on first touch. A concurrent create by another
// writer is resolved by re-reading.
func (l *Vest) GetOrCreateWallet(ctx context.Context, ownerID, walletType, projectID string) (*model.Wallet, error) {
	ctx, span := tracer.Start(ctx, "Resolving wallet")
	defer span.End()

	wallet, err := l.datasource.GetWallet(ownerID, walletType, projectID)
	if err == nil {
		return wallet, nil
	}
	apiErr, ok := err.(apierror.APIError)
	if !ok || apiErr.Code != apierror.ErrNotFound {
		return nil, err
	}

	created, err := l.datasource.CreateWallet(model.Wallet{
		OwnerID:    ownerID,
		WalletType: walletType,
		ProjectID:  projectID,
	})
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrConflict {
			// lost the create race, the winner's row is ours to use
			return l.datasource.GetWallet(ownerID, walletType, projectID)
		}
		return nil, err
	}
	return &created, nil
}

// GetBalance returns the wallet's materialized balance by wallet ID.
func (l *Vest) GetBalance(ctx context.Context, walletID string) (*model.WalletWithBalance, error) {
	_, span := tracer.Start(ctx, "Fetching wallet balance")
	defer span.End()

	wallet, err := l.datasource.GetWalletByID(walletID)
	if err != nil {
		return nil, err
	}
	return &model.WalletWithBalance{
		Wallet:         *wallet,
		DisplayBalance: model.BigIntToDisplay(wallet.Balance),
	}, nil
}

func (l *Vest) acquireWalletLock(ctx context.Context, walletID string) (*redlock.Locker, error) {
	locker := redlock.NewLocker(l.redis, walletID, model.GenerateUUIDWithSuffix("loc"))
	err := locker.WaitLock(ctx, time.Second*30, time.Second*10)
	if err != nil {
		return nil, err
	}
	return locker, nil
}

func (l *Vest) releaseLock(ctx context.Context, locker *redlock.Locker) {
	if err := locker.Unlock(ctx); err != nil {
		logrus.Error("lock error", err)
	}
}

func newEntry(walletID, entryType string, amount int64, description, referenceType, referenceID, createdBy string, metaData map[string]interface{}) *model.LedgerEntry {
	return &model.LedgerEntry{
		EntryID:       model.GenerateUUIDWithSuffix("len"),
		WalletID:      walletID,
		EntryType:     entryType,
		Amount:        amount,
		Description:   description,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		MetaData:      metaData,
		CreatedBy:     createdBy,
		CreatedAt:     time.Now(),
	}
}

// CreditWallet appends a CREDIT entry and updates the materialized
// balance in one database transaction. Credits are unconditional.
func (l *Vest) CreditWallet(ctx context.Context, req CreditRequest) (*model.LedgerResult, error) {
	ctx, span := tracer.Start(ctx, "Crediting wallet")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid credit request", err)
	}

	wallet, err := l.GetOrCreateWallet(ctx, req.OwnerID, req.WalletType, req.ProjectID)
	if err != nil {
		return nil, err
	}

	locker, err := l.acquireWalletLock(ctx, wallet.WalletID)
	if err != nil {
		return nil, err
	}
	defer l.releaseLock(ctx, locker)

	// re-read under the lock so the version predicate holds
	wallet, err = l.datasource.GetWalletByID(wallet.WalletID)
	if err != nil {
		return nil, err
	}

	wallet.ApplyCredit(req.Amount)
	entry := newEntry(wallet.WalletID, model.EntryTypeCredit, req.Amount, req.Description, req.ReferenceType, req.ReferenceID, req.CreatedBy, req.MetaData)

	if err := l.datasource.ApplyLedgerEntry(ctx, wallet, entry); err != nil {
		return nil, logAndRecordError(span, "credit apply error", err)
	}

	l.postLedgerActions(ctx, "wallet.credited", entry)

	return &model.LedgerResult{
		Entry:      entry,
		NewBalance: wallet.Balance,
	}, nil
}

// DebitWallet appends a DEBIT entry if and only if the wallet holds
// enough funds. The per-wallet Redis lock serializes writers and the
// version predicate on the balance update closes the remaining gap, so
// there is no check-then-act window. A shortfall is a declined result.
func (l *Vest) DebitWallet(ctx context.Context, req DebitRequest) (*model.LedgerResult, error) {
	ctx, span := tracer.Start(ctx, "Debiting wallet")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid debit request", err)
	}

	wallet, err := l.GetOrCreateWallet(ctx, req.OwnerID, req.WalletType, req.ProjectID)
	if err != nil {
		return nil, err
	}

	locker, err := l.acquireWalletLock(ctx, wallet.WalletID)
	if err != nil {
		return nil, err
	}
	defer l.releaseLock(ctx, locker)

	wallet, err = l.datasource.GetWalletByID(wallet.WalletID)
	if err != nil {
		return nil, err
	}

	if !wallet.CanDebit(req.Amount) {
		return &model.LedgerResult{
			Declined:       true,
			CurrentBalance: wallet.Balance,
			RequiredAmount: req.Amount,
		}, nil
	}

	wallet.ApplyDebit(req.Amount)
	entry := newEntry(wallet.WalletID, model.EntryTypeDebit, req.Amount, req.Description, req.ReferenceType, req.ReferenceID, req.CreatedBy, req.MetaData)

	if err := l.datasource.ApplyLedgerEntry(ctx, wallet, entry); err != nil {
		return nil, logAndRecordError(span, "debit apply error", err)
	}

	l.postLedgerActions(ctx, "wallet.debited", entry)

	return &model.LedgerResult{
		Entry:      entry,
		NewBalance: wallet.Balance,
	}, nil
}

// TransferFunds posts the debit and credit legs in a single database
// transaction; no half-applied transfer can persist. The legs carry
// cross-references in metadata.
func (l *Vest) TransferFunds(ctx context.Context, req TransferRequest) (*model.TransferResult, error) {
	ctx, span := tracer.Start(ctx, "Transferring funds")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid transfer request", err)
	}

	source, err := l.GetOrCreateWallet(ctx, req.SourceOwnerID, req.SourceWalletType, req.SourceProjectID)
	if err != nil {
		return nil, err
	}
	destination, err := l.GetOrCreateWallet(ctx, req.DestOwnerID, req.DestWalletType, req.DestProjectID)
	if err != nil {
		return nil, err
	}
	if source.WalletID == destination.WalletID {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "cannot transfer a wallet to itself", nil)
	}

	locker, err := l.acquireWalletLock(ctx, source.WalletID)
	if err != nil {
		return nil, err
	}
	defer l.releaseLock(ctx, locker)

	source, err = l.datasource.GetWalletByID(source.WalletID)
	if err != nil {
		return nil, err
	}
	destination, err = l.datasource.GetWalletByID(destination.WalletID)
	if err != nil {
		return nil, err
	}

	if !source.CanDebit(req.Amount) {
		return &model.TransferResult{
			Declined:       true,
			CurrentBalance: source.Balance,
			RequiredAmount: req.Amount,
		}, nil
	}

	source.ApplyDebit(req.Amount)
	destination.ApplyCredit(req.Amount)

	debitMeta := map[string]interface{}{"transfer_to": destination.WalletID}
	creditMeta := map[string]interface{}{"transfer_from": source.WalletID}
	for k, v := range req.MetaData {
		debitMeta[k] = v
		creditMeta[k] = v
	}

	debitEntry := newEntry(source.WalletID, model.EntryTypeDebit, req.Amount, req.Description, req.ReferenceType, req.ReferenceID, req.CreatedBy, debitMeta)
	creditEntry := newEntry(destination.WalletID, model.EntryTypeCredit, req.Amount, req.Description, req.ReferenceType, req.ReferenceID, req.CreatedBy, creditMeta)

	if err := l.datasource.ApplyTransferEntries(ctx, source, destination, debitEntry, creditEntry); err != nil {
		return nil, logAndRecordError(span, "transfer apply error", err)
	}

	l.postLedgerActions(ctx, "transfer.applied", creditEntry)

	return &model.TransferResult{
		DebitEntry:  debitEntry,
		CreditEntry: creditEntry,
	}, nil
}

// GetUserWallets returns every wallet an owner holds, with display
// balances, for the portfolio summary.
func (l *Vest) GetUserWallets(ctx context.Context, ownerID string) ([]model.WalletWithBalance, error) {
	_, span := tracer.Start(ctx, "Fetching user wallets")
	defer span.End()

	wallets, err := l.datasource.GetWalletsByOwner(ownerID)
	if err != nil {
		return nil, err
	}

	result := make([]model.WalletWithBalance, 0, len(wallets))
	for _, wallet := range wallets {
		result = append(result, model.WalletWithBalance{
			Wallet:         wallet,
			DisplayBalance: model.BigIntToDisplay(wallet.Balance),
		})
	}
	return result, nil
}

// GetLedgerHistory returns a wallet's entries, newest first.
func (l *Vest) GetLedgerHistory(ctx context.Context, walletID string, limit, offset int64) ([]model.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Fetching ledger history")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	return l.datasource.GetLedgerEntries(ctx, walletID, limit, offset)
}

// RecomputeBalance folds a wallet's entry log into fresh credit and
// debit sums. The entries remain the source of truth; this is the
// audit view of them.
func (l *Vest) RecomputeBalance(ctx context.Context, walletID string) (*model.Wallet, error) {
	ctx, span := tracer.Start(ctx, "Recomputing wallet balance")
	defer span.End()

	wallet, err := l.datasource.GetWalletByID(walletID)
	if err != nil {
		return nil, err
	}

	credit, debit, err := l.datasource.SumLedgerEntries(ctx, walletID)
	if err != nil {
		return nil, err
	}

	recomputed := &model.Wallet{
		WalletID:      wallet.WalletID,
		OwnerID:       wallet.OwnerID,
		WalletType:    wallet.WalletType,
		ProjectID:     wallet.ProjectID,
		CreditBalance: credit,
		DebitBalance:  debit,
		Version:       wallet.Version,
		CreatedAt:     wallet.CreatedAt,
	}
	recomputed.InitializeBalanceFields()
	recomputed.Balance.Sub(credit, debit)
	return recomputed, nil
}

// ReconcileWallet compares the materialized balances against the
// folded entry log and heals a drifted row. Returns true when the
// wallet was already consistent.
func (l *Vest) ReconcileWallet(ctx context.Context, walletID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Reconciling wallet")
	defer span.End()

	locker, err := l.acquireWalletLock(ctx, walletID)
	if err != nil {
		return false, err
	}
	defer l.releaseLock(ctx, locker)

	wallet, err := l.datasource.GetWalletByID(walletID)
	if err != nil {
		return false, err
	}
	recomputed, err := l.RecomputeBalance(ctx, walletID)
	if err != nil {
		return false, err
	}

	if wallet.CreditBalance.Cmp(recomputed.CreditBalance) == 0 &&
		wallet.DebitBalance.Cmp(recomputed.DebitBalance) == 0 &&
		wallet.Balance.Cmp(recomputed.Balance) == 0 {
		return true, nil
	}

	logrus.Warnf("wallet %s drifted: stored balance %s, recomputed %s", walletID, wallet.Balance.String(), recomputed.Balance.String())
	recomputed.Version = wallet.Version
	if err := l.datasource.UpdateWalletBalances(ctx, recomputed); err != nil {
		return false, err
	}
	return false, nil
}

// postLedgerActions fires the webhook for a settled movement without
// blocking the caller. Dispatch goes through the long-lived queue
// client; the request context may already be done by the time the
// goroutine runs, so the enqueue uses its own.
func (l *Vest) postLedgerActions(_ context.Context, event string, entry *model.LedgerEntry) {
	go func() {
		err := l.queue.queueWebhook(context.Background(), NewWebhook{
			Event:   event,
			Payload: entry,
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}
