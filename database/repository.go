package database

import (
	"context"
	"math/big"

	"github.com/vestcore/vest/model"
)

// IDataSource is the persistence contract the service layer depends
// on. Grouped by concern so tests can fake one slice at a time.
type IDataSource interface {
	wallet
	ledger
	scheme
	capital
	share
	plan
	paymentRequest
}

type wallet interface {
	CreateWallet(wallet model.Wallet) (model.Wallet, error)
	GetWallet(ownerID, walletType, projectID string) (*model.Wallet, error)
	GetWalletByID(walletID string) (*model.Wallet, error)
	GetWalletsByOwner(ownerID string) ([]model.Wallet, error)
	ApplyLedgerEntry(ctx context.Context, wallet *model.Wallet, entry *model.LedgerEntry) error
	ApplyTransferEntries(ctx context.Context, source, destination *model.Wallet, debitEntry, creditEntry *model.LedgerEntry) error
	SumLedgerEntries(ctx context.Context, walletID string) (credit, debit *big.Int, err error)
	UpdateWalletBalances(ctx context.Context, wallet *model.Wallet) error
}

type ledger interface {
	GetLedgerEntries(ctx context.Context, walletID string, limit, offset int64) ([]model.LedgerEntry, error)
	GetLedgerEntry(ctx context.Context, entryID string) (*model.LedgerEntry, error)
}

type scheme interface {
	CreateScheme(scheme model.Scheme) (model.Scheme, error)
	GetScheme(schemeID string) (*model.Scheme, error)
	UpdateSchemeStatus(schemeID, status string) error
	CreateSchemeInvestment(investment model.SchemeInvestment) (model.SchemeInvestment, error)
	GetSchemeInvestment(investmentID string) (*model.SchemeInvestment, error)
	GetActiveSchemeInvestments(ctx context.Context, limit, offset int64) ([]model.SchemeInvestment, error)
	UpdateSchemeInvestment(ctx context.Context, investment *model.SchemeInvestment) error
}

type capital interface {
	CreateCapitalOption(option model.CapitalOption) (model.CapitalOption, error)
	GetCapitalOption(capitalID string) (*model.CapitalOption, error)
	UpdateCapitalOptionStatus(capitalID, status string) error
	CreateCapitalInvestment(investment model.CapitalInvestment) (model.CapitalInvestment, error)
	GetCapitalInvestmentsByOwner(ownerID string) ([]model.CapitalInvestment, error)
}

type share interface {
	CreateShare(share model.Share) (model.Share, error)
	GetShare(shareID string) (*model.Share, error)
	ReserveShares(ctx context.Context, shareID string, units int64) error
	ReleaseShares(ctx context.Context, shareID string, units int64) error
	CreateShareHolding(holding model.ShareHolding) (model.ShareHolding, error)
	GetShareHoldingsByOwner(ownerID string) ([]model.ShareHolding, error)
}

type plan interface {
	CreatePlan(plan model.Plan) (model.Plan, error)
	GetPlan(planID string) (*model.Plan, error)
	CreatePlanActivation(activation model.PlanActivation) (model.PlanActivation, error)
	GetActivePlanActivation(ownerID string) (*model.PlanActivation, error)
}

type paymentRequest interface {
	CreatePaymentRequest(request model.PaymentRequest) (model.PaymentRequest, error)
	GetPaymentRequest(requestID string) (*model.PaymentRequest, error)
	GetPendingPaymentRequests(limit, offset int64) ([]model.PaymentRequest, error)
	ReviewPaymentRequest(requestID, status, reviewedBy string) error
}
