package model

import (
	"math/big"
	"time"
)

// Wallet types. A user holds at most one wallet per
// (owner, type, project) tuple; wallets are created lazily and never
// deleted.
const (
	WalletTypeAdmin            = "ADMIN"
	WalletTypeBusiness         = "BUSINESS"
	WalletTypeInvestorBusiness = "INVESTOR_BUSINESS"
	WalletTypeInvestorIncome   = "INVESTOR_INCOME"
	WalletTypeStock            = "STOCK"
	WalletTypeLocker           = "LOCKER"
)

// Ledger entry types.
const (
	EntryTypeCredit = "CREDIT"
	EntryTypeDebit  = "DEBIT"
)

// Reference types tag an entry with the domain event that settled it.
const (
	ReferenceTopUp        = "TOPUP"
	ReferenceWithdrawal   = "WITHDRAWAL"
	ReferenceInvestment   = "INVESTMENT"
	ReferencePayout       = "PAYOUT"
	ReferenceEMI          = "EMI"
	ReferenceInterest     = "INTEREST"
	ReferenceMaturity     = "MATURITY"
	ReferenceSubscription = "SUBSCRIPTION"
	ReferenceShare        = "SHARE"
	ReferenceTransfer     = "TRANSFER"
)

// SystemActor is recorded as created_by on entries posted by scheduled
// jobs rather than by a user or admin.
const SystemActor = "SYSTEM"

// Wallet holds the materialized running balances for one identity
// tuple. The ledger entries remain the auditable source of truth;
// balance, credit_balance and debit_balance are updated in the same
// database transaction as every entry insert, guarded by the version
// column.
type Wallet struct {
	ID            int64                  `json:"-"`
	WalletID      string                 `json:"wallet_id"`
	OwnerID       string                 `json:"owner_id"`
	WalletType    string                 `json:"wallet_type"`
	ProjectID     string                 `json:"project_id,omitempty"`
	Balance       *big.Int               `json:"balance"`
	CreditBalance *big.Int               `json:"credit_balance"`
	DebitBalance  *big.Int               `json:"debit_balance"`
	Version       int64                  `json:"-"`
	CreatedAt     time.Time              `json:"created_at"`
	MetaData      map[string]interface{} `json:"meta_data,omitempty"`
}

// LedgerEntry is an immutable append-only record. Entries are never
// mutated or deleted after creation; for any wallet,
// balance == sum(CREDIT amounts) - sum(DEBIT amounts) over its entries.
// Amounts are positive int64 minor units.
type LedgerEntry struct {
	ID            int64                  `json:"-"`
	EntryID       string                 `json:"entry_id"`
	WalletID      string                 `json:"wallet_id"`
	EntryType     string                 `json:"entry_type"`
	Amount        int64                  `json:"amount"`
	Description   string                 `json:"description"`
	ReferenceType string                 `json:"reference_type"`
	ReferenceID   string                 `json:"reference_id,omitempty"`
	MetaData      map[string]interface{} `json:"meta_data,omitempty"`
	CreatedBy     string                 `json:"created_by"`
	CreatedAt     time.Time              `json:"created_at"`
}

// WalletWithBalance is the portfolio-summary shape returned by
// GetUserWallets: the wallet plus its balance formatted for display.
type WalletWithBalance struct {
	Wallet
	DisplayBalance float64 `json:"display_balance"`
}

// InitializeBalanceFields ensures all big.Int balance fields are
// non-nil before arithmetic.
func (w *Wallet) InitializeBalanceFields() {
	if w.Balance == nil {
		w.Balance = big.NewInt(0)
	}
	if w.CreditBalance == nil {
		w.CreditBalance = big.NewInt(0)
	}
	if w.DebitBalance == nil {
		w.DebitBalance = big.NewInt(0)
	}
}

func (w *Wallet) computeBalance() {
	w.Balance.Sub(w.CreditBalance, w.DebitBalance)
}

// ApplyCredit adds amount to the credit side and recomputes the running
// balance. Credits are unconditional; there is no upper bound.
func (w *Wallet) ApplyCredit(amount int64) {
	w.InitializeBalanceFields()
	w.CreditBalance.Add(w.CreditBalance, Int64ToBigInt(amount))
	w.computeBalance()
}

// ApplyDebit adds amount to the debit side and recomputes the running
// balance. Callers must check CanDebit first; ApplyDebit itself does
// not guard against overdraft.
func (w *Wallet) ApplyDebit(amount int64) {
	w.InitializeBalanceFields()
	w.DebitBalance.Add(w.DebitBalance, Int64ToBigInt(amount))
	w.computeBalance()
}

// CanDebit reports whether the wallet balance covers amount.
func (w *Wallet) CanDebit(amount int64) bool {
	w.InitializeBalanceFields()
	return w.Balance.Cmp(Int64ToBigInt(amount)) >= 0
}

// LedgerResult is returned by credit and debit operations. A declined
// debit is an expected business outcome, not an error: Declined is set
// together with the balances that explain the refusal, and no entry is
// posted.
type LedgerResult struct {
	Entry          *LedgerEntry `json:"entry,omitempty"`
	NewBalance     *big.Int     `json:"new_balance,omitempty"`
	Declined       bool         `json:"declined"`
	CurrentBalance *big.Int     `json:"current_balance,omitempty"`
	RequiredAmount int64        `json:"required_amount,omitempty"`
}

// TransferResult carries both legs of a completed transfer: exactly one
// DEBIT on the source and one CREDIT on the destination, posted in a
// single database transaction.
type TransferResult struct {
	DebitEntry     *LedgerEntry `json:"debit_entry,omitempty"`
	CreditEntry    *LedgerEntry `json:"credit_entry,omitempty"`
	Declined       bool         `json:"declined"`
	CurrentBalance *big.Int     `json:"current_balance,omitempty"`
	RequiredAmount int64        `json:"required_amount,omitempty"`
}
