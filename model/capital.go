package model

import "time"

// Capital option kinds.
const (
	CapitalKindLoan        = "LOAN"
	CapitalKindPartnership = "PARTNERSHIP"
)

// Payment request directions and states.
const (
	PaymentDirectionDeposit    = "DEPOSIT"
	PaymentDirectionWithdrawal = "WITHDRAWAL"

	PaymentStatusPending  = "PENDING"
	PaymentStatusApproved = "APPROVED"
	PaymentStatusRejected = "REJECTED"
)

// CapitalOption is a loan or partnership instrument created by a
// business user. It reuses the ledger service as its settlement
// primitive and honors the same debit-before-credit contract as
// schemes and shares.
type CapitalOption struct {
	ID              int64                  `json:"-"`
	CapitalID       string                 `json:"capital_id"`
	CreatorID       string                 `json:"creator_id"`
	ProjectID       string                 `json:"project_id,omitempty"`
	Kind            string                 `json:"kind"`
	Title           string                 `json:"title"`
	MinAmount       int64                  `json:"min_amount"`
	InterestPercent float64                `json:"interest_percent"`
	Status          string                 `json:"status"`
	CreatedAt       time.Time              `json:"created_at"`
	MetaData        map[string]interface{} `json:"meta_data,omitempty"`
}

// CapitalInvestment records one investor commitment into a capital
// option. Created only after the investor debit succeeds.
type CapitalInvestment struct {
	ID           int64     `json:"-"`
	InvestmentID string    `json:"investment_id"`
	CapitalID    string    `json:"capital_id"`
	OwnerID      string    `json:"owner_id"`
	Amount       int64     `json:"amount"`
	CreatedAt    time.Time `json:"created_at"`
}

// Share is an equity instrument with a fixed unit price and a finite
// number of available units.
type Share struct {
	ID              int64     `json:"-"`
	ShareID         string    `json:"share_id"`
	CreatorID       string    `json:"creator_id"`
	ProjectID       string    `json:"project_id,omitempty"`
	PricePerShare   int64     `json:"price_per_share"`
	TotalShares     int64     `json:"total_shares"`
	AvailableShares int64     `json:"available_shares"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// ShareHolding records units bought by one investor in one purchase.
type ShareHolding struct {
	ID        int64     `json:"-"`
	HoldingID string    `json:"holding_id"`
	ShareID   string    `json:"share_id"`
	OwnerID   string    `json:"owner_id"`
	Units     int64     `json:"units"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Plan is a platform subscription tier for business users. Activation
// settles through the ledger: the business wallet is debited and the
// admin wallet credited, tagged SUBSCRIPTION.
type Plan struct {
	ID           int64     `json:"-"`
	PlanID       string    `json:"plan_id"`
	Name         string    `json:"name"`
	Price        int64     `json:"price"`
	DurationDays int       `json:"duration_days"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// PlanActivation marks a paid subscription window for one business.
type PlanActivation struct {
	ID           int64     `json:"-"`
	ActivationID string    `json:"activation_id"`
	PlanID       string    `json:"plan_id"`
	OwnerID      string    `json:"owner_id"`
	ActivatedAt  time.Time `json:"activated_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// PaymentRequest is a user-submitted top-up or withdrawal awaiting
// admin review. Approval triggers the ledger movement keyed by the
// request's direction and the requester's role-derived wallet type;
// rejection leaves money untouched.
type PaymentRequest struct {
	ID         int64                  `json:"-"`
	RequestID  string                 `json:"request_id"`
	OwnerID    string                 `json:"owner_id"`
	WalletType string                 `json:"wallet_type"`
	ProjectID  string                 `json:"project_id,omitempty"`
	Direction  string                 `json:"direction"`
	Amount     int64                  `json:"amount"`
	Note       string                 `json:"note,omitempty"`
	Status     string                 `json:"status"`
	ReviewedBy string                 `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time             `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	MetaData   map[string]interface{} `json:"meta_data,omitempty"`
}
