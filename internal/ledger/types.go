package ledger

import "time"

// AccountKind distinguishes investor wallets from NGO wallets.
type AccountKind string

const (
	KindInvestor AccountKind = "investor"
	KindNGO      AccountKind = "ngo"
)

type TransactionType string

const (
	TypeDeposit        TransactionType = "deposit"
	TypeWithdrawal     TransactionType = "withdrawal"
	TypeInvestment     TransactionType = "investment"
	TypeReturn         TransactionType = "return"
	TypeProjectFunding TransactionType = "project_funding"
	TypeRevenue        TransactionType = "revenue"
	TypeRefund         TransactionType = "refund"
	TypeFee            TransactionType = "fee"
)

type TransactionStatus string

const (
	TxCompleted  TransactionStatus = "completed"
	TxPending    TransactionStatus = "pending"
	TxProcessing TransactionStatus = "processing"
	TxFailed     TransactionStatus = "failed"
)

type WithdrawalStatus string

const (
	WithdrawalPendingApproval WithdrawalStatus = "pending_approval"
	WithdrawalApproved        WithdrawalStatus = "approved"
	WithdrawalProcessing      WithdrawalStatus = "processing"
	WithdrawalCompleted       WithdrawalStatus = "completed"
	WithdrawalRejected        WithdrawalStatus = "rejected"
)

type InvestmentStatus string

const (
	InvestmentOpen     InvestmentStatus = "open"
	InvestmentReturned InvestmentStatus = "returned"
	InvestmentRefunded InvestmentStatus = "refunded"
)

// Wallet is the stored balance record of one account. Balance is the sum of
// all completed transaction amounts; amounts are minor units.
type Wallet struct {
	AccountID      string      `json:"accountId"`
	Kind           AccountKind `json:"kind"`
	Balance        int64       `json:"balance"`
	TotalDonations int64       `json:"totalDonations"`
	TotalRevenue   int64       `json:"totalRevenue"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Transaction is one entry of the append-only ledger. Positive amounts are
// credits, negative amounts debits.
type Transaction struct {
	ID          string            `json:"id"`
	AccountID   string            `json:"accountId"`
	Type        TransactionType   `json:"type"`
	Amount      int64             `json:"amount"`
	Description string            `json:"description"`
	Status      TransactionStatus `json:"status"`
	Reference   string            `json:"reference,omitempty"`
	Date        time.Time         `json:"date"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

type WithdrawalRequest struct {
	ID             string           `json:"id"`
	AccountID      string           `json:"accountId"`
	Amount         int64            `json:"amount"`
	BankAccount    string           `json:"bankAccount"`
	Status         WithdrawalStatus `json:"status"`
	RequestedAt    time.Time        `json:"requestedAt"`
	ApprovedAt     *time.Time       `json:"approvedAt,omitempty"`
	AvailableAt    *time.Time       `json:"availableAt,omitempty"`
	ProcessingAt   *time.Time       `json:"processingAt,omitempty"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
	RejectedAt     *time.Time       `json:"rejectedAt,omitempty"`
	RejectedReason string           `json:"rejectedReason,omitempty"`
	ReviewedBy     string           `json:"reviewedBy,omitempty"`
	TransactionID  string           `json:"transactionId,omitempty"`
}

// Investment holds funds locked out of the available balance until it is
// returned or refunded.
type Investment struct {
	ID            string           `json:"id"`
	AccountID     string           `json:"accountId"`
	Type          TransactionType  `json:"type"`
	Amount        int64            `json:"amount"`
	Reference     string           `json:"reference"`
	Status        InvestmentStatus `json:"status"`
	TransactionID string           `json:"transactionId"`
	Payout        int64            `json:"payout"`
	OpenedAt      time.Time        `json:"openedAt"`
	ResolvedAt    *time.Time       `json:"resolvedAt,omitempty"`
}

// Balance is the read model shown to the account holder.
type Balance struct {
	Balance             int64 `json:"balance"`
	AvailableBalance    int64 `json:"availableBalance"`
	PendingWithdrawals  int64 `json:"pendingWithdrawals"`
	LockedInInvestments int64 `json:"lockedInInvestments"`
	TotalDonations      int64 `json:"totalDonations,omitempty"`
	TotalRevenue        int64 `json:"totalRevenue,omitempty"`
}

// WalletView is the full response of GET /wallet.
type WalletView struct {
	AccountID          string              `json:"accountId"`
	Kind               AccountKind         `json:"kind"`
	Wallet             Balance             `json:"wallet"`
	WithdrawalRequests []WithdrawalRequest `json:"withdrawalRequests"`
	Transactions       []Transaction       `json:"transactions"`
}

func ValidKind(k AccountKind) bool {
	return k == KindInvestor || k == KindNGO
}

func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeInvestment, TypeReturn,
		TypeProjectFunding, TypeRevenue, TypeRefund, TypeFee:
		return true
	}
	return false
}

func ValidWithdrawalStatus(s WithdrawalStatus) bool {
	switch s {
	case WithdrawalPendingApproval, WithdrawalApproved, WithdrawalProcessing,
		WithdrawalCompleted, WithdrawalRejected:
		return true
	}
	return false
}
