package storage

import (
	"time"

	"gorm.io/gorm"
)

type ImportStatus string

const (
	StatusPendingReview ImportStatus = "pending_review"
	StatusConfirmed     ImportStatus = "confirmed"
	StatusRejected      ImportStatus = "rejected"
	StatusDuplicate     ImportStatus = "duplicate"
)

type CategoryType string

const (
	CategoryIncome  CategoryType = "Income"
	CategoryExpense CategoryType = "Expense"
)

// Account is a wallet or payment method. Balance is kept equal to
// InitialBalance plus the signed amounts of its transactions.
type Account struct {
	gorm.Model
	UserID               string `gorm:"uniqueIndex:idx_accounts_user_name"`
	Name                 string `gorm:"uniqueIndex:idx_accounts_user_name"`
	InitialBalance       int64
	Balance              int64
	AllowNegativeBalance bool
	IsActive             bool
}

// Transaction represents a stored ledger movement. Amount is positive for
// inflows and negative for outflows.
type Transaction struct {
	gorm.Model
	UserID       string `gorm:"index;uniqueIndex:idx_transactions_user_client_ref"`
	AccountID    uint   `gorm:"index"`
	Amount       int64
	Label        string
	CategoryID   *uint
	Date         time.Time
	SmsReference *string `gorm:"index"`
	ClientRef    *string `gorm:"uniqueIndex:idx_transactions_user_client_ref"`
}

// SmsImport is a parsed notification waiting for, or past, user review.
type SmsImport struct {
	gorm.Model
	UserID              string `gorm:"index"`
	RawText             string
	Kind                string
	Amount              int64
	Fees                int64
	Balance             *int64
	Recipient           *string
	TransactionID       *string      `gorm:"index"`
	Status              ImportStatus `gorm:"index"`
	LedgerTransactionID *uint
}

type Category struct {
	gorm.Model
	UserID string `gorm:"index"`
	Name   string
	Type   CategoryType
}

// FixedCharge is a recurring expected payment. PaidThrough holds the last
// period ("2006-01") marked as paid.
type FixedCharge struct {
	gorm.Model
	UserID      string `gorm:"index"`
	Label       string
	Amount      int64
	DueDay      int
	PaidThrough string
}

type CategoryTotal struct {
	Name  string
	Total int64
}
