package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRecord is the audit ledger row for one created KHQR intent. The live
// registry never reads it back.
type PaymentRecord struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	MD5         string          `gorm:"column:md5;size:32;uniqueIndex;not null" json:"md5"`
	BillNumber  string          `gorm:"size:25;index" json:"bill_number"`
	BankAccount string          `gorm:"size:32;not null" json:"bank_account"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency    string          `gorm:"size:3;not null" json:"currency"`
	Static      bool            `json:"static"`
	Status      string          `gorm:"size:20;not null;index" json:"status"` // PENDING, PAID, EXPIRED
	ExpiresAt   time.Time       `json:"expires_at"`
	PaidAt      *time.Time      `json:"paid_at"`
	PaymentData string          `gorm:"type:text" json:"payment_data"` // JSON settlement details
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (PaymentRecord) TableName() string {
	return "payway_payments"
}
