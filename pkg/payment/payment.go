package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrUnauthorized = errors.New("bakong: developer token is incorrect or expired")
	ErrNotFound     = errors.New("bakong: transaction not found")
	ErrInvalidToken = errors.New("bakong: malformed token")
	ErrInvalidQR    = errors.New("khqr: invalid field")
)

// QRRequest carries the merchant and bill fields encoded into a KHQR payload.
type QRRequest struct {
	BankAccount   string // Bakong account id, e.g. name@bank
	MerchantName  string
	MerchantCity  string
	Amount        decimal.Decimal
	Currency      string // USD or KHR
	StoreLabel    string
	PhoneNumber   string
	BillNumber    string
	TerminalLabel string
	Static        bool // static QRs carry no creation timestamp
}

// DeeplinkRequest asks the provider for a short link that opens a wallet app.
type DeeplinkRequest struct {
	QR          string
	CallbackURL string
	AppIconURL  string
	AppName     string
}

// Transaction is the settlement record returned once a payment is confirmed.
type Transaction struct {
	Hash                string  `json:"hash"`
	FromAccountID       string  `json:"fromAccountId"`
	ToAccountID         string  `json:"toAccountId"`
	Currency            string  `json:"currency"`
	Amount              float64 `json:"amount"`
	Description         string  `json:"description"`
	CreatedDateMs       int64   `json:"createdDateMs"`
	AcknowledgedDateMs  int64   `json:"acknowledgedDateMs"`
	TrackingStatus      string  `json:"trackingStatus"`
	ReceiverBank        string  `json:"receiverBank"`
	ReceiverBankAccount string  `json:"receiverBankAccount"`
	InstructionRef      string  `json:"instructionRef"`
	ExternalRef         string  `json:"externalRef"`
}

// Provider signs and renders KHQR payloads and reports payment completion.
type Provider interface {
	CreateQR(ctx context.Context, req QRRequest) (string, error)
	MD5(qr string) string
	RenderPNG(qr string) ([]byte, error)
	GenerateDeeplink(ctx context.Context, req DeeplinkRequest) (string, error)
	CheckPayment(ctx context.Context, md5 string) (bool, error)
	GetPayment(ctx context.Context, md5 string) (*Transaction, error)
}
