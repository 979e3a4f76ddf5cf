package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StubProvider is an in-memory provider for development without a Bakong token.
// QR payloads are real KHQR strings; payments complete only through MarkPaid.
type StubProvider struct {
	mu          sync.Mutex
	paid        map[string]*Transaction
	DeeplinkErr error // when set, GenerateDeeplink fails with it
	CheckErr    error // when set, CheckPayment fails with it
}

func NewStubProvider() *StubProvider {
	return &StubProvider{paid: make(map[string]*Transaction)}
}

func (s *StubProvider) CreateQR(_ context.Context, req QRRequest) (string, error) {
	return BuildKHQR(req, time.Now())
}

func (s *StubProvider) MD5(qr string) string {
	return MD5(qr)
}

func (s *StubProvider) RenderPNG(qr string) ([]byte, error) {
	return RenderPNG(qr, DefaultImageSize)
}

func (s *StubProvider) GenerateDeeplink(_ context.Context, req DeeplinkRequest) (string, error) {
	s.mu.Lock()
	err := s.DeeplinkErr
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://bakong.page.link/stub-%s", MD5(req.QR)[:10]), nil
}

func (s *StubProvider) CheckPayment(_ context.Context, md5 string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CheckErr != nil {
		return false, s.CheckErr
	}
	_, ok := s.paid[md5]
	return ok, nil
}

func (s *StubProvider) GetPayment(_ context.Context, md5 string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.paid[md5]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

// MarkPaid simulates a wallet completing the payment for md5.
func (s *StubProvider) MarkPaid(md5, currency string, amount float64) *Transaction {
	now := time.Now().UnixMilli()
	tx := &Transaction{
		Hash:               uuid.New().String(),
		FromAccountID:      "stub_payer@devb",
		ToAccountID:        "stub_merchant@devb",
		Currency:           currency,
		Amount:             amount,
		CreatedDateMs:      now,
		AcknowledgedDateMs: now,
	}
	s.mu.Lock()
	s.paid[md5] = tx
	s.mu.Unlock()
	return tx
}

// SetCheckErr makes subsequent status checks fail (nil restores them).
func (s *StubProvider) SetCheckErr(err error) {
	s.mu.Lock()
	s.CheckErr = err
	s.mu.Unlock()
}
