package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"payway/config"
	"payway/internal/domain"
	"payway/internal/intent"
	"payway/internal/models"
	"payway/internal/status"
	"payway/pkg/payment"

	"github.com/shopspring/decimal"
)

var ErrLedgerDisabled = errors.New("payment ledger is not configured")

// QRError reports a payload that could not be built or rendered. Nothing is
// registered when it is returned.
type QRError struct {
	Err error
}

func (e *QRError) Error() string {
	return "unable to generate QR payload: " + e.Err.Error()
}

func (e *QRError) Unwrap() error {
	return e.Err
}

// QRProvider is the part of the payment provider used when creating intents.
type QRProvider interface {
	CreateQR(ctx context.Context, req payment.QRRequest) (string, error)
	MD5(qr string) string
	RenderPNG(qr string) ([]byte, error)
	GenerateDeeplink(ctx context.Context, req payment.DeeplinkRequest) (string, error)
}

// ImageHost uploads rendered QR images. Optional.
type ImageHost interface {
	UploadPNG(ctx context.Context, png []byte, publicID string) (string, error)
}

// Ledger persists created intents and their outcomes. Optional.
type Ledger interface {
	Create(p *models.PaymentRecord) error
	GetByMD5(md5 string) (*models.PaymentRecord, error)
	MarkOutcome(md5, status string, tx *payment.Transaction, at time.Time) error
}

// CreateParams is a create request as received; empty fields take merchant defaults.
type CreateParams struct {
	BankAccount   string
	MerchantName  string
	MerchantCity  string
	Amount        decimal.Decimal
	Currency      string
	StoreLabel    string
	PhoneNumber   string
	BillNumber    string
	TerminalLabel string
	Static        bool
	Callback      *string
	AppIconURL    string
	AppName       string
}

type CreateResult struct {
	QRString    string  `json:"qr_string"`
	QRBase64    string  `json:"qr_base64"`
	QRImageURL  *string `json:"qr_image_url"`
	Deeplink    *string `json:"deeplink"`
	MD5         string  `json:"md5"`
	ExpiresAt   string  `json:"expires_at"`
	StatusURL   string  `json:"status_url"`
	WSStatusURL string  `json:"ws_status_url"`
	Warning     *string `json:"warning"`
}

type PaywayService struct {
	cfg      *config.Config
	registry *intent.Registry
	resolver *status.Resolver
	provider QRProvider
	images   ImageHost
	ledger   Ledger
	Now      func() time.Time
}

func NewPaywayService(cfg *config.Config, registry *intent.Registry, resolver *status.Resolver, provider QRProvider) *PaywayService {
	return &PaywayService{
		cfg:      cfg,
		registry: registry,
		resolver: resolver,
		provider: provider,
		Now:      time.Now,
	}
}

// WithImageHost enables qr_image_url on created intents.
func (s *PaywayService) WithImageHost(h ImageHost) *PaywayService {
	s.images = h
	return s
}

// WithLedger enables the payment audit ledger.
func (s *PaywayService) WithLedger(l Ledger) *PaywayService {
	s.ledger = l
	return s
}

// Create builds a KHQR payload, renders it, asks the provider for a deeplink and
// registers the intent. Only QR generation failures are errors; deeplink and
// image hosting failures are reported as warnings.
func (s *PaywayService) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	p = s.applyDefaults(p)
	req := payment.QRRequest{
		BankAccount:   p.BankAccount,
		MerchantName:  p.MerchantName,
		MerchantCity:  p.MerchantCity,
		Amount:        p.Amount,
		Currency:      p.Currency,
		StoreLabel:    p.StoreLabel,
		PhoneNumber:   p.PhoneNumber,
		BillNumber:    p.BillNumber,
		TerminalLabel: p.TerminalLabel,
		Static:        p.Static,
	}
	qr, err := s.provider.CreateQR(ctx, req)
	if err != nil {
		return nil, &QRError{Err: err}
	}
	png, err := s.provider.RenderPNG(qr)
	if err != nil {
		return nil, &QRError{Err: err}
	}
	md5 := s.provider.MD5(qr)

	var warnings []string
	res := &CreateResult{
		QRString: qr,
		QRBase64: payment.PNGDataURI(png),
		MD5:      md5,
	}

	callback := s.cfg.Merchant.CallbackBase + "/" + p.BillNumber + "/callback"
	if p.Callback != nil && *p.Callback != "" {
		callback = *p.Callback
	}
	link, err := s.provider.GenerateDeeplink(ctx, payment.DeeplinkRequest{
		QR:          qr,
		CallbackURL: callback,
		AppIconURL:  p.AppIconURL,
		AppName:     p.AppName,
	})
	if err != nil {
		log.Printf("[PAYWAY] deeplink for %s failed: %v", md5, err)
		warnings = append(warnings, fmt.Sprintf("Deeplink generation failed: %v", err))
	} else {
		res.Deeplink = &link
	}

	if s.images != nil {
		url, err := s.images.UploadPNG(ctx, png, md5)
		if err != nil {
			log.Printf("[PAYWAY] qr image upload for %s failed: %v", md5, err)
			warnings = append(warnings, fmt.Sprintf("QR image upload failed: %v", err))
		} else {
			res.QRImageURL = &url
		}
	}

	now := s.Now()
	in := s.registry.Put(md5, p.BillNumber, now.Add(s.cfg.QR.Duration))
	res.ExpiresAt = domain.FormatTime(in.ExpiresAt)
	res.StatusURL, res.WSStatusURL = s.statusURLs(md5)
	if len(warnings) > 0 {
		w := strings.Join(warnings, "; ")
		res.Warning = &w
	}

	if s.ledger != nil {
		rec := &models.PaymentRecord{
			MD5:         md5,
			BillNumber:  p.BillNumber,
			BankAccount: p.BankAccount,
			Amount:      p.Amount,
			Currency:    p.Currency,
			Static:      p.Static,
			Status:      domain.RecordPending,
			ExpiresAt:   in.ExpiresAt,
		}
		if err := s.ledger.Create(rec); err != nil {
			log.Printf("[PAYWAY] ledger create %s: %v", md5, err)
		}
	}
	log.Printf("[PAYWAY] created intent %s bill=%s amount=%s %s", md5, p.BillNumber, p.Amount.String(), p.Currency)
	return res, nil
}

// Resolve returns the status of id and records terminal outcomes in the ledger.
// The status endpoint and every stream subscriber go through here.
func (s *PaywayService) Resolve(ctx context.Context, id string, now time.Time) (status.Result, error) {
	res, err := s.resolver.Resolve(ctx, id, now)
	if err != nil {
		return res, err
	}
	if s.ledger != nil && res.Status.Terminal() {
		recStatus := domain.RecordExpired
		if res.Status == domain.StatusPaid {
			recStatus = domain.RecordPaid
		}
		if err := s.ledger.MarkOutcome(id, recStatus, res.PaymentData, now); err != nil {
			log.Printf("[PAYWAY] ledger outcome %s: %v", id, err)
		}
	}
	return res, nil
}

// Record returns the ledger row for id.
func (s *PaywayService) Record(id string) (*models.PaymentRecord, error) {
	if s.ledger == nil {
		return nil, ErrLedgerDisabled
	}
	return s.ledger.GetByMD5(id)
}

func (s *PaywayService) IntentCount() int {
	return s.registry.Len()
}

func (s *PaywayService) applyDefaults(p CreateParams) CreateParams {
	m := s.cfg.Merchant
	p.BankAccount = orDefault(p.BankAccount, m.BankAccount)
	p.MerchantName = orDefault(p.MerchantName, m.Name)
	p.MerchantCity = orDefault(p.MerchantCity, m.City)
	p.Currency = strings.ToUpper(orDefault(p.Currency, m.Currency))
	p.StoreLabel = orDefault(p.StoreLabel, m.StoreLabel)
	p.PhoneNumber = orDefault(p.PhoneNumber, m.PhoneNumber)
	p.TerminalLabel = orDefault(p.TerminalLabel, m.TerminalLabel)
	p.AppIconURL = orDefault(p.AppIconURL, m.AppIconURL)
	p.AppName = orDefault(p.AppName, m.AppName)
	return p
}

// statusURLs builds the polling and stream URLs for md5. With no BASE_URL the
// paths are relative.
func (s *PaywayService) statusURLs(md5 string) (string, string) {
	base := s.cfg.Server.BaseURL
	statusURL := base + "/api/payway/status/" + md5
	wsBase := base
	switch {
	case strings.HasPrefix(base, "https://"):
		wsBase = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		wsBase = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return statusURL, wsBase + "/ws/payway/status/" + md5
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
