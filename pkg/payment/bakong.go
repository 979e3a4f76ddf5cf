package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const defaultBakongURL = "https://api-bakong.nbc.gov.kh"

// A non-zero response code without errorCode 6 means "not paid yet".
const (
	bakongCodeOK          = 0
	bakongErrUnauthorized = 6
)

// BakongProvider builds KHQR payloads locally and talks to the NBC Bakong Open API
// for payment status and deep links.
type BakongProvider struct {
	BaseURL string
	client  *http.Client
	now     func() time.Time
}

// NewBakongProvider returns a provider whose HTTP client sends token as a bearer
// credential on every call.
func NewBakongProvider(baseURL, token string, timeout time.Duration) *BakongProvider {
	if baseURL == "" {
		baseURL = defaultBakongURL
	}
	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	client.Timeout = timeout
	return &BakongProvider{
		BaseURL: baseURL,
		client:  client,
		now:     time.Now,
	}
}

type bakongResponse struct {
	ResponseCode    int             `json:"responseCode"`
	ResponseMessage string          `json:"responseMessage"`
	ErrorCode       *int            `json:"errorCode"`
	Data            json.RawMessage `json:"data"`
}

func (p *BakongProvider) CreateQR(_ context.Context, req QRRequest) (string, error) {
	return BuildKHQR(req, p.now())
}

func (p *BakongProvider) MD5(qr string) string {
	return MD5(qr)
}

func (p *BakongProvider) RenderPNG(qr string) ([]byte, error) {
	return RenderPNG(qr, DefaultImageSize)
}

type deeplinkSource struct {
	AppIconURL          string `json:"appIconUrl"`
	AppName             string `json:"appName"`
	AppDeepLinkCallback string `json:"appDeepLinkCallback"`
}

type deeplinkReq struct {
	QR         string         `json:"qr"`
	SourceInfo deeplinkSource `json:"sourceInfo"`
}

// GenerateDeeplink asks Bakong for a short link that opens the payment in a wallet app.
func (p *BakongProvider) GenerateDeeplink(ctx context.Context, req DeeplinkRequest) (string, error) {
	body := deeplinkReq{
		QR: req.QR,
		SourceInfo: deeplinkSource{
			AppIconURL:          req.AppIconURL,
			AppName:             req.AppName,
			AppDeepLinkCallback: req.CallbackURL,
		},
	}
	resp, err := p.post(ctx, "/v1/generate_deeplink_by_qr", body)
	if err != nil {
		return "", fmt.Errorf("generate deeplink: %w", err)
	}
	if resp.ResponseCode != bakongCodeOK {
		return "", fmt.Errorf("generate deeplink: %s", resp.ResponseMessage)
	}
	var data struct {
		ShortLink string `json:"shortLink"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", fmt.Errorf("generate deeplink: %w", err)
	}
	if data.ShortLink == "" {
		return "", fmt.Errorf("generate deeplink: empty short link")
	}
	return data.ShortLink, nil
}

// CheckPayment reports whether Bakong has a completed transaction for md5.
func (p *BakongProvider) CheckPayment(ctx context.Context, md5 string) (bool, error) {
	resp, err := p.checkByMD5(ctx, md5)
	if err != nil {
		return false, err
	}
	return resp.ResponseCode == bakongCodeOK, nil
}

// GetPayment returns settlement details for a completed transaction.
func (p *BakongProvider) GetPayment(ctx context.Context, md5 string) (*Transaction, error) {
	resp, err := p.checkByMD5(ctx, md5)
	if err != nil {
		return nil, err
	}
	if resp.ResponseCode != bakongCodeOK || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, ErrNotFound
	}
	var tx Transaction
	if err := json.Unmarshal(resp.Data, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return &tx, nil
}

func (p *BakongProvider) checkByMD5(ctx context.Context, md5 string) (*bakongResponse, error) {
	resp, err := p.post(ctx, "/v1/check_transaction_by_md5", map[string]string{"md5": md5})
	if err != nil {
		return nil, fmt.Errorf("check transaction: %w", err)
	}
	if resp.ErrorCode != nil && *resp.ErrorCode == bakongErrUnauthorized {
		return nil, ErrUnauthorized
	}
	return resp, nil
}

func (p *BakongProvider) post(ctx context.Context, path string, payload interface{}) (*bakongResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		log.Printf("[KHQR] POST %s status=%d body=%s", path, resp.StatusCode, string(respBody))
		return nil, fmt.Errorf("bakong %s: %d", path, resp.StatusCode)
	}
	var out bakongResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("bakong %s: %w", path, err)
	}
	return &out, nil
}
