package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payway/pkg/payment"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paidBody = `{"responseCode":0,"responseMessage":"Getting transaction successfully.","errorCode":null,
"data":{"hash":"abc123","fromAccountId":"payer@aclb","toAccountId":"merchant@aclb","currency":"USD",
"amount":1.5,"description":"","createdDateMs":1700000000000,"acknowledgedDateMs":1700000001000,
"externalRef":"100FT3"}}`

const unpaidBody = `{"responseCode":1,"responseMessage":"Transaction could not be found.","errorCode":1,"data":null}`

func bakongServer(t *testing.T, handler func(path string, body map[string]interface{}) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		status, resp := handler(r.URL.Path, body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBakong_CheckPayment(t *testing.T) {
	srv := bakongServer(t, func(path string, body map[string]interface{}) (int, string) {
		assert.Equal(t, "/v1/check_transaction_by_md5", path)
		if body["md5"] == "paid-md5" {
			return http.StatusOK, paidBody
		}
		return http.StatusOK, unpaidBody
	})
	p := payment.NewBakongProvider(srv.URL, "test-token", 5*time.Second)

	paid, err := p.CheckPayment(context.Background(), "paid-md5")
	require.NoError(t, err)
	assert.True(t, paid)

	paid, err = p.CheckPayment(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, paid)
}

func TestBakong_GetPayment(t *testing.T) {
	srv := bakongServer(t, func(path string, body map[string]interface{}) (int, string) {
		if body["md5"] == "paid-md5" {
			return http.StatusOK, paidBody
		}
		return http.StatusOK, unpaidBody
	})
	p := payment.NewBakongProvider(srv.URL, "test-token", 5*time.Second)

	tx, err := p.GetPayment(context.Background(), "paid-md5")
	require.NoError(t, err)
	assert.Equal(t, "abc123", tx.Hash)
	assert.Equal(t, "payer@aclb", tx.FromAccountID)
	assert.Equal(t, 1.5, tx.Amount)
	assert.Equal(t, int64(1700000001000), tx.AcknowledgedDateMs)

	_, err = p.GetPayment(context.Background(), "other")
	assert.ErrorIs(t, err, payment.ErrNotFound)
}

func TestBakong_ExpiredToken(t *testing.T) {
	srv := bakongServer(t, func(string, map[string]interface{}) (int, string) {
		return http.StatusOK, `{"responseCode":1,"responseMessage":"Unauthorized","errorCode":6,"data":null}`
	})
	p := payment.NewBakongProvider(srv.URL, "test-token", 5*time.Second)

	_, err := p.CheckPayment(context.Background(), "x")
	assert.ErrorIs(t, err, payment.ErrUnauthorized)
}

func TestBakong_ServerError(t *testing.T) {
	srv := bakongServer(t, func(string, map[string]interface{}) (int, string) {
		return http.StatusBadGateway, "upstream down"
	})
	p := payment.NewBakongProvider(srv.URL, "test-token", 5*time.Second)

	_, err := p.CheckPayment(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestBakong_GenerateDeeplink(t *testing.T) {
	srv := bakongServer(t, func(path string, body map[string]interface{}) (int, string) {
		assert.Equal(t, "/v1/generate_deeplink_by_qr", path)
		assert.Equal(t, "QRDATA", body["qr"])
		src, _ := body["sourceInfo"].(map[string]interface{})
		assert.Equal(t, "https://shop.example/cb", src["appDeepLinkCallback"])
		assert.Equal(t, "Shop", src["appName"])
		return http.StatusOK, `{"responseCode":0,"data":{"shortLink":"https://bakong.page.link/xyz"}}`
	})
	p := payment.NewBakongProvider(srv.URL, "test-token", 5*time.Second)

	link, err := p.GenerateDeeplink(context.Background(), payment.DeeplinkRequest{
		QR:          "QRDATA",
		CallbackURL: "https://shop.example/cb",
		AppIconURL:  "https://shop.example/icon.png",
		AppName:     "Shop",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://bakong.page.link/xyz", link)
}

func TestBakong_GenerateDeeplinkRejected(t *testing.T) {
	srv := bakongServer(t, func(string, map[string]interface{}) (int, string) {
		return http.StatusOK, `{"responseCode":1,"responseMessage":"Invalid QR","errorCode":5,"data":null}`
	})
	p := payment.NewBakongProvider(srv.URL, "test-token", 5*time.Second)

	_, err := p.GenerateDeeplink(context.Background(), payment.DeeplinkRequest{QR: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid QR")
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"data": map[string]string{"id": "dev"},
		"exp":  exp.Unix(),
	}).SignedString([]byte("not-bakongs-key"))
	require.NoError(t, err)

	got, err := payment.TokenExpiry(token)
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))

	_, err = payment.TokenExpiry("not-a-jwt")
	assert.ErrorIs(t, err, payment.ErrInvalidToken)
}

func TestStubProvider_MarkPaid(t *testing.T) {
	s := payment.NewStubProvider()
	ctx := context.Background()

	paid, err := s.CheckPayment(ctx, "h")
	require.NoError(t, err)
	assert.False(t, paid)

	s.MarkPaid("h", "USD", 2)
	paid, err = s.CheckPayment(ctx, "h")
	require.NoError(t, err)
	assert.True(t, paid)

	tx, err := s.GetPayment(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, 2.0, tx.Amount)
	assert.NotEmpty(t, tx.Hash)
}
