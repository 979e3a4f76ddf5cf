package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"payway/internal/service"
	"payway/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const serviceName = "bakong-payway-api"

type PaywayHandler struct {
	svc *service.PaywayService
	hub *ws.Hub
}

func NewPaywayHandler(svc *service.PaywayService, hub *ws.Hub) *PaywayHandler {
	return &PaywayHandler{svc: svc, hub: hub}
}

type paywayRequest struct {
	BankAccount   string  `json:"bank_account"`
	MerchantName  string  `json:"merchant_name"`
	MerchantCity  string  `json:"merchant_city"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	Currency      string  `json:"currency" binding:"omitempty,oneof=USD KHR usd khr"`
	StoreLabel    string  `json:"store_label"`
	PhoneNumber   string  `json:"phone_number"`
	BillNumber    string  `json:"bill_number" binding:"required"`
	TerminalLabel string  `json:"terminal_label"`
	Static        bool    `json:"static"`
	Callback      *string `json:"callback"`
	AppIconURL    string  `json:"appIconUrl"`
	AppName       string  `json:"appName"`
}

// Health is the liveness probe.
func (h *PaywayHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     serviceName,
		"intents":     h.svc.IntentCount(),
		"subscribers": h.hub.ClientCount(),
	})
}

// Create generates a KHQR payment intent.
func (h *PaywayHandler) Create(c *gin.Context) {
	var req paywayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.Create(c.Request.Context(), service.CreateParams{
		BankAccount:   req.BankAccount,
		MerchantName:  req.MerchantName,
		MerchantCity:  req.MerchantCity,
		Amount:        decimal.NewFromFloat(req.Amount),
		Currency:      req.Currency,
		StoreLabel:    req.StoreLabel,
		PhoneNumber:   req.PhoneNumber,
		BillNumber:    req.BillNumber,
		TerminalLabel: req.TerminalLabel,
		Static:        req.Static,
		Callback:      req.Callback,
		AppIconURL:    req.AppIconURL,
		AppName:       req.AppName,
	})
	if err != nil {
		var qe *service.QRError
		if errors.As(err, &qe) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to generate QR payload: " + qe.Err.Error()})
			return
		}
		log.Printf("[PAYWAY] create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create payment"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Status resolves an intent once. Unknown ids are not an error.
func (h *PaywayHandler) Status(c *gin.Context) {
	md5 := c.Param("md5")
	res, err := h.svc.Resolve(c.Request.Context(), md5, time.Now())
	if err != nil {
		log.Printf("[PAYWAY] status %s: %v", md5, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Record returns the audit ledger row for an intent.
func (h *PaywayHandler) Record(c *gin.Context) {
	rec, err := h.svc.Record(c.Param("md5"))
	if err != nil {
		if errors.Is(err, service.ErrLedgerDisabled) || errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment record not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}
