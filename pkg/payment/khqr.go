package payment

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EMV tags used by KHQR.
const (
	tagPayloadFormat   = "00"
	tagInitiation      = "01"
	tagIndividualAcct  = "29"
	tagCategoryCode    = "52"
	tagCurrency        = "53"
	tagAmount          = "54"
	tagCountry         = "58"
	tagMerchantName    = "59"
	tagMerchantCity    = "60"
	tagAdditionalData  = "62"
	tagTimestamp       = "99"
	tagCRC             = "63"
	initiationStatic   = "11"
	initiationDynamic  = "12"
	defaultMCC         = "5999"
	countryCambodia    = "KH"
	currencyCodeUSD    = "840"
	currencyCodeKHR    = "116"
	maxMerchantNameLen = 25
	maxMerchantCityLen = 15
	maxLabelLen        = 25
	maxAccountLen      = 32
	maxTLVValueLen     = 99
)

// Currencies accepted in a KHQR payload.
const (
	CurrencyUSD = "USD"
	CurrencyKHR = "KHR"
)

// BuildKHQR encodes req as an EMVCo KHQR string terminated by its CRC.
func BuildKHQR(req QRRequest, now time.Time) (string, error) {
	if err := validateQR(req); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(tlv(tagPayloadFormat, "01"))
	if req.Static {
		b.WriteString(tlv(tagInitiation, initiationStatic))
	} else {
		b.WriteString(tlv(tagInitiation, initiationDynamic))
	}
	b.WriteString(tlv(tagIndividualAcct, tlv("00", req.BankAccount)))
	b.WriteString(tlv(tagCategoryCode, defaultMCC))

	currency := strings.ToUpper(req.Currency)
	if currency == CurrencyKHR {
		b.WriteString(tlv(tagCurrency, currencyCodeKHR))
	} else {
		b.WriteString(tlv(tagCurrency, currencyCodeUSD))
	}
	if req.Amount.IsPositive() {
		b.WriteString(tlv(tagAmount, formatAmount(req.Amount, currency)))
	}
	b.WriteString(tlv(tagCountry, countryCambodia))
	b.WriteString(tlv(tagMerchantName, req.MerchantName))
	b.WriteString(tlv(tagMerchantCity, req.MerchantCity))

	if extra := additionalData(req); extra != "" {
		b.WriteString(tlv(tagAdditionalData, extra))
	}
	if !req.Static {
		b.WriteString(tlv(tagTimestamp, tlv("00", strconv.FormatInt(now.UnixMilli(), 10))))
	}

	b.WriteString(tagCRC + "04")
	payload := b.String()
	return payload + fmt.Sprintf("%04X", CRC16(payload)), nil
}

func validateQR(req QRRequest) error {
	switch {
	case req.BankAccount == "" || !strings.Contains(req.BankAccount, "@"):
		return fmt.Errorf("%w: bank_account must look like name@bank", ErrInvalidQR)
	case len(req.BankAccount) > maxAccountLen:
		return fmt.Errorf("%w: bank_account longer than %d", ErrInvalidQR, maxAccountLen)
	case req.MerchantName == "" || len(req.MerchantName) > maxMerchantNameLen:
		return fmt.Errorf("%w: merchant_name must be 1-%d characters", ErrInvalidQR, maxMerchantNameLen)
	case req.MerchantCity == "" || len(req.MerchantCity) > maxMerchantCityLen:
		return fmt.Errorf("%w: merchant_city must be 1-%d characters", ErrInvalidQR, maxMerchantCityLen)
	}
	currency := strings.ToUpper(req.Currency)
	switch currency {
	case CurrencyUSD, CurrencyKHR:
	default:
		return fmt.Errorf("%w: unsupported currency %q", ErrInvalidQR, req.Currency)
	}
	// Tag 54 carries the rounded amount, so that is what must be positive.
	if !roundAmount(req.Amount, currency).IsPositive() {
		return fmt.Errorf("%w: amount must be at least one %s", ErrInvalidQR, minorUnit(currency))
	}
	for _, f := range []struct{ name, value string }{
		{"bill_number", req.BillNumber},
		{"phone_number", req.PhoneNumber},
		{"store_label", req.StoreLabel},
		{"terminal_label", req.TerminalLabel},
	} {
		if len(f.value) > maxLabelLen {
			return fmt.Errorf("%w: %s longer than %d", ErrInvalidQR, f.name, maxLabelLen)
		}
	}
	if n := len(additionalData(req)); n > maxTLVValueLen {
		return fmt.Errorf("%w: additional data is %d bytes, limit %d", ErrInvalidQR, n, maxTLVValueLen)
	}
	return nil
}

// additionalData encodes the tag 62 sub-fields; empty ones are omitted.
func additionalData(req QRRequest) string {
	var extra strings.Builder
	for _, f := range []struct{ tag, value string }{
		{"01", req.BillNumber},
		{"02", req.PhoneNumber},
		{"03", req.StoreLabel},
		{"07", req.TerminalLabel},
	} {
		if f.value != "" {
			extra.WriteString(tlv(f.tag, f.value))
		}
	}
	return extra.String()
}

func roundAmount(amount decimal.Decimal, currency string) decimal.Decimal {
	if currency == CurrencyKHR {
		return amount.Round(0)
	}
	return amount.Round(2)
}

func minorUnit(currency string) string {
	if currency == CurrencyKHR {
		return "riel"
	}
	return "cent"
}

// formatAmount renders USD with cents and KHR as whole riel.
func formatAmount(amount decimal.Decimal, currency string) string {
	if currency == CurrencyKHR {
		return amount.Round(0).StringFixed(0)
	}
	return amount.StringFixed(2)
}

// tlv encodes one EMV data object: tag, two-digit length, value.
func tlv(tag, value string) string {
	return fmt.Sprintf("%s%02d%s", tag, len(value), value)
}

// CRC16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF) as required by EMVCo.
func CRC16(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// MD5 returns the content-hash identifier of a QR payload.
func MD5(qr string) string {
	sum := md5.Sum([]byte(qr))
	return hex.EncodeToString(sum[:])
}
