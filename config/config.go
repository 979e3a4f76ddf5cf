package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Bakong     BakongConfig
	Merchant   MerchantConfig
	QR         QRConfig
	Notify     NotifyConfig
	Registry   RegistryConfig
	Cloudinary CloudinaryConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	BaseURL        string // external base, e.g. https://pay.example.com; empty = relative URLs
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DatabaseConfig enables the payment audit ledger when DSN is set.
type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type BakongConfig struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// MerchantConfig holds the defaults applied to empty fields of a create request.
type MerchantConfig struct {
	BankAccount   string
	Name          string
	City          string
	Currency      string
	StoreLabel    string
	PhoneNumber   string
	TerminalLabel string
	CallbackBase  string
	AppIconURL    string
	AppName       string
}

type QRConfig struct {
	Duration time.Duration
}

type NotifyConfig struct {
	Interval    time.Duration
	MaxDuration time.Duration
}

type RegistryConfig struct {
	SweepInterval time.Duration
	Grace         time.Duration
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Enabled reports whether QR images should be uploaded.
func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type RateLimitConfig struct {
	RPS   int
	Burst int
}

// OriginAllowed checks origin against the allow-list; "*" allows everything.
func (s ServerConfig) OriginAllowed(origin string) bool {
	for _, o := range s.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func Load() *Config {
	// .env is optional; real environment wins.
	_ = godotenv.Load(".env")

	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8000"),
			Env:            getEnv("APP_ENV", "development"),
			BaseURL:        strings.TrimRight(os.Getenv("BASE_URL"), "/"),
			AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             os.Getenv("DATABASE_DSN"),
			MaxIdleConns:    5,
			MaxOpenConns:    20,
			ConnMaxLifetime: time.Hour,
		},
		Bakong: BakongConfig{
			Token:   os.Getenv("TOKEN"),
			BaseURL: strings.TrimRight(getEnv("BAKONG_API_URL", "https://api-bakong.nbc.gov.kh"), "/"),
			Timeout: getDuration("BAKONG_TIMEOUT", 15*time.Second),
		},
		Merchant: MerchantConfig{
			BankAccount:   getEnv("DEFAULT_BANK_ACCOUNT", "pisethnorak_cheav@aclb"),
			Name:          getEnv("DEFAULT_MERCHANT_NAME", "TECHEY"),
			City:          getEnv("DEFAULT_MERCHANT_CITY", "Phnom Penh"),
			Currency:      getEnv("DEFAULT_CURRENCY", "USD"),
			StoreLabel:    getEnv("DEFAULT_STORE_LABEL", "IRCT SHOP"),
			PhoneNumber:   getEnv("DEFAULT_PHONE_NUMBER", "060535771"),
			TerminalLabel: getEnv("DEFAULT_TERMINAL_LABEL", "WebQR"),
			CallbackBase:  strings.TrimRight(getEnv("DEFAULT_CALLBACK_BASE", "https://chanrithshop.com/payment"), "/"),
			AppIconURL:    getEnv("DEFAULT_APP_ICON_URL", "https://chanrithshop.com/assets/images/logo.png"),
			AppName:       getEnv("DEFAULT_APP_NAME", "IRCT SHOP"),
		},
		QR: QRConfig{
			Duration: time.Duration(getInt("QR_DURATION_MINUTES", 5)) * time.Minute,
		},
		Notify: NotifyConfig{
			Interval:    getDuration("NOTIFY_INTERVAL", time.Second),
			MaxDuration: getDuration("NOTIFY_MAX_DURATION", 30*time.Minute),
		},
		Registry: RegistryConfig{
			SweepInterval: getDuration("REGISTRY_SWEEP_INTERVAL", 5*time.Minute),
			Grace:         getDuration("REGISTRY_GRACE", 24*time.Hour),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
			APIKey:    os.Getenv("CLOUDINARY_API_KEY"),
			APISecret: os.Getenv("CLOUDINARY_API_SECRET"),
			Folder:    getEnv("CLOUDINARY_FOLDER", "payway/qr"),
		},
		RateLimit: RateLimitConfig{
			RPS:   getInt("RATE_LIMIT_RPS", 20),
			Burst: getInt("RATE_LIMIT_BURST", 40),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[CONFIG] invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[CONFIG] invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
