package app

import (
	"io/fs"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

const defaultAddr = "0.0.0.0:8080"

// Delivery backends.
const (
	BackendTelegram = "telegram"
	BackendSMTP     = "smtp"
)

// Config holds the complete application configuration, loadable from
// environment variables (RELAY_ prefix), flags, a .env file or YAML config
// files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	OrdersDir string `default:"pedidos" usage:"Directory rendered order documents are written to" flag:"orders-dir"`
	Company   CompanyConfig
	Delivery  DeliveryConfig
	Telegram  TelegramConfig
	SMTP      SMTPConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// CompanyConfig is printed in the header block of every document.
type CompanyConfig struct {
	Name    string `default:"Comercial Soares" usage:"Company name"`
	TaxID   string `default:"40.457.273/0001-84" usage:"Company CNPJ"`
	Phone   string `default:"34 99985-8000" usage:"Company phone"`
	Address string `default:"Rua: Getúlio Vargas, Nº 631" usage:"Company street address"`
}

// DeliveryConfig selects where documents are sent.
type DeliveryConfig struct {
	Backend string        `default:"telegram" usage:"Delivery backend: telegram or smtp"`
	Timeout time.Duration `default:"30s" usage:"Timeout of a single delivery attempt"`
}

// TelegramConfig holds Bot API credentials.
type TelegramConfig struct {
	Token    string `usage:"Bot token (RELAY_TELEGRAM_TOKEN)"`
	ChatID   string `usage:"Target chat id or @channel"`
	Endpoint string `usage:"Bot API endpoint format, e.g. https://api.telegram.org/bot%s/%s"`
}

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host     string   `usage:"SMTP server host"`
	Port     int      `default:"587" usage:"SMTP server port"`
	Username string   `usage:"SMTP username"`
	Password string   `usage:"SMTP password (RELAY_SMTP_PASSWORD)"`
	From     string   `usage:"Sender address"`
	To       []string `usage:"Recipient addresses"`
}

// RateLimitConfig controls the per-client request limiter.
type RateLimitConfig struct {
	Max    int           `default:"0" usage:"Max requests per window, 0 disables limiting"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from .env, environment variables, YAML
// config files and flags, then validates it.
func LoadConfig() (*Config, error) {
	return loadConfig([]string{"config.yaml", "/etc/order-relay/config.yaml"}, false)
}

func loadConfig(files []string, skipFlags bool) (*Config, error) {
	// Variables already set in the environment take precedence over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "RELAY",
		SkipFlags: skipFlags,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the platform-provided PORT variable (Railway,
// Render, etc.) to the listen address.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	if c.OrdersDir == "" {
		return errors.New("orders directory is required: set RELAY_ORDERS_DIR")
	}
	switch c.Delivery.Backend {
	case BackendTelegram:
		if c.Telegram.Token == "" || c.Telegram.ChatID == "" {
			return errors.New("telegram backend requires RELAY_TELEGRAM_TOKEN and RELAY_TELEGRAM_CHAT_ID")
		}
	case BackendSMTP:
		if c.SMTP.Host == "" || c.SMTP.From == "" || len(c.SMTP.To) == 0 {
			return errors.New("smtp backend requires RELAY_SMTP_HOST, RELAY_SMTP_FROM and RELAY_SMTP_TO")
		}
	default:
		return errors.Errorf("unknown delivery backend %q", c.Delivery.Backend)
	}
	if c.Delivery.Timeout <= 0 {
		return errors.Errorf("delivery timeout must be positive, got %s", c.Delivery.Timeout)
	}
	return nil
}
