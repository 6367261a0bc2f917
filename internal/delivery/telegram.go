package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/order-relay/internal/domain/order"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 30 * time.Second

// TelegramConfig configures the Telegram dispatcher.
type TelegramConfig struct {
	Token string
	// ChatID is a numeric chat id or a channel username such as "@orders".
	ChatID string
	// Endpoint is a format string taking the token and the method name.
	// Defaults to the public Bot API.
	Endpoint string
	Timeout  time.Duration
}

var _ Dispatcher = (*Telegram)(nil)

// Telegram delivers documents through the Bot API sendDocument method.
type Telegram struct {
	token    string
	chat     tgbotapi.BaseChat
	endpoint string
	client   *http.Client
	now      func() time.Time
}

// NewTelegram creates a Telegram dispatcher. A nil transport selects
// http.DefaultTransport.
func NewTelegram(cfg TelegramConfig, transport http.RoundTripper) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.ChatID == "" {
		return nil, errors.New("telegram chat id is required")
	}
	var chat tgbotapi.BaseChat
	if id, err := strconv.ParseInt(cfg.ChatID, 10, 64); err == nil {
		chat.ChatID = id
	} else {
		chat.ChannelUsername = cfg.ChatID
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Telegram{
		token:    cfg.Token,
		chat:     chat,
		endpoint: cfg.Endpoint,
		client:   &http.Client{Transport: transport, Timeout: cfg.Timeout},
		now:      time.Now,
	}, nil
}

// Channel implements Dispatcher.
func (t *Telegram) Channel() string { return "Telegram" }

// Deliver implements Dispatcher.
func (t *Telegram) Deliver(ctx context.Context, path string, o *order.Order, total decimal.Decimal) (bool, error) {
	f, err := openArtifact(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	bot := &tgbotapi.BotAPI{
		Token:  t.token,
		Client: &strictClient{ctx: ctx, client: t.client},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(t.endpoint)

	doc := tgbotapi.DocumentConfig{
		BaseFile: tgbotapi.BaseFile{
			BaseChat: t.chat,
			File:     tgbotapi.FileReader{Name: filepath.Base(path), Reader: f},
		},
		Caption:   Caption(o, total, t.now()),
		ParseMode: tgbotapi.ModeMarkdown,
	}

	lg := zctx.From(ctx).With(zap.String("order", o.Number), zap.String("stage", "deliver"))
	if _, err := bot.Send(doc); err != nil {
		lg.Error("Telegram delivery failed", zap.String("error", t.redact(err.Error())))
		return false, nil
	}
	lg.Info("Document sent to Telegram", zap.String("path", path))
	return true, nil
}

// redact strips the bot token, which is part of every request URL.
func (t *Telegram) redact(s string) string {
	return strings.ReplaceAll(s, t.token, "<token>")
}

// StatusError reports a non-2xx answer from the messaging API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// strictClient binds outgoing requests to ctx and turns non-2xx responses into
// errors. The bot client itself only looks at the JSON "ok" flag.
type strictClient struct {
	ctx    context.Context
	client *http.Client
}

func (c *strictClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req.WithContext(c.ctx))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}
