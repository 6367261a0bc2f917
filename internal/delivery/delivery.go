// Package delivery sends rendered order documents to a messaging channel.
package delivery

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-relay/internal/domain/order"
)

// Dispatcher transmits an artifact together with its caption.
//
// Deliver makes a single attempt. It returns (false, nil) when the remote side
// rejected or never received the document, and a non-nil error only for local
// precondition failures such as an unreadable artifact.
type Dispatcher interface {
	Deliver(ctx context.Context, path string, o *order.Order, total decimal.Decimal) (bool, error)
	// Channel names the destination in user-facing messages.
	Channel() string
}

// Caption formats the summary sent alongside the document. It uses the
// Telegram "Markdown" dialect; order fields are escaped so names such as
// "foo_bar" do not open an entity.
func Caption(o *order.Order, total decimal.Decimal, at time.Time) string {
	esc := func(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s) }
	return caption(esc(o.Number), esc(o.CustomerName), esc(o.CustomerCode), total, at, "*")
}

// PlainCaption is Caption without markup, for channels that show text verbatim.
func PlainCaption(o *order.Order, total decimal.Decimal, at time.Time) string {
	return caption(o.Number, o.CustomerName, o.CustomerCode, total, at, "")
}

func caption(number, name, code string, total decimal.Decimal, at time.Time, bold string) string {
	var b strings.Builder
	b.WriteString("📄 " + bold + "Pedido " + number + bold + "\n")
	b.WriteString("👤 Cliente: " + name + "\n")
	b.WriteString("🔢 Código: " + code + "\n")
	b.WriteString("💰 Total: " + order.FormatMoney(total) + "\n")
	b.WriteString("⏰ " + at.Format("02/01/2006 15:04"))
	return b.String()
}

// openArtifact opens path for reading and rejects anything that is not a
// regular file.
func openArtifact(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open artifact")
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "stat artifact")
	}
	if !st.Mode().IsRegular() {
		_ = f.Close()
		return nil, errors.Errorf("artifact %q is not a regular file", path)
	}
	return f, nil
}
