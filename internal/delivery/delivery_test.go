package delivery

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCaption(t *testing.T) {
	at := time.Date(2026, 1, 2, 23, 59, 0, 0, time.Local)

	got := Caption(testOrder(), decimal.RequireFromString("19.005"), at)

	assert.Contains(t, got, "*Pedido 1042*")
	assert.Contains(t, got, "Cliente: Acme")
	assert.Contains(t, got, "Código: C01")
	assert.Contains(t, got, "Total: R$ 19.01")
	assert.Contains(t, got, "02/01/2026 23:59")
}

func TestCaption_EscapesMarkdown(t *testing.T) {
	at := time.Date(2026, 1, 2, 23, 59, 0, 0, time.Local)
	o := testOrder()
	o.Number = "ord_1"
	o.CustomerName = "foo_bar *vip*"
	o.CustomerCode = "[C01]"

	got := Caption(o, decimal.NewFromInt(1), at)

	assert.Contains(t, got, `*Pedido ord\_1*`)
	assert.Contains(t, got, `Cliente: foo\_bar \*vip\*`)
	assert.Contains(t, got, `Código: \[C01]`)
}

func TestPlainCaption(t *testing.T) {
	at := time.Date(2026, 1, 2, 23, 59, 0, 0, time.Local)
	o := testOrder()
	o.CustomerName = "foo_bar"

	got := PlainCaption(o, decimal.NewFromInt(1), at)

	assert.Contains(t, got, "📄 Pedido 1042\n")
	assert.Contains(t, got, "Cliente: foo_bar\n")
	assert.NotContains(t, got, "*")
}
