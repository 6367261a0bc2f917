package order

import (
	"github.com/shopspring/decimal"
)

// Order is a customer purchase to be rendered and delivered. It is built from
// the request payload and lives only for the duration of that request.
type Order struct {
	Number       string     `json:"numero" validate:"required,max=128,segment"`
	CustomerName string     `json:"cliente" validate:"required,printable"`
	CustomerCode string     `json:"codigo_cliente" validate:"required,printable"`
	Items        []LineItem `json:"itens" validate:"required,min=1,dive"`
}

// LineItem is one product line within an Order.
type LineItem struct {
	Quantity  int64           `json:"quantidade" validate:"gte=0"`
	Product   string          `json:"produto" validate:"required,printable"`
	UnitPrice decimal.Decimal `json:"preco" validate:"gte=0"`
}

// Total returns Quantity * UnitPrice.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(li.Quantity))
}

// FormatMoney formats an amount the way it is printed on documents and
// captions: "R$ " followed by the value with two decimal places.
func FormatMoney(d decimal.Decimal) string {
	return "R$ " + d.StringFixed(2)
}
