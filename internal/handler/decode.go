package handler

import (
	"fmt"
	"math"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-relay/internal/domain/order"
)

const maxQuantityExp = 18

var (
	maxQuantity = decimal.NewFromInt(math.MaxInt64)
	minQuantity = decimal.NewFromInt(math.MinInt64)
)

// decodeRequest parses {"pedido": {...}} into an Order. Missing keys and
// wrongly typed values are reported as *order.ValidationError; value
// constraints are left to order.Validate.
func decodeRequest(data []byte) (*order.Order, error) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return nil, &order.ValidationError{Reason: "request body must be a JSON object"}
	}

	var o *order.Order
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "pedido" {
			return d.Skip()
		}
		v, err := decodeOrder(d)
		if err != nil {
			return err
		}
		o = v
		return nil
	})
	if err != nil {
		return nil, asValidation(err)
	}
	if o == nil {
		return nil, order.Missing("pedido")
	}
	return o, nil
}

func decodeOrder(d *jx.Decoder) (*order.Order, error) {
	if d.Next() != jx.Object {
		return nil, &order.ValidationError{Field: "pedido", Reason: "must be an object"}
	}

	var (
		o                                     order.Order
		hasNumber, hasName, hasCode, hasItems bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "numero":
			hasNumber = true
			o.Number, err = decodeText(d, "pedido.numero")
		case "cliente":
			hasName = true
			o.CustomerName, err = decodeText(d, "pedido.cliente")
		case "codigo_cliente":
			hasCode = true
			o.CustomerCode, err = decodeText(d, "pedido.codigo_cliente")
		case "itens":
			hasItems = true
			o.Items, err = decodeItems(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	var missing order.ValidationErrors
	for _, f := range []struct {
		ok   bool
		name string
	}{
		{hasNumber, "pedido.numero"},
		{hasName, "pedido.cliente"},
		{hasCode, "pedido.codigo_cliente"},
		{hasItems, "pedido.itens"},
	} {
		if !f.ok {
			missing = append(missing, order.Missing(f.name))
		}
	}
	if len(missing) > 0 {
		return nil, missing
	}
	return &o, nil
}

func decodeItems(d *jx.Decoder) ([]order.LineItem, error) {
	if d.Next() != jx.Array {
		return nil, &order.ValidationError{Field: "pedido.itens", Reason: "must be an array"}
	}
	items := []order.LineItem{}
	err := d.Arr(func(d *jx.Decoder) error {
		item, err := decodeItem(d, fmt.Sprintf("pedido.itens[%d]", len(items)))
		if err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func decodeItem(d *jx.Decoder, path string) (order.LineItem, error) {
	var item order.LineItem
	if d.Next() != jx.Object {
		return item, &order.ValidationError{Field: path, Reason: "must be an object"}
	}

	var hasQty, hasProduct, hasPrice bool
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "quantidade":
			hasQty = true
			item.Quantity, err = decodeQuantity(d, path+".quantidade")
		case "produto":
			hasProduct = true
			item.Product, err = decodeText(d, path+".produto")
		case "preco":
			hasPrice = true
			item.UnitPrice, err = decodeDecimal(d, path+".preco")
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return item, err
	}
	switch {
	case !hasQty:
		return item, order.Missing(path + ".quantidade")
	case !hasProduct:
		return item, order.Missing(path + ".produto")
	case !hasPrice:
		return item, order.Missing(path + ".preco")
	}
	return item, nil
}

// decodeText reads a string. Integer identifiers are accepted and kept in
// their textual form.
func decodeText(d *jx.Decoder, field string) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		if !n.IsInt() {
			return "", &order.ValidationError{Field: field, Reason: "must be a string or an integer"}
		}
		return n.String(), nil
	default:
		return "", &order.ValidationError{Field: field, Reason: "must be a string"}
	}
}

// decodeQuantity reads a JSON number whose value is whole, so 2 and 2.0 are
// both accepted.
func decodeQuantity(d *jx.Decoder, field string) (int64, error) {
	if d.Next() != jx.Number {
		return 0, &order.ValidationError{Field: field, Reason: "must be a number"}
	}
	n, err := d.Num()
	if err != nil {
		return 0, err
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, &order.ValidationError{Field: field, Reason: "must be a number"}
	}
	// Bound the exponent before any arithmetic rescales the coefficient.
	if exp := v.Exponent(); exp > maxQuantityExp || exp < -maxQuantityExp {
		return 0, &order.ValidationError{Field: field, Reason: "out of range"}
	}
	if !v.IsInteger() {
		return 0, &order.ValidationError{Field: field, Reason: "must be a whole number"}
	}
	if v.GreaterThan(maxQuantity) || v.LessThan(minQuantity) {
		return 0, &order.ValidationError{Field: field, Reason: "out of range"}
	}
	return v.IntPart(), nil
}

// decodeDecimal reads a JSON number, or a string holding one, without going
// through float64.
func decodeDecimal(d *jx.Decoder, field string) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	default:
		return decimal.Zero, &order.ValidationError{Field: field, Reason: "must be a number"}
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &order.ValidationError{Field: field, Reason: "must be a number"}
	}
	if reason := order.CheckAmount(v); reason != "" {
		return decimal.Zero, &order.ValidationError{Field: field, Reason: reason}
	}
	return v, nil
}

// asValidation unwraps decoder callback errors so the client sees the field
// problem rather than the decoder's wrapping.
func asValidation(err error) error {
	var errs order.ValidationErrors
	if errors.As(err, &errs) {
		return errs
	}
	var ve *order.ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return &order.ValidationError{Reason: "malformed JSON: " + err.Error()}
}
