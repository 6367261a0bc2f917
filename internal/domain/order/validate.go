package order

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Decimals are compared by sign only: converting arbitrary exponents to
	// float64 is not bounded in cost. Magnitude is checked by CheckAmount.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.Sign()
		}
		return nil
	}, decimal.Decimal{})
	for tag, fn := range map[string]func(string) bool{
		"segment":   IsPathSegment,
		"printable": IsPrintable,
	} {
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return fn(fl.Field().String())
		}); err != nil {
			panic(err)
		}
	}
	return v
}

// IsPathSegment reports whether s can be embedded in a file name without
// escaping the artifact directory.
func IsPathSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	for i := range len(s) {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

// Validate checks every field constraint of o. On failure the returned error
// is a ValidationErrors listing each offending field.
func (o *Order) Validate() error {
	if o == nil {
		return Missing("pedido")
	}
	var out ValidationErrors
	if err := validate.Struct(o); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return errors.Wrap(err, "validate order")
		}
		for _, fe := range fieldErrs {
			out = append(out, &ValidationError{
				Field:  fieldPath(fe.Namespace()),
				Reason: reason(fe),
			})
		}
	}
	for i, item := range o.Items {
		if r := CheckAmount(item.UnitPrice); r != "" {
			out = append(out, &ValidationError{
				Field:  "pedido.itens[" + strconv.Itoa(i) + "].preco",
				Reason: r,
			})
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// fieldPath turns "Order.itens[0].preco" into "pedido.itens[0].preco".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return "pedido." + rest
	}
	return "pedido." + ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "min":
		return "must contain at least one item"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must not be negative"
	case "segment":
		return "may only contain letters, digits, '.', '_' and '-'"
	case "printable":
		return "contains characters that cannot be printed in the document"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
