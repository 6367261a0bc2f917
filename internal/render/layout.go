package render

import (
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-relay/internal/domain/order"
)

const (
	fontFamily = "Arial"
	halfWidth  = 95.0

	colQuantity = 40.0
	colProduct  = 90.0
	colPrice    = 30.0
	colTotal    = 30.0
)

// document is a laid-out order ready to be serialized.
type document struct {
	pdf   *fpdf.Fpdf
	total decimal.Decimal
}

func (d *document) write(w io.Writer) (decimal.Decimal, error) {
	if err := d.pdf.Output(w); err != nil {
		return decimal.Zero, err
	}
	return d.total, nil
}

// layout builds the document for o. The grand total is accumulated while the
// product rows are emitted.
func (r *Renderer) layout(o *order.Order, now time.Time) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(!r.uncompressed)
	pdf.SetTitle("Pedido "+o.Number, true)
	pdf.SetCreator("order-relay", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	cell := func(w, h float64, txt, border string, ln int, align string, fill bool) {
		pdf.CellFormat(w, h, tr(txt), border, ln, align, fill, 0, "")
	}
	section := func(title string) {
		cell(0, 8, "", "0", 1, "", false)
		cell(0, 8, title, "1", 1, "C", true)
	}

	pdf.AddPage()
	pdf.SetFillColor(230, 230, 230)

	pdf.SetFont(fontFamily, "B", 16)
	cell(0, 10, "PEDIDO ELETRÔNICO", "0", 1, "C", false)
	pdf.SetFont(fontFamily, "", 12)

	section("DADOS DA EMPRESA")
	cell(halfWidth, 10, r.company.Name, "1", 0, "L", false)
	cell(halfWidth, 10, "CNPJ: "+r.company.TaxID, "1", 1, "L", false)
	cell(halfWidth, 10, "Telefone: "+r.company.Phone, "1", 0, "L", false)
	cell(halfWidth, 10, r.company.Address, "1", 1, "L", false)

	section("DADOS DO PEDIDO")
	cell(halfWidth, 10, "Data: "+now.Format("02/01/2006"), "1", 0, "L", false)
	cell(halfWidth, 10, "Pedido Nº: "+o.Number, "1", 1, "L", false)
	cell(0, 10, "Cliente: "+o.CustomerName+" ("+o.CustomerCode+")", "1", 1, "L", false)

	section("PRODUTOS")
	pdf.SetFont(fontFamily, "B", 12)
	cell(colQuantity, 10, "Quantidade", "1", 0, "C", false)
	cell(colProduct, 10, "Produto", "1", 0, "C", false)
	cell(colPrice, 10, "Preço Unitário", "1", 0, "C", false)
	cell(colTotal, 10, "Total", "1", 1, "C", false)

	pdf.SetFont(fontFamily, "", 12)
	total := decimal.Zero
	for _, item := range o.Items {
		lineTotal := item.Total()
		total = total.Add(lineTotal)

		cell(colQuantity, 10, strconv.FormatInt(item.Quantity, 10), "1", 0, "C", false)
		cell(colProduct, 10, item.Product, "1", 0, "L", false)
		cell(colPrice, 10, order.FormatMoney(item.UnitPrice), "1", 0, "C", false)
		cell(colTotal, 10, order.FormatMoney(lineTotal), "1", 1, "C", false)
	}

	cell(colQuantity+colProduct+colPrice, 10, "TOTAL GERAL", "1", 0, "R", false)
	cell(colTotal, 10, order.FormatMoney(total), "1", 1, "C", false)

	cell(0, 10, "", "0", 1, "", false)
	cell(0, 8, "ASSINATURA", "1", 1, "C", true)
	cell(0, 30, "", "1", 1, "", false)
	cell(0, 10, "Ass: ___________________________________", "0", 1, "L", false)

	return &document{pdf: pdf, total: total}
}
