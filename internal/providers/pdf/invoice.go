package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type InvoiceData struct {
	SchoolName    string
	SchoolRIF     string
	SchoolAddress string
	SchoolPhone   string

	InvoiceNumber       string
	FiscalInvoiceNumber string
	FiscalControlNumber string
	IssueDate           string
	Status              string

	BillToName     string
	BillToFiscalID string
	BillToAddress  string
	BillToPhone    string

	Items []InvoiceLine

	Subtotal string
	IVA      string
	Total    string

	Notes string
}

type InvoiceLine struct {
	Description string
	UnitPrice   string
	IVA         string
	Amount      string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Página {current} de {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, data.SchoolName, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(16,
		col.New(12).Add(
			text.New("RIF: "+data.SchoolRIF, props.Text{Size: 9}),
			text.New(data.SchoolAddress, props.Text{Size: 9, Top: 4}),
			text.New(data.SchoolPhone, props.Text{Size: 9, Top: 8}),
		),
	)

	m.AddRow(10,
		text.NewCol(12, "Factura "+data.InvoiceNumber, props.Text{
			Size:  13,
			Style: fontstyle.Bold,
		}),
	)
	m.AddRow(20,
		col.New(6).Add(
			text.New("Fecha de emisión: "+data.IssueDate, props.Text{Size: 9}),
			text.New("Estado: "+data.Status, props.Text{Size: 9, Top: 4}),
		),
		col.New(6).Add(
			text.New("N° fiscal: "+data.FiscalInvoiceNumber, props.Text{Size: 9}),
			text.New("N° de control: "+data.FiscalControlNumber, props.Text{Size: 9, Top: 4}),
		),
	)

	m.AddRow(25,
		col.New(12).Add(
			text.New("Facturar a", props.Text{Style: fontstyle.Bold, Size: 10}),
			text.New(data.BillToName, props.Text{Size: 9, Top: 5}),
			text.New(data.BillToFiscalID, props.Text{Size: 9, Top: 9}),
			text.New(data.BillToAddress, props.Text{Size: 9, Top: 13}),
			text.New(data.BillToPhone, props.Text{Size: 9, Top: 17}),
		),
	)

	m.AddRow(10,
		text.NewCol(6, "Descripción", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Precio", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "IVA", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, item := range data.Items {
		m.AddRow(12,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.IVA, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Subtotal", props.Text{Size: 9}),
		text.NewCol(2, data.Subtotal, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "IVA", props.Text{Size: 9}),
		text.NewCol(2, data.IVA, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, data.Total, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if data.Notes != "" {
		m.AddRow(20,
			text.NewCol(12, data.Notes, props.Text{Size: 8, Top: 4}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
