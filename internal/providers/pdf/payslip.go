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

type PayslipData struct {
	SchoolName string
	SchoolRIF  string

	EmployeeName   string
	EmployeeCedula string
	PositionName   string
	IssuedAt       string

	Lines []PayslipLine

	AmountPaid string
}

type PayslipLine struct {
	Name   string
	Type   string
	Amount string
}

func (p *PDFProvider) GeneratePayslip(ctx context.Context, data PayslipData) (io.Reader, error) {
	cfg := config.NewBuilder().Build()
	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, data.SchoolName, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, "RIF: "+data.SchoolRIF, props.Text{Size: 9}),
	)

	m.AddRow(10,
		text.NewCol(12, "Recibo de Pago", props.Text{
			Size:  13,
			Style: fontstyle.Bold,
		}),
	)
	m.AddRow(22,
		col.New(6).Add(
			text.New("Empleado: "+data.EmployeeName, props.Text{Size: 9}),
			text.New("Cédula: "+data.EmployeeCedula, props.Text{Size: 9, Top: 4}),
			text.New("Cargo: "+data.PositionName, props.Text{Size: 9, Top: 8}),
		),
		col.New(6).Add(
			text.New("Fecha: "+data.IssuedAt, props.Text{Size: 9}),
		),
	)

	m.AddRow(10,
		text.NewCol(8, "Concepto", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Tipo", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Monto", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, line := range data.Lines {
		m.AddRow(10,
			text.NewCol(8, line.Name, props.Text{Size: 9}),
			text.NewCol(2, line.Type, props.Text{Size: 9}),
			text.NewCol(2, line.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(12,
		col.New(8),
		text.NewCol(2, "Pagado", props.Text{Style: fontstyle.Bold, Size: 10}),
		text.NewCol(2, data.AmountPaid, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
