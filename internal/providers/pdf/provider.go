package pdf

import (
	"context"
	"io"
)

type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error)
	GeneratePayslip(ctx context.Context, data PayslipData) (io.Reader, error)
}
