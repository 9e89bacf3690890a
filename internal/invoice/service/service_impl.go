package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	chargedomain "github.com/smallbiznis/aula/internal/charge/domain"
	"github.com/smallbiznis/aula/internal/clock"
	conceptdomain "github.com/smallbiznis/aula/internal/concept/domain"
	"github.com/smallbiznis/aula/internal/dates"
	"github.com/smallbiznis/aula/internal/invoice/domain"
	"github.com/smallbiznis/aula/internal/money"
	repdomain "github.com/smallbiznis/aula/internal/representative/domain"
	schooldomain "github.com/smallbiznis/aula/internal/school/domain"
	pkgdb "github.com/smallbiznis/aula/pkg/db"
	"github.com/smallbiznis/aula/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func New(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	if len(req.ChargeIDs) == 0 {
		return domain.Invoice{}, domain.ErrNoCharges
	}
	seen := map[snowflake.ID]bool{}
	for _, id := range req.ChargeIDs {
		if seen[id] {
			return domain.Invoice{}, domain.ErrDuplicateCharge
		}
		seen[id] = true
	}

	emission := req.EmissionType
	if emission == "" {
		emission = domain.EmissionFiscalPrinter
	}
	if !emission.Valid() {
		return domain.Invoice{}, domain.ErrInvalidEmissionType
	}
	manualControl := strings.TrimSpace(req.ManualControlNumber)
	if emission == domain.EmissionFormaLibre && manualControl == "" {
		return domain.Invoice{}, domain.ErrManualControlRequired
	}

	var out domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := s.lockConfiguration(ctx, tx)
		if err != nil {
			return err
		}

		var rep repdomain.Representative
		err = tx.WithContext(ctx).First(&rep, "id = ?", req.RepresentativeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRepresentativeNotFound
		}
		if err != nil {
			return err
		}

		billToName := rep.FullName()
		billToFiscal := rep.FiscalID()
		billToAddress := rep.Address
		billToPhone := rep.Phone
		if req.BillTo != nil {
			if strings.TrimSpace(req.BillTo.Address) == "" {
				return domain.ErrMissingFiscalAddress
			}
			billToName = req.BillTo.Name
			billToFiscal = req.BillTo.FiscalID
			billToAddress = req.BillTo.Address
			billToPhone = req.BillTo.Phone
		}
		if strings.TrimSpace(billToAddress) == "" {
			return domain.ErrMissingFiscalAddress
		}

		number := fmt.Sprintf("%s%08d", cfg.InvoiceReferencePrefix, cfg.NextInvoiceReference)
		var clash int64
		if err := tx.WithContext(ctx).Model(&domain.Invoice{}).Where("invoice_number = ?", number).Count(&clash).Error; err != nil {
			return err
		}
		if clash > 0 {
			return domain.ErrNumberExists
		}

		now := s.clock.Now()
		issueDate := dates.Day(now)
		if !req.IssueDate.IsZero() {
			issueDate = dates.Day(req.IssueDate)
		}

		invoice := domain.Invoice{
			ID:               s.genID.Generate(),
			InvoiceNumber:    number,
			RepresentativeID: rep.ID,
			IssueDate:        issueDate,
			Status:           domain.InvoiceStatusPendingEmission,
			EmissionType:     emission,
			BillToName:       billToName,
			BillToFiscalID:   billToFiscal,
			BillToAddress:    billToAddress,
			BillToPhone:      billToPhone,
			Notes:            req.Notes,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		switch emission {
		case domain.EmissionFormaLibre:
			var taken int64
			err := tx.WithContext(ctx).Model(&domain.Invoice{}).
				Where("fiscal_control_number = ? OR manual_control_number = ?", manualControl, manualControl).
				Count(&taken).Error
			if err != nil {
				return err
			}
			if taken > 0 {
				return domain.ErrFiscalNumberExists
			}
			invoice.ManualControlNumber = manualControl
			invoice.FiscalControlNumber = manualControl
			invoice.FiscalInvoiceNumber = number
			invoice.Status = domain.InvoiceStatusEmitted
		case domain.EmissionDigital:
			// Placeholder identifiers until a digital provider is wired.
			invoice.FiscalInvoiceNumber = number
			invoice.FiscalControlNumber = fmt.Sprintf("DIG-%s", number)
			invoice.DigitalDocumentURL = fmt.Sprintf("/documents/invoices/%s.pdf", number)
			invoice.Status = domain.InvoiceStatusEmitted
		}

		// Items reference the invoice row, so it goes in first with its
		// totals still at zero.
		if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
			return err
		}

		for _, chargeID := range req.ChargeIDs {
			var charge chargedomain.AppliedCharge
			err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&charge, "id = ?", chargeID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrChargeNotFound
			}
			if err != nil {
				return err
			}
			if err := s.ensureOwnership(ctx, tx, charge, rep.ID); err != nil {
				return err
			}
			if charge.Status == chargedomain.ChargeStatusCancelled {
				return domain.ErrChargeCancelled
			}
			if charge.InvoiceID != nil {
				return domain.ErrChargeInvoiced
			}

			ivaPct, err := s.conceptIVA(ctx, tx, charge.ConceptID)
			if err != nil {
				return err
			}

			unit := charge.AmountDueVESAtEmission
			iva := money.Round2(unit * ivaPct)
			item := domain.InvoiceItem{
				ID:            s.genID.Generate(),
				InvoiceID:     invoice.ID,
				ChargeID:      charge.ID,
				Description:   s.itemDescription(charge),
				UnitPriceVES:  unit,
				IVAPercentage: ivaPct,
				IVAAmountVES:  iva,
				TotalVES:      money.Round2(unit + iva),
				CreatedAt:     now,
			}
			if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
				return err
			}

			invoice.SubtotalVES = money.Round2(invoice.SubtotalVES + unit)
			invoice.IVAVES = money.Round2(invoice.IVAVES + iva)

			charge.InvoiceID = &invoice.ID
			charge.UpdatedAt = now
			if err := tx.WithContext(ctx).Save(&charge).Error; err != nil {
				return err
			}
		}
		invoice.TotalVES = money.Round2(invoice.SubtotalVES + invoice.IVAVES)
		if err := tx.WithContext(ctx).Save(&invoice).Error; err != nil {
			return err
		}

		cfg.NextInvoiceReference++
		cfg.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(cfg).Error; err != nil {
			return err
		}

		out = invoice
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.log.Info("invoice created",
		zap.String("invoice_id", out.ID.String()),
		zap.String("invoice_number", out.InvoiceNumber),
		zap.Float64("total_ves", out.TotalVES),
	)
	return out, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Invoice, error) {
	var invoice domain.Invoice
	err := s.db.WithContext(ctx).First(&invoice, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Invoice{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Invoice{}, err
	}
	return invoice, nil
}

func (s *Service) Items(ctx context.Context, invoiceID snowflake.ID) ([]domain.InvoiceItem, error) {
	var items []domain.InvoiceItem
	err := s.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("id asc").
		Find(&items).Error
	return items, err
}

func (s *Service) List(ctx context.Context, filter domain.ListInvoiceFilter, page pagination.Pagination) (domain.ListInvoiceResponse, error) {
	page = page.Normalize()
	stmt := s.db.WithContext(ctx).Model(&domain.Invoice{})
	if filter.RepresentativeID != 0 {
		stmt = stmt.Where("representative_id = ?", filter.RepresentativeID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		stmt = stmt.Where("issue_date >= ?", dates.Day(*filter.From))
	}
	if filter.To != nil {
		stmt = stmt.Where("issue_date <= ?", dates.Day(*filter.To))
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	var items []domain.Invoice
	err := stmt.Order("issue_date desc, invoice_number desc").
		Offset(page.Skip).Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	return domain.ListInvoiceResponse{
		PageInfo: pagination.BuildPageInfo(total, page),
		Items:    items,
	}, nil
}

func (s *Service) UpdateFiscalDetails(ctx context.Context, id snowflake.ID, req domain.UpdateFiscalDetailsRequest) (domain.Invoice, error) {
	if strings.TrimSpace(req.FiscalInvoiceNumber) == "" || strings.TrimSpace(req.FiscalControlNumber) == "" {
		return domain.Invoice{}, domain.ErrInvalidFiscalNumbers
	}

	var out domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoice domain.Invoice
		err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&invoice, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if invoice.Status != domain.InvoiceStatusPendingEmission {
			return domain.ErrNotPendingEmission
		}

		var clash int64
		err = tx.WithContext(ctx).Model(&domain.Invoice{}).
			Where("id <> ?", invoice.ID).
			Where("fiscal_invoice_number = ? OR fiscal_control_number = ?", req.FiscalInvoiceNumber, req.FiscalControlNumber).
			Count(&clash).Error
		if err != nil {
			return err
		}
		if clash > 0 {
			return domain.ErrFiscalNumberExists
		}

		invoice.FiscalInvoiceNumber = req.FiscalInvoiceNumber
		invoice.FiscalControlNumber = req.FiscalControlNumber
		invoice.Status = domain.InvoiceStatusEmitted
		invoice.UpdatedAt = s.clock.Now()
		if err := tx.WithContext(ctx).Save(&invoice).Error; err != nil {
			return err
		}
		out = invoice
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return out, nil
}

func (s *Service) Annul(ctx context.Context, id snowflake.ID, reason string) (domain.Invoice, error) {
	if strings.TrimSpace(reason) == "" {
		return domain.Invoice{}, domain.ErrInvalidReason
	}

	var out domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.annulTx(ctx, tx, id, reason)
		if err != nil {
			return err
		}
		out = invoice
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.log.Info("invoice annulled",
		zap.String("invoice_id", out.ID.String()),
		zap.String("invoice_number", out.InvoiceNumber),
	)
	return out, nil
}

// annulTx voids the invoice and releases its charges. Credit note
// creation reuses it inside its own transaction.
func (s *Service) annulTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, reason string) (domain.Invoice, error) {
	var invoice domain.Invoice
	err := pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&invoice, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Invoice{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice.Status == domain.InvoiceStatusAnnulled {
		return domain.Invoice{}, domain.ErrAlreadyAnnulled
	}

	now := s.clock.Now()
	err = tx.WithContext(ctx).Model(&chargedomain.AppliedCharge{}).
		Where("invoice_id = ?", invoice.ID).
		Updates(map[string]interface{}{"invoice_id": nil, "updated_at": now}).Error
	if err != nil {
		return domain.Invoice{}, err
	}

	note := fmt.Sprintf("[%s] annulled: %s", now.Format("02/01/2006"), reason)
	if invoice.Notes != "" {
		invoice.Notes = invoice.Notes + "\n" + note
	} else {
		invoice.Notes = note
	}
	invoice.Status = domain.InvoiceStatusAnnulled
	invoice.UpdatedAt = now
	if err := tx.WithContext(ctx).Save(&invoice).Error; err != nil {
		return domain.Invoice{}, err
	}
	return invoice, nil
}

func (s *Service) CreateCreditNote(ctx context.Context, req domain.CreateCreditNoteRequest) (domain.CreditNote, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return domain.CreditNote{}, domain.ErrInvalidReason
	}

	var out domain.CreditNote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := s.lockConfiguration(ctx, tx)
		if err != nil {
			return err
		}

		var invoice domain.Invoice
		err = pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&invoice, "id = ?", req.InvoiceID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if invoice.Status == domain.InvoiceStatusAnnulled {
			return domain.ErrInvoiceAnnulled
		}

		var existing int64
		if err := tx.WithContext(ctx).Model(&domain.CreditNote{}).Where("invoice_id = ?", invoice.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return domain.ErrCreditNoteExists
		}

		number := fmt.Sprintf("%s%08d", cfg.CreditNoteReferencePrefix, cfg.NextCreditNoteReference)
		var clash int64
		if err := tx.WithContext(ctx).Model(&domain.CreditNote{}).Where("credit_note_number = ?", number).Count(&clash).Error; err != nil {
			return err
		}
		if clash > 0 {
			return domain.ErrNumberExists
		}

		now := s.clock.Now()
		creditNote := domain.CreditNote{
			ID:               s.genID.Generate(),
			CreditNoteNumber: number,
			InvoiceID:        invoice.ID,
			RepresentativeID: invoice.RepresentativeID,
			IssueDate:        dates.Day(now),
			Reason:           req.Reason,
			SubtotalVES:      invoice.SubtotalVES,
			IVAVES:           invoice.IVAVES,
			TotalVES:         invoice.TotalVES,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.WithContext(ctx).Create(&creditNote).Error; err != nil {
			return err
		}

		var items []domain.InvoiceItem
		if err := tx.WithContext(ctx).Where("invoice_id = ?", invoice.ID).Order("id asc").Find(&items).Error; err != nil {
			return err
		}
		for _, item := range items {
			cnItem := domain.CreditNoteItem{
				ID:            s.genID.Generate(),
				CreditNoteID:  creditNote.ID,
				Description:   item.Description,
				UnitPriceVES:  item.UnitPriceVES,
				IVAPercentage: item.IVAPercentage,
				IVAAmountVES:  item.IVAAmountVES,
				TotalVES:      item.TotalVES,
				CreatedAt:     now,
			}
			if err := tx.WithContext(ctx).Create(&cnItem).Error; err != nil {
				return err
			}
		}

		if _, err := s.annulTx(ctx, tx, invoice.ID, fmt.Sprintf("credit note %s: %s", number, req.Reason)); err != nil {
			return err
		}

		var rep repdomain.Representative
		err = pkgdb.WithForUpdate(tx.WithContext(ctx)).First(&rep, "id = ?", invoice.RepresentativeID).Error
		if err != nil {
			return err
		}
		rep.AvailableCreditVES = money.Round2(rep.AvailableCreditVES + invoice.TotalVES)
		rep.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(&rep).Error; err != nil {
			return err
		}

		cfg.NextCreditNoteReference++
		cfg.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(cfg).Error; err != nil {
			return err
		}

		out = creditNote
		return nil
	})
	if err != nil {
		return domain.CreditNote{}, err
	}

	s.log.Info("credit note created",
		zap.String("credit_note_id", out.ID.String()),
		zap.String("credit_note_number", out.CreditNoteNumber),
		zap.Float64("total_ves", out.TotalVES),
	)
	return out, nil
}

func (s *Service) GetCreditNote(ctx context.Context, id snowflake.ID) (domain.CreditNote, error) {
	var creditNote domain.CreditNote
	err := s.db.WithContext(ctx).First(&creditNote, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.CreditNote{}, domain.ErrCreditNoteNotFound
	}
	if err != nil {
		return domain.CreditNote{}, err
	}
	return creditNote, nil
}

func (s *Service) CreditNoteItems(ctx context.Context, creditNoteID snowflake.ID) ([]domain.CreditNoteItem, error) {
	var items []domain.CreditNoteItem
	err := s.db.WithContext(ctx).
		Where("credit_note_id = ?", creditNoteID).
		Order("id asc").
		Find(&items).Error
	return items, err
}

func (s *Service) ListCreditNotes(ctx context.Context, filter domain.ListCreditNoteFilter, page pagination.Pagination) (domain.ListCreditNoteResponse, error) {
	page = page.Normalize()
	stmt := s.db.WithContext(ctx).Model(&domain.CreditNote{})
	if filter.RepresentativeID != 0 {
		stmt = stmt.Where("representative_id = ?", filter.RepresentativeID)
	}
	if filter.From != nil {
		stmt = stmt.Where("issue_date >= ?", dates.Day(*filter.From))
	}
	if filter.To != nil {
		stmt = stmt.Where("issue_date <= ?", dates.Day(*filter.To))
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return domain.ListCreditNoteResponse{}, err
	}

	var items []domain.CreditNote
	err := stmt.Order("issue_date desc, credit_note_number desc").
		Offset(page.Skip).Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return domain.ListCreditNoteResponse{}, err
	}

	return domain.ListCreditNoteResponse{
		PageInfo: pagination.BuildPageInfo(total, page),
		Items:    items,
	}, nil
}

func (s *Service) lockConfiguration(ctx context.Context, tx *gorm.DB) (*schooldomain.SchoolConfiguration, error) {
	var cfg schooldomain.SchoolConfiguration
	err := pkgdb.WithForUpdate(tx.WithContext(ctx)).Order("id asc").First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, schooldomain.ErrNotConfigured
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Service) ensureOwnership(ctx context.Context, tx *gorm.DB, charge chargedomain.AppliedCharge, representativeID snowflake.ID) error {
	var ownerID snowflake.ID
	err := tx.WithContext(ctx).
		Table("students").
		Where("id = ?", charge.StudentID).
		Select("representative_id").
		Scan(&ownerID).Error
	if err != nil {
		return err
	}
	if ownerID != representativeID {
		return domain.ErrChargeWrongOwner
	}
	return nil
}

func (s *Service) conceptIVA(ctx context.Context, tx *gorm.DB, conceptID snowflake.ID) (float64, error) {
	var concept conceptdomain.ChargeConcept
	if err := tx.WithContext(ctx).First(&concept, "id = ?", conceptID).Error; err != nil {
		return 0, err
	}
	return concept.IVAPercentage, nil
}

func (s *Service) itemDescription(charge chargedomain.AppliedCharge) string {
	if charge.Description != "" {
		return charge.Description
	}
	return fmt.Sprintf("charge %s", charge.ID.String())
}
