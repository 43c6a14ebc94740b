package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/atelier/internal/audit/domain"
	"github.com/smallbiznis/atelier/internal/clock"
	notifdomain "github.com/smallbiznis/atelier/internal/notification/domain"
	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
	"github.com/smallbiznis/atelier/internal/vatperiod/domain"
)

// periodBoundaryDay is the day of month a new accounting cycle opens on.
const periodBoundaryDay = 22

// realizedStatuses are the order statuses whose VAT counts as output VAT.
// Pending orders have no committed revenue and cancelled orders never
// contribute, regardless of how far they got before cancellation.
var realizedStatuses = []orderdomain.OrderStatus{
	orderdomain.OrderStatusApproved,
	orderdomain.OrderStatusInProduction,
	orderdomain.OrderStatusReadyForDelivery,
	orderdomain.OrderStatusDelivered,
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Notifier notifdomain.Service
	Audit    auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	notifier notifdomain.Service
	audit    auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("vatperiod.service"),
		clock:    p.Clock,
		genID:    p.GenID,
		notifier: p.Notifier,
		audit:    p.Audit,
	}
}

// CurrentPeriodAt maps an instant onto its 22nd-to-21st accounting period.
// Before the 22nd the instant still belongs to the period that opened on the
// 22nd of the previous month, including across a year boundary.
func (s *Service) CurrentPeriodAt(t time.Time) domain.Period {
	t = t.UTC()
	month := int(t.Month())
	year := t.Year()
	if t.Day() < periodBoundaryDay {
		month--
		if month < 1 {
			month = 12
			year--
		}
	}

	start := time.Date(year, time.Month(month), periodBoundaryDay, 0, 0, 0, 0, time.UTC)

	endMonth := month + 1
	endYear := year
	if endMonth > 12 {
		endMonth = 1
		endYear++
	}
	end := time.Date(endYear, time.Month(endMonth), periodBoundaryDay-1, 0, 0, 0, 0, time.UTC)

	return domain.Period{Month: month, Year: year, Start: start, End: end}
}

// Aggregate sums the stored totals and VAT of realized orders created inside
// the window and the amounts and VAT of VAT-applicable expenses incurred
// inside it. Stored order figures are authoritative; nothing is recomputed
// from prices here.
func (s *Service) Aggregate(ctx context.Context, start, end time.Time) (domain.Totals, error) {
	type orderRow struct {
		TotalSales int64
		OutputVAT  int64
		OrderCount int64
	}
	var orders orderRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total), 0) AS total_sales, COALESCE(SUM(vat), 0) AS output_vat, COUNT(*) AS order_count
		 FROM orders
		 WHERE status IN ? AND created_at >= ? AND created_at < ?`,
		realizedStatuses, start.UTC(), end.UTC(),
	).Scan(&orders).Error
	if err != nil {
		return domain.Totals{}, err
	}

	type expenseRow struct {
		Deductible int64
		InputVAT   int64
	}
	var expenses expenseRow
	err = s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) AS deductible, COALESCE(SUM(vat), 0) AS input_vat
		 FROM expenses
		 WHERE vat_applicable = ? AND incurred_at >= ? AND incurred_at < ?`,
		true, start.UTC(), end.UTC(),
	).Scan(&expenses).Error
	if err != nil {
		return domain.Totals{}, err
	}

	payable := orders.OutputVAT - expenses.InputVAT
	if payable < 0 {
		// Excess input VAT is not carried forward; the period simply owes
		// nothing.
		payable = 0
	}

	return domain.Totals{
		TotalSales:       orders.TotalSales,
		OutputVAT:        orders.OutputVAT,
		DeductibleAmount: expenses.Deductible,
		InputVAT:         expenses.InputVAT,
		VATPayable:       payable,
		OrderCount:       orders.OrderCount,
	}, nil
}

func (s *Service) Rollover(ctx context.Context, today time.Time) (*domain.Record, error) {
	period := s.CurrentPeriodAt(today)
	totals, err := s.Aggregate(ctx, period.Start, period.WindowEnd())
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var out *domain.Record
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.findRecord(ctx, tx, period.Month, period.Year)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Status == domain.RecordStatusArchived {
				return domain.ErrPeriodArchived
			}
			result := tx.Model(&domain.Record{}).
				Where("id = ? AND status = ?", existing.ID, domain.RecordStatusActive).
				Updates(map[string]any{
					"total_sales_amount":         totals.TotalSales,
					"output_vat":                 totals.OutputVAT,
					"deductible_expenses_amount": totals.DeductibleAmount,
					"input_vat":                  totals.InputVAT,
					"vat_payable":                totals.VATPayable,
					"order_count":                totals.OrderCount,
					"updated_at":                 now,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domain.ErrPeriodArchived
			}
			existing.TotalSales = totals.TotalSales
			existing.OutputVAT = totals.OutputVAT
			existing.Deductible = totals.DeductibleAmount
			existing.InputVAT = totals.InputVAT
			existing.VATPayable = totals.VATPayable
			existing.OrderCount = totals.OrderCount
			existing.UpdatedAt = now
			out = existing
			return nil
		}

		record := &domain.Record{
			ID:          s.genID.Generate(),
			PeriodMonth: period.Month,
			PeriodYear:  period.Year,
			PeriodStart: period.Start,
			PeriodEnd:   period.End,
			TotalSales:  totals.TotalSales,
			OutputVAT:   totals.OutputVAT,
			Deductible:  totals.DeductibleAmount,
			InputVAT:    totals.InputVAT,
			VATPayable:  totals.VATPayable,
			OrderCount:  totals.OrderCount,
			Status:      domain.RecordStatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		out = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Archive(ctx context.Context, month, year int) (*domain.Record, error) {
	if month < 1 || month > 12 || year < 2000 {
		return nil, domain.ErrInvalidPeriod
	}

	now := s.clock.Now()
	var out *domain.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.findRecord(ctx, tx, month, year)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrRecordNotFound
		}
		if existing.Status == domain.RecordStatusArchived {
			return domain.ErrPeriodArchived
		}

		result := tx.Model(&domain.Record{}).
			Where("id = ? AND status = ?", existing.ID, domain.RecordStatusActive).
			Updates(map[string]any{
				"status":      domain.RecordStatusArchived,
				"archived_at": now,
				"updated_at":  now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrPeriodArchived
		}
		existing.Status = domain.RecordStatusArchived
		existing.ArchivedAt = &now
		existing.UpdatedAt = now
		out = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	if notifyErr := s.notifier.Notify(ctx, notifdomain.EventPeriodArchived, out.ID.String(), map[string]any{
		"period_month": month,
		"period_year":  year,
		"vat_payable":  out.VATPayable,
	}); notifyErr != nil {
		s.log.Warn("archive notification failed", zap.Error(notifyErr))
	}

	targetID := out.ID.String()
	if auditErr := s.audit.AuditLog(ctx, "admin", nil, "vatperiod.archive", "vat_period_record", &targetID, map[string]any{
		"period_month": month,
		"period_year":  year,
		"vat_payable":  out.VATPayable,
	}); auditErr != nil {
		s.log.Warn("audit write failed", zap.Error(auditErr))
	}
	return out, nil
}

func (s *Service) GetRecord(ctx context.Context, month, year int) (*domain.Record, error) {
	record, err := s.findRecord(ctx, s.db, month, year)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrRecordNotFound
	}
	return record, nil
}

func (s *Service) Snapshot(ctx context.Context, now time.Time) (domain.Period, domain.Totals, error) {
	period := s.CurrentPeriodAt(now)
	totals, err := s.Aggregate(ctx, period.Start, period.WindowEnd())
	if err != nil {
		return domain.Period{}, domain.Totals{}, err
	}
	return period, totals, nil
}

func (s *Service) AnnualTotal(ctx context.Context, year int) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(vat_payable), 0)
		 FROM vat_period_records
		 WHERE period_year = ?`,
		year,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) findRecord(ctx context.Context, tx *gorm.DB, month, year int) (*domain.Record, error) {
	var record domain.Record
	err := tx.WithContext(ctx).
		Where("period_month = ? AND period_year = ?", month, year).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
