// Package notify publishes reminders for invoices that are overdue or about
// to fall due. It only reads billing state.
package notify

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MrJamesThe3rd/ledger/internal/calendar"
	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
	"github.com/MrJamesThe3rd/ledger/internal/events"
	"github.com/MrJamesThe3rd/ledger/internal/observability"
)

var tracer = otel.Tracer("notify")

//go:generate mockgen -source=sweeper.go -destination=invoices_mock.go -package=notify
type Invoices interface {
	// ListUnpaidInvoices returns unpaid invoices due strictly before dueBefore.
	ListUnpaidInvoices(ctx context.Context, dueBefore time.Time) ([]*creditcard.Invoice, error)
}

type Config struct {
	DueSoonDays int
	Concurrency int
}

// Report counts the reminders of one sweep.
type Report struct {
	Overdue int
	DueSoon int
	Failed  int
}

type Sweeper struct {
	invoices Invoices
	sender   events.Sender
	cfg      Config
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewSweeper(invoices Invoices, sender events.Sender, cfg Config, logger *zap.Logger, metrics *observability.Metrics) *Sweeper {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	return &Sweeper{
		invoices: invoices,
		sender:   sender,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run sends INVOICE_OVERDUE for every unpaid invoice due before today and
// INVOICE_DUE_SOON for those due within DueSoonDays from today. A failed
// send is logged and counted; only a failure to list invoices is returned.
func (s *Sweeper) Run(ctx context.Context, today time.Time) (report Report, err error) {
	ctx, span := tracer.Start(ctx, "Sweeper.Run")
	defer span.End()

	done := s.metrics.Track("notification_sweep")
	defer func() { done(err) }()

	today = calendar.Date(today)
	horizon := today.AddDate(0, 0, s.cfg.DueSoonDays+1)

	invoices, err := s.invoices.ListUnpaidInvoices(ctx, horizon)
	if err != nil {
		return Report{}, fmt.Errorf("listing unpaid invoices: %w", err)
	}

	var overdue, dueSoon, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, inv := range invoices {
		eventType, counter := events.InvoiceDueSoon, &dueSoon
		if inv.DueDate.Before(today) {
			eventType, counter = events.InvoiceOverdue, &overdue
		}

		g.Go(func() error {
			e := events.NewEvent(gctx, eventType, events.TriggerScheduled, reminderPayload(inv, today))

			if err := s.sender.Send(gctx, e); err != nil {
				failed.Add(1)
				s.metrics.IncrEvent(string(eventType), "failed")
				s.logger.Warn("sending invoice reminder failed",
					zap.String("event_type", string(eventType)),
					zap.Stringer("invoice_id", inv.ID),
					zap.Error(err),
				)

				return nil
			}

			counter.Add(1)
			s.metrics.IncrEvent(string(eventType), "sent")

			return nil
		})
	}

	_ = g.Wait()

	report = Report{Overdue: int(overdue.Load()), DueSoon: int(dueSoon.Load()), Failed: int(failed.Load())}

	s.logger.Info("notification sweep finished",
		zap.Time("today", today),
		zap.Int("overdue", report.Overdue),
		zap.Int("due_soon", report.DueSoon),
		zap.Int("failed", report.Failed),
	)

	return report, nil
}

func reminderPayload(inv *creditcard.Invoice, today time.Time) events.Payload {
	days := int(inv.DueDate.Sub(today).Hours() / 24)

	return events.Payload{
		"profile_id":     inv.ProfileID,
		"invoice_id":     inv.ID,
		"credit_card_id": inv.CreditCardID,
		"card_name":      inv.CardName,
		"month":          int(inv.Month),
		"year":           inv.Year,
		"due_date":       inv.DueDate.Format(time.DateOnly),
		"total_amount":   inv.TotalAmount.StringFixed(2),
		"days_until_due": days,
	}
}
