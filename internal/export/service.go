// Package export bundles an invoice's attachments with a plain-text summary.
package export

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MrJamesThe3rd/ledger/internal/creditcard"
	"github.com/MrJamesThe3rd/ledger/internal/resilience"
	"github.com/MrJamesThe3rd/ledger/internal/transaction"
)

var tracer = otel.Tracer("export")

const maxConcurrentDownloads = 4

// Item is one exported transaction with the local path of its attachment.
type Item struct {
	Transaction *transaction.Transaction
	FilePath    string
}

type Result struct {
	Invoice *creditcard.Invoice
	Items   []Item
}

type Invoices interface {
	GetInvoice(ctx context.Context, profileID, id uuid.UUID) (*creditcard.Invoice, error)
}

type Transactions interface {
	List(ctx context.Context, profileID uuid.UUID, filter transaction.ListFilter) ([]*transaction.Transaction, error)
}

type Service struct {
	invoices     Invoices
	transactions Transactions
	client       *http.Client
	apiToken     string
	retry        resilience.Config
	logger       *zap.Logger
}

func NewService(invoices Invoices, transactions Transactions, apiToken string, retry resilience.Config, logger *zap.Logger) *Service {
	return &Service{
		invoices:     invoices,
		transactions: transactions,
		client:       &http.Client{Timeout: 30 * time.Second},
		apiToken:     apiToken,
		retry:        retry,
		logger:       logger,
	}
}

// Export downloads the attachment of every transaction on the invoice into
// outputDir. Items keep the order of the invoice listing; transactions
// without an attachment get an empty FilePath.
func (s *Service) Export(ctx context.Context, profileID, invoiceID uuid.UUID, outputDir string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "ExportService.Export")
	defer span.End()

	inv, err := s.invoices.GetInvoice(ctx, profileID, invoiceID)
	if err != nil {
		return nil, err
	}

	txs, err := s.transactions.List(ctx, profileID, transaction.ListFilter{InvoiceID: &invoiceID})
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	items := make([]Item, len(txs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDownloads)

	for i, tx := range txs {
		items[i].Transaction = tx

		if tx.Attachment == nil || *tx.Attachment == "" {
			continue
		}

		g.Go(func() error {
			path, err := s.downloadAttachment(gctx, tx, i+1, outputDir)
			if err != nil {
				return fmt.Errorf("downloading attachment for transaction %s: %w", tx.ID, err)
			}

			items[i].FilePath = path

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info("invoice exported",
		zap.Stringer("profile_id", profileID),
		zap.Stringer("invoice_id", invoiceID),
		zap.Int("transactions", len(items)),
	)

	return &Result{Invoice: inv, Items: items}, nil
}

// downloadAttachment retries server errors; client errors fail at once.
func (s *Service) downloadAttachment(ctx context.Context, tx *transaction.Transaction, position int, dir string) (string, error) {
	var path string

	err := resilience.RetryWithBackoff(ctx, s.retry, func() error {
		var err error
		path, err = s.fetch(ctx, tx, position, dir)

		return err
	})

	return path, err
}

func (s *Service) fetch(ctx context.Context, tx *transaction.Transaction, position int, dir string) (string, error) {
	url := *tx.Attachment

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("creating request: %w", err))
	}

	if s.apiToken != "" {
		req.Header.Set("Authorization", "Token "+s.apiToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status code %d for url %s", resp.StatusCode, url)
		if resp.StatusCode < http.StatusInternalServerError {
			return "", resilience.Permanent(err)
		}

		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("%03d_%s", position, filename(resp, tx)))

	f, err := os.Create(path)
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("creating file: %w", err))
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}

	return path, nil
}

func filename(resp *http.Response, tx *transaction.Transaction) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name, ok := params["filename"]; ok && name != "" {
				return strings.ReplaceAll(filepath.Base(name), " ", "_")
			}
		}
	}

	ext := ".pdf"

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if exts, _ := mime.ExtensionsByType(ct); len(exts) > 0 {
			ext = exts[0]
		}
	}

	safeDesc := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}

		return '_'
	}, tx.Description)

	// YYYYMMDD_Description.ext
	return fmt.Sprintf("%s_%s%s", tx.Date.Format("20060102"), safeDesc, ext)
}

// GenerateSummary renders the invoice header followed by one line per item.
func (s *Service) GenerateSummary(inv *creditcard.Invoice, items []Item, today time.Time) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %02d/%d | due %s | total %s | %s\n",
		inv.CardName, inv.Month, inv.Year, inv.DueDate.Format(time.DateOnly),
		inv.TotalAmount.StringFixed(2), inv.Status(today))

	for _, item := range items {
		tx := item.Transaction

		attachment := "no attachment"
		if item.FilePath != "" {
			attachment = filepath.Base(item.FilePath)
		}

		fmt.Fprintf(&sb, "* %s | %s | %s | %s\n",
			tx.Date.Format(time.DateOnly), tx.Description, tx.Amount.StringFixed(2), attachment)
	}

	return sb.String()
}
