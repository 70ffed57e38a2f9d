// Package statement exports wallet ledger statements as CSV objects.
package statement

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/wallet"
)

const (
	dateLayout  = "2006-01-02"
	contentType = "text/csv"
)

var (
	ErrInvalidRange   = errors.New("statement range is invalid")
	ErrWalletNotFound = wallet.ErrWalletNotFound
)

var header = []string{
	"created_at", "entry_id", "type", "direction", "amount_minor", "amount",
	"currency", "payment_intent_id", "booking_id", "running_minor",
}

type WalletReader interface {
	Get(ctx context.Context, walletID uuid.UUID) (*wallet.Wallet, error)
}

type EntryLister interface {
	ListByWalletRange(ctx context.Context, walletID uuid.UUID, from, to time.Time) ([]ledger.Entry, error)
}

// Uploader is implemented by storage.S3Storage and storage.LocalStorage.
type Uploader interface {
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error
	GetURL(key string) string
}

// Statement describes an exported object.
type Statement struct {
	WalletID uuid.UUID `json:"wallet_id"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Key      string    `json:"key"`
	URL      string    `json:"url"`
	Entries  int       `json:"entries"`
	NetMinor int64     `json:"net_minor"`
}

type Service struct {
	wallets  WalletReader
	entries  EntryLister
	uploader Uploader
}

func NewService(wallets WalletReader, entries EntryLister, uploader Uploader) *Service {
	return &Service{wallets: wallets, entries: entries, uploader: uploader}
}

// Key returns the object key of a statement. The range is [from, to).
func Key(walletID uuid.UUID, from, to time.Time) string {
	return fmt.Sprintf("statements/%s/%s_%s.csv", walletID, from.Format(dateLayout), to.Format(dateLayout))
}

// Export writes the wallet's entries in [from, to) as CSV and uploads it.
func (s *Service) Export(ctx context.Context, walletID uuid.UUID, from, to time.Time) (*Statement, error) {
	from, to = from.UTC(), to.UTC()
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}

	w, err := s.wallets.Get(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWalletNotFound
	}

	entries, err := s.entries.ListByWalletRange(ctx, walletID, from, to)
	if err != nil {
		return nil, err
	}

	body, net, err := render(entries)
	if err != nil {
		return nil, fmt.Errorf("render statement: %w", err)
	}

	key := Key(walletID, from, to)
	if err := s.uploader.Put(ctx, key, bytes.NewReader(body), contentType); err != nil {
		return nil, fmt.Errorf("upload statement: %w", err)
	}

	log.Info().
		Str("wallet_id", walletID.String()).
		Str("key", key).
		Int("entries", len(entries)).
		Msg("statement exported")

	return &Statement{
		WalletID: walletID,
		From:     from.Format(dateLayout),
		To:       to.Format(dateLayout),
		Key:      key,
		URL:      s.uploader.GetURL(key),
		Entries:  len(entries),
		NetMinor: net,
	}, nil
}

func render(entries []ledger.Entry) ([]byte, int64, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(header); err != nil {
		return nil, 0, err
	}

	var running int64
	for i := range entries {
		e := &entries[i]
		running += e.Signed()
		booking := ""
		if e.BookingID != nil {
			booking = *e.BookingID
		}
		row := []string{
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.ID.String(),
			string(e.Type),
			string(e.Direction),
			strconv.FormatInt(e.AmountMinor, 10),
			formatAmount(e.AmountMinor, e.Currency),
			e.Currency,
			e.PaymentIntentID,
			booking,
			strconv.FormatInt(running, 10),
		}
		if err := cw.Write(row); err != nil {
			return nil, 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), running, nil
}

// formatAmount prints minor units in major units with the currency's ISO 4217
// number of decimals.
func formatAmount(minor int64, currency string) string {
	exp := wallet.MinorUnits(currency)
	return decimal.New(minor, -exp).StringFixed(exp)
}
