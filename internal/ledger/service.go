// Package ledger turns parsed Mobile Money notifications into reviewed
// imports and booked transactions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/NgigiN/momo-wallet/internal/category"
	"github.com/NgigiN/momo-wallet/internal/momo"
	"github.com/NgigiN/momo-wallet/internal/offline"
	"github.com/NgigiN/momo-wallet/internal/storage"
)

// ErrQueued is returned when a commit could not reach the store and was
// buffered for replay instead.
var ErrQueued = errors.New("transaction queued for replay")

// historyDepth bounds the habit memory handed to the category engine.
const historyDepth = 200

// Store is the persistence the service needs. Both the SQLite and the
// PostgreSQL stores implement it.
type Store interface {
	CreateAccount(ctx context.Context, acct *storage.Account) error
	GetAccount(ctx context.Context, userID string, id uint) (*storage.Account, error)
	FindAccountByName(ctx context.Context, userID, name string) (*storage.Account, error)
	ListAccounts(ctx context.Context, userID string) ([]storage.Account, error)

	CommitTransaction(ctx context.Context, tx *storage.Transaction, importID *uint) error
	FindTransactionByClientRef(ctx context.Context, userID, ref string) (*storage.Transaction, error)
	RecentTransactions(ctx context.Context, userID string, limit int) ([]storage.Transaction, error)
	CategorySummary(ctx context.Context, userID string) ([]storage.CategoryTotal, error)

	CreateImport(ctx context.Context, imp *storage.SmsImport) error
	GetImport(ctx context.Context, userID string, id uint) (*storage.SmsImport, error)
	ListImports(ctx context.Context, userID string, status storage.ImportStatus) ([]storage.SmsImport, error)
	RejectImport(ctx context.Context, userID string, id uint) error
	TransactionIDExists(ctx context.Context, userID, tid string) (bool, error)
	ImportedTransactionIDs(ctx context.Context, userID string) ([]string, error)

	CreateCategory(ctx context.Context, c *storage.Category) error
	ListCategories(ctx context.Context, userID string) ([]storage.Category, error)

	CreateCharge(ctx context.Context, c *storage.FixedCharge) error
	ListCharges(ctx context.Context, userID string) ([]storage.FixedCharge, error)
	MarkChargePaid(ctx context.Context, userID string, id uint, period string) error
}

type Service struct {
	store  Store
	engine *category.Engine
	queue  *offline.Queue
	log    zerolog.Logger
	now    func() time.Time
}

// NewService wires the service. queue may be nil, in which case store
// failures are returned to the caller instead of being buffered.
func NewService(store Store, engine *category.Engine, queue *offline.Queue, log zerolog.Logger) *Service {
	if engine == nil {
		engine = category.NewEngine(nil)
	}
	return &Service{
		store:  store,
		engine: engine,
		queue:  queue,
		log:    log,
		now:    time.Now,
	}
}

// ImportResult is one recognized message of a batch.
type ImportResult struct {
	Import    storage.SmsImport
	Fields    momo.Fields
	Suggested *storage.Category
}

type Failure struct {
	Raw string
	Err error
}

// IngestReport describes a batch. Every non-empty segment of the input
// lands in exactly one of Imported, Duplicates, Unrecognized or Failed.
type IngestReport struct {
	Imported     []ImportResult
	Duplicates   []ImportResult
	Unrecognized []string
	Failed       []Failure
}

// Ingest splits raw into messages, parses each one and stores the
// recognized ones as imports. A message whose carrier id is already known,
// or appeared earlier in the batch, is stored as a duplicate. Per-message
// failures are reported and never abort the batch.
func (s *Service) Ingest(ctx context.Context, userID, raw string) (*IngestReport, error) {
	entries := momo.Split(raw)
	report := &IngestReport{}
	if len(entries) == 0 {
		return report, nil
	}

	guard, err := s.guardFor(ctx, userID, entries)
	if err != nil {
		return nil, err
	}

	cats, history, err := s.suggestionInputs(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.Parsed == nil {
			report.Unrecognized = append(report.Unrecognized, e.Raw)
			continue
		}

		f := e.Parsed.Fields()
		status := storage.StatusPendingReview
		if guard.Check(f.TID) {
			status = storage.StatusDuplicate
		}

		imp := storage.SmsImport{
			UserID:        userID,
			RawText:       e.Raw,
			Kind:          string(f.Kind),
			Amount:        f.Amount,
			Fees:          f.Fees,
			Balance:       f.Balance,
			Recipient:     f.Recipient,
			TransactionID: f.TID,
			Status:        status,
		}
		if err := s.store.CreateImport(ctx, &imp); err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Str("kind", imp.Kind).Msg("failed to store import")
			report.Failed = append(report.Failed, Failure{Raw: e.Raw, Err: err})
			continue
		}

		res := ImportResult{Import: imp, Fields: f}
		if status == storage.StatusDuplicate {
			report.Duplicates = append(report.Duplicates, res)
			continue
		}
		res.Suggested = s.suggest(Label(f), direction(f.Kind), cats, history)
		report.Imported = append(report.Imported, res)
	}

	s.log.Info().
		Str("user_id", userID).
		Int("imported", len(report.Imported)).
		Int("duplicates", len(report.Duplicates)).
		Int("unrecognized", len(report.Unrecognized)).
		Int("failed", len(report.Failed)).
		Msg("sms batch ingested")
	return report, nil
}

// guardFor loads the ids a batch is checked against. A single message only
// needs its own id looked up.
func (s *Service) guardFor(ctx context.Context, userID string, entries []momo.Entry) (*Guard, error) {
	if len(entries) == 1 && entries[0].Parsed != nil {
		tid := entries[0].Parsed.Fields().TID
		if tid == nil {
			return NewGuard(nil), nil
		}
		exists, err := s.store.TransactionIDExists(ctx, userID, *tid)
		if err != nil {
			return nil, fmt.Errorf("failed to check transaction id %s: %w", *tid, err)
		}
		if exists {
			return NewGuard([]string{*tid}), nil
		}
		return NewGuard(nil), nil
	}

	ids, err := s.store.ImportedTransactionIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load known transaction ids: %w", err)
	}
	return NewGuard(ids), nil
}

// Label is the default transaction label for a parsed message.
func Label(f momo.Fields) string {
	if f.Recipient != nil && *f.Recipient != "" {
		return *f.Recipient
	}
	switch f.Kind {
	case momo.KindBundle:
		return "Forfait"
	case momo.KindTransferIn:
		return "Transfert recu"
	case momo.KindBillPayment:
		return "Facture"
	default:
		return "Transfert"
	}
}

func direction(k momo.Kind) category.Direction {
	if k.Outflow() {
		return category.Expense
	}
	return category.Income
}

func importFields(imp *storage.SmsImport) momo.Fields {
	return momo.Fields{
		Kind:      momo.Kind(imp.Kind),
		Amount:    imp.Amount,
		Fees:      imp.Fees,
		Balance:   imp.Balance,
		Recipient: imp.Recipient,
		TID:       imp.TransactionID,
	}
}

// Confirm books a pending import on accountID. An empty label falls back to
// the counterparty and a nil category to the engine's suggestion.
func (s *Service) Confirm(ctx context.Context, userID string, importID, accountID uint, categoryID *uint, label string) (*storage.Transaction, error) {
	imp, err := s.store.GetImport(ctx, userID, importID)
	if err != nil {
		return nil, err
	}
	if imp.Status != storage.StatusPendingReview {
		return nil, fmt.Errorf("import %d is %s: %w", imp.ID, imp.Status, storage.ErrImportNotPending)
	}

	f := importFields(imp)
	if strings.TrimSpace(label) == "" {
		label = Label(f)
	}
	if categoryID == nil {
		c, err := s.SuggestCategory(ctx, userID, label, direction(f.Kind))
		if err != nil {
			return nil, err
		}
		if c != nil {
			categoryID = &c.ID
		}
	}

	return s.commit(ctx, offline.Entry{
		UserID:       userID,
		AccountID:    accountID,
		Amount:       f.Signed(),
		Label:        label,
		CategoryID:   categoryID,
		Date:         imp.CreatedAt,
		ImportID:     &imp.ID,
		SmsReference: imp.TransactionID,
	})
}

func (s *Service) Reject(ctx context.Context, userID string, importID uint) error {
	if err := s.store.RejectImport(ctx, userID, importID); err != nil {
		return fmt.Errorf("failed to reject import %d: %w", importID, err)
	}
	return nil
}

func (s *Service) Pending(ctx context.Context, userID string) ([]storage.SmsImport, error) {
	return s.store.ListImports(ctx, userID, storage.StatusPendingReview)
}

// RecordTransaction books a manual entry. clientRef makes retries safe: a
// second call with the same reference returns the first transaction.
func (s *Service) RecordTransaction(ctx context.Context, userID string, accountID uint, amount int64, label string, categoryID *uint, date time.Time, clientRef string) (*storage.Transaction, error) {
	if date.IsZero() {
		date = s.now()
	}
	return s.commit(ctx, offline.Entry{
		ID:         clientRef,
		UserID:     userID,
		AccountID:  accountID,
		Amount:     amount,
		Label:      label,
		CategoryID: categoryID,
		Date:       date,
	})
}

// CheckDebit is the advisory check shown before a commit. The commit
// itself re-validates atomically.
func (s *Service) CheckDebit(ctx context.Context, userID string, accountID uint, signed int64) error {
	acct, err := s.store.GetAccount(ctx, userID, accountID)
	if err != nil {
		return err
	}
	return CheckBalance(acct.Balance, signed, acct.AllowNegativeBalance)
}

func (s *Service) commit(ctx context.Context, e offline.Entry) (*storage.Transaction, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	} else if existing, err := s.store.FindTransactionByClientRef(ctx, e.UserID, e.ID); err == nil {
		return existing, nil
	}
	if err := s.CheckDebit(ctx, e.UserID, e.AccountID, e.Amount); err != nil && permanent(err) {
		return nil, err
	}

	tx, err := s.apply(ctx, e)
	if err == nil || permanent(err) || s.queue == nil {
		return tx, err
	}

	if _, qerr := s.queue.Enqueue(e); qerr != nil {
		return nil, fmt.Errorf("failed to commit (%v) and to queue: %w", err, qerr)
	}
	s.log.Warn().Err(err).Str("entry_id", e.ID).Str("user_id", e.UserID).Msg("store unavailable, transaction queued")
	return nil, fmt.Errorf("%w: %v", ErrQueued, err)
}

// apply commits e once. A transaction already carrying e.ID is returned as
// is, so replaying an entry that landed before a crash books nothing.
func (s *Service) apply(ctx context.Context, e offline.Entry) (*storage.Transaction, error) {
	existing, err := s.store.FindTransactionByClientRef(ctx, e.UserID, e.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	ref := e.ID
	tx := &storage.Transaction{
		UserID:       e.UserID,
		AccountID:    e.AccountID,
		Amount:       e.Amount,
		Label:        e.Label,
		CategoryID:   e.CategoryID,
		Date:         e.Date,
		SmsReference: e.SmsReference,
		ClientRef:    &ref,
	}
	err = s.store.CommitTransaction(ctx, tx, e.ImportID)
	if errors.Is(err, storage.ErrBalanceConflict) {
		acct, aerr := s.store.GetAccount(ctx, e.UserID, e.AccountID)
		if aerr != nil {
			return nil, aerr
		}
		return nil, &InsufficientBalanceError{Balance: acct.Balance, Amount: e.Amount}
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// permanent reports errors that retrying cannot fix.
func permanent(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrImportNotPending)
}

// FlushQueue replays buffered commits in order. Entries refused for
// domain reasons are set aside; replay stops at the first store failure.
func (s *Service) FlushQueue(ctx context.Context) (offline.ReplayResult, error) {
	if s.queue == nil {
		return offline.ReplayResult{}, nil
	}
	res, err := s.queue.Replay(ctx, func(ctx context.Context, e offline.Entry) error {
		_, err := s.apply(ctx, e)
		if err != nil && permanent(err) {
			s.log.Warn().Err(err).Str("entry_id", e.ID).Msg("queued transaction rejected")
			return offline.Permanent(err)
		}
		return err
	})
	if res.Applied > 0 || res.Rejected > 0 || err != nil {
		s.log.Info().
			Int("applied", res.Applied).
			Int("rejected", res.Rejected).
			Int("left", res.Left).
			AnErr("error", err).
			Msg("offline queue replayed")
	}
	return res, err
}

// QueueDepth returns the number of buffered commits.
func (s *Service) QueueDepth() int {
	if s.queue == nil {
		return 0
	}
	n, err := s.queue.Len()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read queue depth")
	}
	return n
}
