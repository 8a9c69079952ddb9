package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgigiN/momo-wallet/internal/category"
	"github.com/NgigiN/momo-wallet/internal/ledger"
	"github.com/NgigiN/momo-wallet/internal/offline"
	"github.com/NgigiN/momo-wallet/internal/storage"
)

const (
	smsTransferOut = "Vous avez envoye 10300F au 077123456 Jean Dupont.Frais 200F. Nouveau Solde 45000F.TID:ABC123456."
	smsTransferIn  = "Recu 20000FCFA du 077654321. Solde actuel 65000FCFA. TID:XYZ789. Promo GIMACPAY blabla"
	smsBundle      = "Paiement de 2000 F BUNDLE DATA pour ref REF001 a ete effectue avec succes. Cout: 0 FCFA. Solde 43000F. TID: BND001."
	smsBill        = "Vous avez PAYE 34155 FCFA a SEEG ... TID: BILL001...Solde: 10000 FCFA."
)

var (
	_ ledger.Store = (*storage.Database)(nil)

	errUnavailable = errors.New("database is locked")
)

func newDatabase(t *testing.T) *storage.Database {
	t.Helper()
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newService(t *testing.T, store ledger.Store, queue *offline.Queue) *ledger.Service {
	t.Helper()
	return ledger.NewService(store, category.NewEngine(nil), queue, zerolog.Nop())
}

func TestIngestBatch(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newDatabase(t), nil)
	_, err := svc.EnsureDefaultCategories(ctx, "u1")
	require.NoError(t, err)

	blob := strings.Join([]string{smsTransferOut, smsTransferIn, smsBundle, smsBill, "Hello, how are you?", smsTransferOut}, "\n\n")
	report, err := svc.Ingest(ctx, "u1", blob)
	require.NoError(t, err)

	require.Len(t, report.Imported, 4)
	assert.Len(t, report.Duplicates, 1)
	assert.Equal(t, []string{"Hello, how are you?"}, report.Unrecognized)
	assert.Empty(t, report.Failed)

	kinds := make([]string, len(report.Imported))
	for i, r := range report.Imported {
		kinds[i] = r.Import.Kind
		assert.Equal(t, storage.StatusPendingReview, r.Import.Status)
		assert.NotZero(t, r.Import.ID)
	}
	assert.Equal(t, []string{"transfer_out", "transfer_in", "bundle", "bill_payment"}, kinds)

	assert.Equal(t, storage.StatusDuplicate, report.Duplicates[0].Import.Status)

	bundle, bill := report.Imported[2], report.Imported[3]
	require.NotNil(t, bundle.Suggested)
	assert.Equal(t, "Telecom", bundle.Suggested.Name)
	require.NotNil(t, bill.Suggested)
	assert.Equal(t, "Factures", bill.Suggested.Name)
	assert.Nil(t, report.Imported[1].Suggested)

	pending, err := svc.Pending(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, pending, 4)
}

func TestIngestSingleMessageTwice(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newDatabase(t), nil)

	first, err := svc.Ingest(ctx, "u1", smsBill)
	require.NoError(t, err)
	require.Len(t, first.Imported, 1)

	second, err := svc.Ingest(ctx, "u1", smsBill)
	require.NoError(t, err)
	assert.Empty(t, second.Imported)
	assert.Len(t, second.Duplicates, 1)

	other, err := svc.Ingest(ctx, "u2", smsBill)
	require.NoError(t, err)
	assert.Len(t, other.Imported, 1, "ids are scoped per user")
}

func TestIngestEmpty(t *testing.T) {
	svc := newService(t, newDatabase(t), nil)
	report, err := svc.Ingest(context.Background(), "u1", "  \n\n ")
	require.NoError(t, err)
	assert.Empty(t, report.Imported)
	assert.Empty(t, report.Unrecognized)
}

func TestConfirmBooksImport(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)
	svc := newService(t, db, nil)
	acct, err := svc.CreateAccount(ctx, "u1", "Airtel Money", 50000, false)
	require.NoError(t, err)

	report, err := svc.Ingest(ctx, "u1", smsTransferOut)
	require.NoError(t, err)
	require.Len(t, report.Imported, 1)
	impID := report.Imported[0].Import.ID

	tx, err := svc.Confirm(ctx, "u1", impID, acct.ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, int64(-10500), tx.Amount)
	assert.Equal(t, "077123456 Jean Dupont", tx.Label)
	require.NotNil(t, tx.SmsReference)
	assert.Equal(t, "ABC123456", *tx.SmsReference)

	got, err := db.GetAccount(ctx, "u1", acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(39500), got.Balance)

	imp, err := db.GetImport(ctx, "u1", impID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusConfirmed, imp.Status)

	_, err = svc.Confirm(ctx, "u1", impID, acct.ID, nil, "")
	assert.ErrorIs(t, err, storage.ErrImportNotPending)
	assert.ErrorIs(t, svc.Reject(ctx, "u1", impID), storage.ErrImportNotPending)
}

func TestConfirmInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)
	svc := newService(t, db, nil)
	acct, err := svc.CreateAccount(ctx, "u1", "Moov Money", 1000, false)
	require.NoError(t, err)

	report, err := svc.Ingest(ctx, "u1", smsTransferOut)
	require.NoError(t, err)
	impID := report.Imported[0].Import.ID

	_, err = svc.Confirm(ctx, "u1", impID, acct.ID, nil, "")
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	var ibe *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &ibe)
	assert.Equal(t, int64(1000), ibe.Balance)
	assert.Equal(t, int64(-10500), ibe.Amount)

	imp, err := db.GetImport(ctx, "u1", impID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusPendingReview, imp.Status, "the user can pick another account")

	loose, err := svc.CreateAccount(ctx, "u1", "Carte", 0, true)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, "u1", impID, loose.ID, nil, "")
	require.NoError(t, err)
}

func TestHabitMemoryOutranksKeywordOnConfirm(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newDatabase(t), nil)
	_, err := svc.EnsureDefaultCategories(ctx, "u1")
	require.NoError(t, err)
	acct, err := svc.CreateAccount(ctx, "u1", "Wallet", 100000, false)
	require.NoError(t, err)

	housing, err := svc.CategoryByName(ctx, "u1", "logement")
	require.NoError(t, err)
	_, err = svc.RecordTransaction(ctx, "u1", acct.ID, -5000, "SEEG", &housing.ID, time.Time{}, "")
	require.NoError(t, err)

	report, err := svc.Ingest(ctx, "u1", smsBill)
	require.NoError(t, err)
	require.Len(t, report.Imported, 1)
	require.NotNil(t, report.Imported[0].Suggested)
	assert.Equal(t, "Logement", report.Imported[0].Suggested.Name)

	tx, err := svc.Confirm(ctx, "u1", report.Imported[0].Import.ID, acct.ID, nil, "")
	require.NoError(t, err)
	require.NotNil(t, tx.CategoryID)
	assert.Equal(t, housing.ID, *tx.CategoryID)
}

func TestEnsureDefaultCategoriesOnce(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newDatabase(t), nil)

	first, err := svc.EnsureDefaultCategories(ctx, "u1")
	require.NoError(t, err)
	second, err := svc.EnsureDefaultCategories(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, second, len(first))

	salary, err := svc.CategoryByName(ctx, "u1", "Salaire")
	require.NoError(t, err)
	assert.Equal(t, storage.CategoryIncome, salary.Type)

	_, err = svc.CategoryByName(ctx, "u1", "Inconnue")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordTransactionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)
	svc := newService(t, db, nil)
	acct, err := svc.CreateAccount(ctx, "u1", "Wallet", 1000, false)
	require.NoError(t, err)

	first, err := svc.RecordTransaction(ctx, "u1", acct.ID, -400, "Taxi", nil, time.Time{}, "ref-1")
	require.NoError(t, err)
	again, err := svc.RecordTransaction(ctx, "u1", acct.ID, -400, "Taxi", nil, time.Time{}, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	got, err := db.GetAccount(ctx, "u1", acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), got.Balance)
}

func TestClientRefIsScopedToUser(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)
	svc := newService(t, db, nil)
	mine, err := svc.CreateAccount(ctx, "u1", "Wallet", 1000, false)
	require.NoError(t, err)
	theirs, err := svc.CreateAccount(ctx, "u2", "Wallet", 1000, false)
	require.NoError(t, err)

	first, err := svc.RecordTransaction(ctx, "u1", mine.ID, -400, "Taxi", nil, time.Time{}, "shared-ref")
	require.NoError(t, err)
	second, err := svc.RecordTransaction(ctx, "u2", theirs.ID, -250, "Pain", nil, time.Time{}, "shared-ref")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "u2", second.UserID)

	got, err := db.GetAccount(ctx, "u2", theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(750), got.Balance)
}

func TestCheckDebit(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newDatabase(t), nil)
	acct, err := svc.CreateAccount(ctx, "u1", "Wallet", 1000, false)
	require.NoError(t, err)

	assert.NoError(t, svc.CheckDebit(ctx, "u1", acct.ID, -1000))
	assert.ErrorIs(t, svc.CheckDebit(ctx, "u1", acct.ID, -1001), ledger.ErrInsufficientBalance)
	assert.ErrorIs(t, svc.CheckDebit(ctx, "u1", 999, -1), storage.ErrNotFound)
}

// flakyStore fails commits while down. With lostAck the commit lands but
// the caller still sees a failure.
type flakyStore struct {
	ledger.Store
	down    bool
	lostAck bool
}

func (f *flakyStore) CommitTransaction(ctx context.Context, tx *storage.Transaction, importID *uint) error {
	if f.down {
		return errUnavailable
	}
	err := f.Store.CommitTransaction(ctx, tx, importID)
	if err == nil && f.lostAck {
		return errUnavailable
	}
	return err
}

func openQueue(t *testing.T) *offline.Queue {
	t.Helper()
	q, err := offline.Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestQueuedTransactionsReplayInOrder(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)
	store := &flakyStore{Store: db}
	svc := newService(t, store, openQueue(t))
	acct, err := svc.CreateAccount(ctx, "u1", "Wallet", 1000, false)
	require.NoError(t, err)

	store.down = true
	for _, amount := range []int64{-300, -200} {
		_, err := svc.RecordTransaction(ctx, "u1", acct.ID, amount, "Taxi", nil, time.Time{}, "")
		require.ErrorIs(t, err, ledger.ErrQueued)
	}
	assert.Equal(t, 2, svc.QueueDepth())

	res, err := svc.FlushQueue(ctx)
	require.ErrorIs(t, err, errUnavailable)
	assert.Zero(t, res.Applied)
	assert.Equal(t, 2, svc.QueueDepth())

	store.down = false
	res, err = svc.FlushQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Zero(t, svc.QueueDepth())

	got, err := db.GetAccount(ctx, "u1", acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.Balance)

	txs, err := db.RecentTransactions(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestReplayDoesNotDoubleBook(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)
	store := &flakyStore{Store: db, lostAck: true}
	svc := newService(t, store, openQueue(t))
	acct, err := svc.CreateAccount(ctx, "u1", "Wallet", 1000, false)
	require.NoError(t, err)

	_, err = svc.RecordTransaction(ctx, "u1", acct.ID, -300, "Taxi", nil, time.Time{}, "")
	require.ErrorIs(t, err, ledger.ErrQueued)

	res, err := svc.FlushQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	got, err := db.GetAccount(ctx, "u1", acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), got.Balance)
}

func TestReplayRejectsPermanentFailures(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)
	queue := openQueue(t)
	svc := newService(t, db, queue)
	acct, err := svc.CreateAccount(ctx, "u1", "Wallet", 1000, false)
	require.NoError(t, err)

	_, err = queue.Enqueue(offline.Entry{UserID: "u1", AccountID: 999, Amount: -10, Date: time.Now()})
	require.NoError(t, err)
	_, err = queue.Enqueue(offline.Entry{UserID: "u1", AccountID: acct.ID, Amount: -5000, Date: time.Now()})
	require.NoError(t, err)
	_, err = queue.Enqueue(offline.Entry{UserID: "u1", AccountID: acct.ID, Amount: -100, Date: time.Now()})
	require.NoError(t, err)

	res, err := svc.FlushQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, offline.ReplayResult{Applied: 1, Rejected: 2}, res)

	rejected, err := queue.Rejected()
	require.NoError(t, err)
	assert.Len(t, rejected, 2)

	got, err := db.GetAccount(ctx, "u1", acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), got.Balance)
}

func TestQueuedConfirmationConfirmsOnReplay(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)
	store := &flakyStore{Store: db}
	svc := newService(t, store, openQueue(t))
	acct, err := svc.CreateAccount(ctx, "u1", "Wallet", 50000, false)
	require.NoError(t, err)

	report, err := svc.Ingest(ctx, "u1", smsTransferOut)
	require.NoError(t, err)
	impID := report.Imported[0].Import.ID

	store.down = true
	_, err = svc.Confirm(ctx, "u1", impID, acct.ID, nil, "")
	require.ErrorIs(t, err, ledger.ErrQueued)

	store.down = false
	_, err = svc.FlushQueue(ctx)
	require.NoError(t, err)

	imp, err := db.GetImport(ctx, "u1", impID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusConfirmed, imp.Status)
}

func TestCharges(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newDatabase(t), nil)
	today := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)

	rent, err := svc.AddCharge(ctx, "u1", "Loyer", 150000, 5)
	require.NoError(t, err)
	tv, err := svc.AddCharge(ctx, "u1", "Canal+", 10000, 25)
	require.NoError(t, err)
	_, err = svc.AddCharge(ctx, "u1", "Bad", 1, 32)
	assert.Error(t, err)

	next, overdue, err := svc.Upcoming(ctx, "u1", today)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, tv.ID, next.Charge.ID)
	require.Len(t, overdue, 1)
	assert.Equal(t, rent.ID, overdue[0].Charge.ID)

	period, err := svc.PayCharge(ctx, "u1", rent.ID, today)
	require.NoError(t, err)
	assert.Equal(t, "2026-10", period)

	_, overdue, err = svc.Upcoming(ctx, "u1", today)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	_, err = svc.PayCharge(ctx, "u1", 999, today)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
