package postgres

import (
	"context"
	"fmt"

	"github.com/NgigiN/momo-wallet/internal/storage"
)

// Store implements the ledger persistence contract on PostgreSQL.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

const accountColumns = `id, created_at, updated_at, user_id, name, initial_balance, balance, allow_negative_balance, is_active`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*storage.Account, error) {
	var a storage.Account
	err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt, &a.UserID, &a.Name,
		&a.InitialBalance, &a.Balance, &a.AllowNegativeBalance, &a.IsActive)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, acct *storage.Account) error {
	query := `
		INSERT INTO accounts (user_id, name, initial_balance, balance, allow_negative_balance, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		acct.UserID, acct.Name, acct.InitialBalance, acct.Balance, acct.AllowNegativeBalance, acct.IsActive,
	).Scan(&acct.ID, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, userID string, id uint) (*storage.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`
	acct, err := scanAccount(s.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return nil, notFound(err, "account")
	}
	return acct, nil
}

func (s *Store) FindAccountByName(ctx context.Context, userID, name string) (*storage.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND LOWER(name) = LOWER($2) AND deleted_at IS NULL`
	acct, err := scanAccount(s.db.QueryRowContext(ctx, query, userID, name))
	if err != nil {
		return nil, notFound(err, "account")
	}
	return acct, nil
}

func (s *Store) ListAccounts(ctx context.Context, userID string) ([]storage.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND deleted_at IS NULL ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []storage.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *acct)
	}
	return accounts, rows.Err()
}

// CommitTransaction mirrors the SQLite store: the balance is changed by one
// conditional UPDATE, the row count decides whether the debit is allowed,
// and the insert plus optional import confirmation share the transaction.
func (s *Store) CommitTransaction(ctx context.Context, tx *storage.Transaction, importID *uint) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3 AND is_active AND deleted_at IS NULL
		  AND ($1 >= 0 OR allow_negative_balance OR balance + $1 >= 0)
	`, tx.Amount, tx.AccountID, tx.UserID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if affected == 0 {
		var exists bool
		err := sqlTx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1 AND user_id = $2 AND is_active AND deleted_at IS NULL)`,
			tx.AccountID, tx.UserID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to look up account: %w", err)
		}
		if !exists {
			return fmt.Errorf("account %d: %w", tx.AccountID, storage.ErrNotFound)
		}
		return storage.ErrBalanceConflict
	}

	err = sqlTx.QueryRowContext(ctx, `
		INSERT INTO transactions (user_id, account_id, amount, label, category_id, date, sms_reference, client_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, tx.UserID, tx.AccountID, tx.Amount, tx.Label, tx.CategoryID, tx.Date, tx.SmsReference, tx.ClientRef,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	if importID != nil {
		res, err := sqlTx.ExecContext(ctx, `
			UPDATE sms_imports
			SET status = $1, ledger_transaction_id = $2, updated_at = NOW()
			WHERE id = $3 AND user_id = $4 AND status = $5 AND deleted_at IS NULL
		`, storage.StatusConfirmed, tx.ID, *importID, tx.UserID, storage.StatusPendingReview)
		if err != nil {
			return fmt.Errorf("failed to confirm import: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return storage.ErrImportNotPending
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const transactionColumns = `id, created_at, updated_at, user_id, account_id, amount, label, category_id, date, sms_reference, client_ref`

func scanTransaction(row scanner) (*storage.Transaction, error) {
	var t storage.Transaction
	err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt, &t.UserID, &t.AccountID, &t.Amount,
		&t.Label, &t.CategoryID, &t.Date, &t.SmsReference, &t.ClientRef)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) FindTransactionByClientRef(ctx context.Context, userID, ref string) (*storage.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 AND client_ref = $2 AND deleted_at IS NULL`
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, userID, ref))
	if err != nil {
		return nil, notFound(err, "transaction")
	}
	return tx, nil
}

func (s *Store) RecentTransactions(ctx context.Context, userID string, limit int) ([]storage.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY date DESC, id DESC
		LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []storage.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

func (s *Store) CategorySummary(ctx context.Context, userID string) ([]storage.CategoryTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, SUM(t.amount)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1 AND t.deleted_at IS NULL
		GROUP BY c.name
		ORDER BY c.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize categories: %w", err)
	}
	defer rows.Close()

	var totals []storage.CategoryTotal
	for rows.Next() {
		var total storage.CategoryTotal
		if err := rows.Scan(&total.Name, &total.Total); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		totals = append(totals, total)
	}
	return totals, rows.Err()
}

const importColumns = `id, created_at, updated_at, user_id, raw_text, kind, amount, fees, balance, recipient, transaction_id, status, ledger_transaction_id`

func scanImport(row scanner) (*storage.SmsImport, error) {
	var imp storage.SmsImport
	err := row.Scan(&imp.ID, &imp.CreatedAt, &imp.UpdatedAt, &imp.UserID, &imp.RawText, &imp.Kind,
		&imp.Amount, &imp.Fees, &imp.Balance, &imp.Recipient, &imp.TransactionID, &imp.Status, &imp.LedgerTransactionID)
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

func (s *Store) CreateImport(ctx context.Context, imp *storage.SmsImport) error {
	query := `
		INSERT INTO sms_imports (user_id, raw_text, kind, amount, fees, balance, recipient, transaction_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		imp.UserID, imp.RawText, imp.Kind, imp.Amount, imp.Fees, imp.Balance, imp.Recipient, imp.TransactionID, imp.Status,
	).Scan(&imp.ID, &imp.CreatedAt, &imp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save import: %w", err)
	}
	return nil
}

func (s *Store) GetImport(ctx context.Context, userID string, id uint) (*storage.SmsImport, error) {
	query := `SELECT ` + importColumns + ` FROM sms_imports WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`
	imp, err := scanImport(s.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return nil, notFound(err, "import")
	}
	return imp, nil
}

func (s *Store) ListImports(ctx context.Context, userID string, status storage.ImportStatus) ([]storage.SmsImport, error) {
	query := `SELECT ` + importColumns + ` FROM sms_imports WHERE user_id = $1 AND status = $2 AND deleted_at IS NULL ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, userID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	defer rows.Close()

	var imports []storage.SmsImport
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import: %w", err)
		}
		imports = append(imports, *imp)
	}
	return imports, rows.Err()
}

func (s *Store) RejectImport(ctx context.Context, userID string, id uint) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sms_imports SET status = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3 AND status = $4 AND deleted_at IS NULL
	`, storage.StatusRejected, id, userID, storage.StatusPendingReview)
	if err != nil {
		return fmt.Errorf("failed to reject import: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	if _, err := s.GetImport(ctx, userID, id); err != nil {
		return err
	}
	return storage.ErrImportNotPending
}

func (s *Store) TransactionIDExists(ctx context.Context, userID, tid string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM sms_imports WHERE user_id = $1 AND transaction_id = $2 AND deleted_at IS NULL)
		    OR EXISTS (SELECT 1 FROM transactions WHERE user_id = $1 AND sms_reference = $2 AND deleted_at IS NULL)
	`, userID, tid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction id: %w", err)
	}
	return exists, nil
}

func (s *Store) ImportedTransactionIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id FROM sms_imports WHERE user_id = $1 AND transaction_id IS NOT NULL AND deleted_at IS NULL
		UNION
		SELECT sms_reference FROM transactions WHERE user_id = $1 AND sms_reference IS NOT NULL AND deleted_at IS NULL
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan transaction id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, c *storage.Category) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO categories (user_id, name, type) VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`,
		c.UserID, c.Name, c.Type,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context, userID string) ([]storage.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, updated_at, user_id, name, type FROM categories WHERE user_id = $1 AND deleted_at IS NULL ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []storage.Category
	for rows.Next() {
		var c storage.Category
		if err := rows.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.UserID, &c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) CreateCharge(ctx context.Context, c *storage.FixedCharge) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO fixed_charges (user_id, label, amount, due_day, paid_through)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, c.UserID, c.Label, c.Amount, c.DueDay, c.PaidThrough).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save charge: %w", err)
	}
	return nil
}

func (s *Store) ListCharges(ctx context.Context, userID string) ([]storage.FixedCharge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, updated_at, user_id, label, amount, due_day, paid_through
		FROM fixed_charges WHERE user_id = $1 AND deleted_at IS NULL ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list charges: %w", err)
	}
	defer rows.Close()

	var charges []storage.FixedCharge
	for rows.Next() {
		var c storage.FixedCharge
		if err := rows.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.UserID, &c.Label, &c.Amount, &c.DueDay, &c.PaidThrough); err != nil {
			return nil, fmt.Errorf("failed to scan charge: %w", err)
		}
		charges = append(charges, c)
	}
	return charges, rows.Err()
}

func (s *Store) MarkChargePaid(ctx context.Context, userID string, id uint, period string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fixed_charges SET paid_through = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3 AND deleted_at IS NULL`,
		period, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark charge paid: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return fmt.Errorf("charge %d: %w", id, storage.ErrNotFound)
	}
	return nil
}
