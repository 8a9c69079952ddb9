package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// SQLite allows one writer; a single connection serializes balance updates.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Account{}, &Transaction{}, &SmsImport{}, &Category{}, &FixedCharge{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) CreateAccount(ctx context.Context, acct *Account) error {
	if err := d.db.WithContext(ctx).Create(acct).Error; err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func (d *Database) GetAccount(ctx context.Context, userID string, id uint) (*Account, error) {
	var acct Account
	err := d.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&acct).Error
	if err != nil {
		return nil, notFound(err, "account")
	}
	return &acct, nil
}

func (d *Database) FindAccountByName(ctx context.Context, userID, name string) (*Account, error) {
	var acct Account
	err := d.db.WithContext(ctx).Where("user_id = ? AND LOWER(name) = LOWER(?)", userID, name).First(&acct).Error
	if err != nil {
		return nil, notFound(err, "account")
	}
	return &acct, nil
}

func (d *Database) ListAccounts(ctx context.Context, userID string) ([]Account, error) {
	var accounts []Account
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Order("name").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// CommitTransaction applies tx to its account and stores it in one database
// transaction. The balance is changed by a single conditional update, so a
// debit that would take a protected account below zero affects no row and
// fails with ErrBalanceConflict. When importID is set the import moves from
// pending review to confirmed in the same transaction.
func (d *Database) CommitTransaction(ctx context.Context, tx *Transaction, importID *uint) error {
	return d.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		res := db.Model(&Account{}).
			Where("id = ? AND user_id = ? AND is_active = ?", tx.AccountID, tx.UserID, true).
			Where("(? >= 0 OR allow_negative_balance = ? OR balance + ? >= 0)", tx.Amount, true, tx.Amount).
			Update("balance", gorm.Expr("balance + ?", tx.Amount))
		if res.Error != nil {
			return fmt.Errorf("failed to update balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			err := db.Model(&Account{}).
				Where("id = ? AND user_id = ? AND is_active = ?", tx.AccountID, tx.UserID, true).
				Count(&count).Error
			if err != nil {
				return fmt.Errorf("failed to look up account: %w", err)
			}
			if count == 0 {
				return fmt.Errorf("account %d: %w", tx.AccountID, ErrNotFound)
			}
			return ErrBalanceConflict
		}

		if err := db.Create(tx).Error; err != nil {
			return fmt.Errorf("failed to save transaction: %w", err)
		}

		if importID != nil {
			res := db.Model(&SmsImport{}).
				Where("id = ? AND user_id = ? AND status = ?", *importID, tx.UserID, StatusPendingReview).
				Updates(map[string]any{"status": StatusConfirmed, "ledger_transaction_id": tx.ID})
			if res.Error != nil {
				return fmt.Errorf("failed to confirm import: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrImportNotPending
			}
		}
		return nil
	})
}

// FindTransactionByClientRef looks up the user's transaction booked under
// ref. References are only unique per user.
func (d *Database) FindTransactionByClientRef(ctx context.Context, userID, ref string) (*Transaction, error) {
	var tx Transaction
	if err := d.db.WithContext(ctx).Where("user_id = ? AND client_ref = ?", userID, ref).First(&tx).Error; err != nil {
		return nil, notFound(err, "transaction")
	}
	return &tx, nil
}

// RecentTransactions returns the user's transactions, newest first.
func (d *Database) RecentTransactions(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	var txs []Transaction
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC, id DESC").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (d *Database) CategorySummary(ctx context.Context, userID string) ([]CategoryTotal, error) {
	var totals []CategoryTotal
	err := d.db.WithContext(ctx).
		Table("transactions").
		Select("categories.name AS name, SUM(transactions.amount) AS total").
		Joins("JOIN categories ON categories.id = transactions.category_id").
		Where("transactions.user_id = ? AND transactions.deleted_at IS NULL", userID).
		Group("categories.name").
		Order("categories.name").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize categories: %w", err)
	}
	return totals, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
