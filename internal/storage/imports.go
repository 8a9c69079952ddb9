package storage

import (
	"context"
	"fmt"
)

func (d *Database) CreateImport(ctx context.Context, imp *SmsImport) error {
	if err := d.db.WithContext(ctx).Create(imp).Error; err != nil {
		return fmt.Errorf("failed to save import: %w", err)
	}
	return nil
}

func (d *Database) GetImport(ctx context.Context, userID string, id uint) (*SmsImport, error) {
	var imp SmsImport
	if err := d.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&imp).Error; err != nil {
		return nil, notFound(err, "import")
	}
	return &imp, nil
}

func (d *Database) ListImports(ctx context.Context, userID string, status ImportStatus) ([]SmsImport, error) {
	var imports []SmsImport
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, status).
		Order("id").
		Find(&imports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	return imports, nil
}

// RejectImport discards an import that is still pending review.
func (d *Database) RejectImport(ctx context.Context, userID string, id uint) error {
	res := d.db.WithContext(ctx).Model(&SmsImport{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, StatusPendingReview).
		Update("status", StatusRejected)
	if res.Error != nil {
		return fmt.Errorf("failed to reject import: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := d.GetImport(ctx, userID, id); err != nil {
			return err
		}
		return ErrImportNotPending
	}
	return nil
}

// TransactionIDExists reports whether a carrier transaction id was already
// imported or booked for the user.
func (d *Database) TransactionIDExists(ctx context.Context, userID, tid string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&SmsImport{}).
		Where("user_id = ? AND transaction_id = ?", userID, tid).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check import ids: %w", err)
	}
	if count > 0 {
		return true, nil
	}
	err = d.db.WithContext(ctx).Model(&Transaction{}).
		Where("user_id = ? AND sms_reference = ?", userID, tid).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check transaction references: %w", err)
	}
	return count > 0, nil
}

// ImportedTransactionIDs returns every carrier transaction id known for the
// user, from imports and from booked transactions.
func (d *Database) ImportedTransactionIDs(ctx context.Context, userID string) ([]string, error) {
	var fromImports, fromTransactions []string
	err := d.db.WithContext(ctx).Model(&SmsImport{}).
		Where("user_id = ? AND transaction_id IS NOT NULL", userID).
		Pluck("transaction_id", &fromImports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list import ids: %w", err)
	}
	err = d.db.WithContext(ctx).Model(&Transaction{}).
		Where("user_id = ? AND sms_reference IS NOT NULL", userID).
		Pluck("sms_reference", &fromTransactions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction references: %w", err)
	}
	return append(fromImports, fromTransactions...), nil
}
