package storage

import (
	"context"
	"fmt"
)

func (d *Database) CreateCategory(ctx context.Context, c *Category) error {
	if err := d.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

func (d *Database) ListCategories(ctx context.Context, userID string) ([]Category, error) {
	var categories []Category
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (d *Database) CreateCharge(ctx context.Context, c *FixedCharge) error {
	if err := d.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to save charge: %w", err)
	}
	return nil
}

func (d *Database) ListCharges(ctx context.Context, userID string) ([]FixedCharge, error) {
	var charges []FixedCharge
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&charges).Error; err != nil {
		return nil, fmt.Errorf("failed to list charges: %w", err)
	}
	return charges, nil
}

// MarkChargePaid records period ("2006-01") as the last paid period.
func (d *Database) MarkChargePaid(ctx context.Context, userID string, id uint, period string) error {
	res := d.db.WithContext(ctx).Model(&FixedCharge{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("paid_through", period)
	if res.Error != nil {
		return fmt.Errorf("failed to mark charge paid: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("charge %d: %w", id, ErrNotFound)
	}
	return nil
}
