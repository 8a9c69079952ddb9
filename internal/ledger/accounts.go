package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NgigiN/momo-wallet/internal/category"
	"github.com/NgigiN/momo-wallet/internal/charges"
	"github.com/NgigiN/momo-wallet/internal/storage"
)

func (s *Service) CreateAccount(ctx context.Context, userID, name string, initial int64, allowNegative bool) (*storage.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("account name is required")
	}
	acct := &storage.Account{
		UserID:               userID,
		Name:                 name,
		InitialBalance:       initial,
		Balance:              initial,
		AllowNegativeBalance: allowNegative,
		IsActive:             true,
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *Service) Accounts(ctx context.Context, userID string) ([]storage.Account, error) {
	return s.store.ListAccounts(ctx, userID)
}

func (s *Service) AccountByName(ctx context.Context, userID, name string) (*storage.Account, error) {
	return s.store.FindAccountByName(ctx, userID, strings.TrimSpace(name))
}

func (s *Service) Summary(ctx context.Context, userID string) ([]storage.CategoryTotal, error) {
	return s.store.CategorySummary(ctx, userID)
}

// EnsureDefaultCategories seeds the dictionary's categories plus the
// fallbacks for a user that has none, and returns the user's categories.
func (s *Service) EnsureDefaultCategories(ctx context.Context, userID string) ([]storage.Category, error) {
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cats) > 0 {
		return cats, nil
	}

	names := append(category.DefaultDictionary.Names(), category.FallbackExpense, category.FallbackIncome)
	for _, name := range names {
		typ := storage.CategoryExpense
		if category.DefaultTypes[name] == category.Income {
			typ = storage.CategoryIncome
		}
		c := storage.Category{UserID: userID, Name: name, Type: typ}
		if err := s.store.CreateCategory(ctx, &c); err != nil {
			return nil, fmt.Errorf("failed to seed category %s: %w", name, err)
		}
		cats = append(cats, c)
	}
	s.log.Info().Str("user_id", userID).Int("count", len(cats)).Msg("seeded default categories")
	return cats, nil
}

// CategoryByName finds one of the user's categories ignoring case and
// accents.
func (s *Service) CategoryByName(ctx context.Context, userID, name string) (*storage.Category, error) {
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	c, ok := category.ByName(candidates(cats), name)
	if !ok {
		return nil, fmt.Errorf("category %q: %w", name, storage.ErrNotFound)
	}
	return find(cats, c.ID), nil
}

// SuggestCategory returns the engine's pick for label, or nil.
func (s *Service) SuggestCategory(ctx context.Context, userID, label string, dir category.Direction) (*storage.Category, error) {
	cats, history, err := s.suggestionInputs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.suggest(label, dir, cats, history), nil
}

func (s *Service) suggestionInputs(ctx context.Context, userID string) ([]storage.Category, []category.Past, error) {
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	txs, err := s.store.RecentTransactions(ctx, userID, historyDepth)
	if err != nil {
		return nil, nil, err
	}
	history := make([]category.Past, 0, len(txs))
	for _, tx := range txs {
		if tx.CategoryID != nil {
			history = append(history, category.Past{Label: tx.Label, CategoryID: *tx.CategoryID})
		}
	}
	return cats, history, nil
}

func (s *Service) suggest(label string, dir category.Direction, cats []storage.Category, history []category.Past) *storage.Category {
	id, ok := s.engine.Suggest(label, candidates(cats), history, dir)
	if !ok {
		return nil
	}
	return find(cats, id)
}

func candidates(cats []storage.Category) []category.Category {
	out := make([]category.Category, len(cats))
	for i, c := range cats {
		out[i] = category.Category{ID: c.ID, Name: c.Name, Type: category.Direction(c.Type)}
	}
	return out
}

func find(cats []storage.Category, id uint) *storage.Category {
	for i := range cats {
		if cats[i].ID == id {
			return &cats[i]
		}
	}
	return nil
}

func (s *Service) AddCharge(ctx context.Context, userID, label string, amount int64, dueDay int) (*storage.FixedCharge, error) {
	if dueDay < 1 || dueDay > 31 {
		return nil, fmt.Errorf("due day %d out of range 1-31", dueDay)
	}
	c := &storage.FixedCharge{UserID: userID, Label: strings.TrimSpace(label), Amount: amount, DueDay: dueDay}
	if err := s.store.CreateCharge(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Upcoming returns the next due charge and the ones already overdue.
func (s *Service) Upcoming(ctx context.Context, userID string, today time.Time) (*charges.Occurrence, []charges.Occurrence, error) {
	list, err := s.store.ListCharges(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	overdue := charges.Overdue(list, today)
	next, ok := charges.NextDue(list, today)
	if !ok {
		return nil, overdue, nil
	}
	return &next, overdue, nil
}

// PayCharge marks the period a payment made today settles.
func (s *Service) PayCharge(ctx context.Context, userID string, id uint, today time.Time) (string, error) {
	list, err := s.store.ListCharges(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, c := range list {
		if c.ID != id {
			continue
		}
		period := charges.PayablePeriod(c, today)
		if err := s.store.MarkChargePaid(ctx, userID, id, period); err != nil {
			return "", err
		}
		return period, nil
	}
	return "", fmt.Errorf("charge %d: %w", id, storage.ErrNotFound)
}
