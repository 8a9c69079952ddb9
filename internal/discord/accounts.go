package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/NgigiN/momo-wallet/internal/category"
	"github.com/NgigiN/momo-wallet/internal/storage"
)

func (b *Bot) handleBalance(ctx context.Context, userID string) string {
	accounts, err := b.service.Accounts(ctx, userID)
	if err != nil {
		return replyError("list accounts", err)
	}
	if len(accounts) == 0 {
		return "No accounts yet. Create one with !account <name> <initial balance>."
	}

	var total int64
	var out strings.Builder
	out.WriteString("💰 **Balances**\n")
	for _, a := range accounts {
		fmt.Fprintf(&out, "**%s**: %s", a.Name, formatAmount(a.Balance))
		if a.AllowNegativeBalance {
			out.WriteString(" (overdraft allowed)")
		}
		out.WriteString("\n")
		total += a.Balance
	}
	fmt.Fprintf(&out, "\n**Total**: %s", formatAmount(total))
	return out.String()
}

// handleAccount parses "<name...> <initial> [negative]".
func (b *Bot) handleAccount(ctx context.Context, userID string, args []string) string {
	const usage = "Usage: !account <name> <initial balance> [negative]"
	allowNegative := false
	if len(args) > 0 && strings.EqualFold(args[len(args)-1], "negative") {
		allowNegative = true
		args = args[:len(args)-1]
	}
	if len(args) < 2 {
		return usage
	}
	initial, err := parseAmount(args[len(args)-1])
	if err != nil {
		return usage
	}
	name := strings.Join(args[:len(args)-1], " ")

	acct, err := b.service.CreateAccount(ctx, userID, name, initial, allowNegative)
	if err != nil {
		return replyError("create account", err)
	}
	return fmt.Sprintf("Created account **%s** with %s.", acct.Name, formatAmount(acct.Balance))
}

func (b *Bot) handleSummary(ctx context.Context, userID string) string {
	totals, err := b.service.Summary(ctx, userID)
	if err != nil {
		return replyError("get summary", err)
	}
	if len(totals) == 0 {
		return "No transactions found."
	}

	var total int64
	var out strings.Builder
	out.WriteString("📊 **Transaction Summary**\n\n")
	for _, t := range totals {
		fmt.Fprintf(&out, "**%s**: %s\n", t.Name, formatAmount(t.Total))
		total += t.Total
	}
	fmt.Fprintf(&out, "\n**Total**: %s", formatAmount(total))
	return out.String()
}

func (b *Bot) handleDue(ctx context.Context, userID string) string {
	next, overdue, err := b.service.Upcoming(ctx, userID, b.now())
	if err != nil {
		return replyError("list charges", err)
	}
	if next == nil {
		return "No fixed charges. Add one with !charge <day> <amount> <label>."
	}

	var out strings.Builder
	fmt.Fprintf(&out, "📅 Next: **%s** %s on %s (#%d)",
		next.Charge.Label, formatAmount(next.Charge.Amount), next.Due.Format("Jan 2, 2006"), next.Charge.ID)
	for _, o := range overdue {
		fmt.Fprintf(&out, "\n⚠️ Overdue: **%s** %s since %s (#%d)",
			o.Charge.Label, formatAmount(o.Charge.Amount), o.Due.Format("Jan 2"), o.Charge.ID)
	}
	return out.String()
}

func (b *Bot) handleCharge(ctx context.Context, userID string, args []string) string {
	const usage = "Usage: !charge <day> <amount> <label>"
	if len(args) < 3 {
		return usage
	}
	day, err := strconv.Atoi(args[0])
	if err != nil {
		return usage
	}
	amount, err := parseAmount(args[1])
	if err != nil || amount <= 0 {
		return usage
	}

	c, err := b.service.AddCharge(ctx, userID, strings.Join(args[2:], " "), amount, day)
	if err != nil {
		return replyError("add charge", err)
	}
	return fmt.Sprintf("Added charge #%d **%s** %s due on day %d.", c.ID, c.Label, formatAmount(c.Amount), c.DueDay)
}

func (b *Bot) handlePaid(ctx context.Context, userID string, args []string) string {
	if len(args) != 1 {
		return "Usage: !paid <charge id>"
	}
	id, err := parseID(args[0])
	if err != nil {
		return err.Error()
	}
	period, err := b.service.PayCharge(ctx, userID, id, b.now())
	if err != nil {
		return replyError(fmt.Sprintf("mark charge #%d paid", id), err)
	}
	return fmt.Sprintf("Charge #%d paid for %s.", id, period)
}

// handleAdd books a transaction typed by hand, for notifications the
// parser does not know. Amounts are expenses unless prefixed with "+".
func (b *Bot) handleAdd(ctx context.Context, userID string, args []string) string {
	const usage = "Usage: !add <account> <amount> <label>, e.g. !add Airtel Money 2500 Taxi or +50000 for income"
	if len(args) < 3 {
		return usage
	}
	acct, rest, err := b.resolveAccount(ctx, userID, args)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "❌ Unknown account, create it with !account."
		}
		return replyError("load account", err)
	}
	if len(rest) < 2 {
		return usage
	}

	dir := category.Expense
	raw := rest[0]
	if strings.HasPrefix(raw, "+") {
		dir = category.Income
	}
	amount, err := parseAmount(strings.TrimLeft(raw, "+-"))
	if err != nil || amount <= 0 {
		return usage
	}
	if dir == category.Expense {
		amount = -amount
	}
	label := strings.Join(rest[1:], " ")

	if _, err := b.service.EnsureDefaultCategories(ctx, userID); err != nil {
		return replyError("prepare categories", err)
	}
	var categoryID *uint
	suggested, err := b.service.SuggestCategory(ctx, userID, label, dir)
	if err != nil {
		return replyError("suggest category", err)
	}
	if suggested != nil {
		categoryID = &suggested.ID
	}

	tx, err := b.service.RecordTransaction(ctx, userID, acct.ID, amount, label, categoryID, b.now(), "")
	if err != nil {
		return replyError("add transaction", err)
	}
	reply := fmt.Sprintf("Booked **%s** on %s: %s", tx.Label, acct.Name, formatAmount(tx.Amount))
	if suggested != nil {
		reply += " → " + suggested.Name
	}
	return reply
}

// parseAmount accepts whole FCFA with optional thousands separators.
func parseAmount(s string) (int64, error) {
	s = strings.NewReplacer(",", "", ".", "", "_", "").Replace(s)
	s = strings.TrimSuffix(strings.TrimSuffix(strings.ToUpper(s), "FCFA"), "F")
	return strconv.ParseInt(s, 10, 64)
}
