package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/NgigiN/momo-wallet/internal/ledger"
	"github.com/NgigiN/momo-wallet/internal/momo"
	"github.com/NgigiN/momo-wallet/internal/storage"
)

type metadata struct {
	account  string
	category string
}

// parseMetadata separates the a:/c: lines typed under an SMS from the SMS
// itself.
func parseMetadata(lines []string) (body []string, meta metadata) {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case hasPrefixFold(trimmed, "Account:"):
			meta.account = strings.TrimSpace(trimmed[len("Account:"):])
		case hasPrefixFold(trimmed, "a:"):
			meta.account = strings.TrimSpace(trimmed[len("a:"):])
		case hasPrefixFold(trimmed, "Category:"):
			meta.category = strings.TrimSpace(trimmed[len("Category:"):])
		case hasPrefixFold(trimmed, "c:"):
			meta.category = strings.TrimSpace(trimmed[len("c:"):])
		default:
			body = append(body, line)
		}
	}
	return body, meta
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func (b *Bot) handleImport(ctx context.Context, userID, content string) string {
	var cleaned []string
	metas := make(map[string][]metadata)
	for _, segment := range momo.Segments(content) {
		body, meta := parseMetadata(strings.Split(segment, "\n"))
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if text == "" {
			continue
		}
		cleaned = append(cleaned, text)
		metas[text] = append(metas[text], meta)
	}
	if len(cleaned) == 0 {
		return "No message content provided"
	}

	if _, err := b.service.EnsureDefaultCategories(ctx, userID); err != nil {
		return replyError("load categories", err)
	}
	report, err := b.service.Ingest(ctx, userID, strings.Join(cleaned, "\n\n"))
	if err != nil {
		return replyError("import messages", err)
	}

	var out strings.Builder
	out.WriteString("📊 **Import**\n")
	for _, r := range report.Imported {
		meta := popMetadata(metas, r.Import.RawText)
		out.WriteString(b.describeImport(r))
		if meta.account != "" {
			out.WriteString("   ")
			out.WriteString(b.confirm(ctx, userID, r.Import.ID, meta.account, meta.category))
		}
		out.WriteString("\n")
	}
	for _, r := range report.Duplicates {
		popMetadata(metas, r.Import.RawText)
		fmt.Fprintf(&out, "↩️ Already imported: %s %s (TID %s)\n", r.Import.Kind, formatAmount(r.Import.Amount), deref(r.Import.TransactionID))
	}
	for _, raw := range report.Unrecognized {
		fmt.Fprintf(&out, "❓ Not recognized, enter it with !add: %q\n", preview(raw))
	}
	for _, f := range report.Failed {
		fmt.Fprintf(&out, "❌ Failed to store %q: %v\n", preview(f.Raw), f.Err)
	}
	return strings.TrimRight(out.String(), "\n")
}

func popMetadata(metas map[string][]metadata, raw string) metadata {
	list := metas[raw]
	if len(list) == 0 {
		return metadata{}
	}
	metas[raw] = list[1:]
	return list[0]
}

func (b *Bot) describeImport(r ledger.ImportResult) string {
	line := fmt.Sprintf("✅ #%d %s %s", r.Import.ID, r.Import.Kind, formatAmount(r.Fields.Signed()))
	if r.Fields.Recipient != nil {
		line += " · " + *r.Fields.Recipient
	}
	if r.Fields.Fees > 0 {
		line += fmt.Sprintf(" (fees %s)", formatAmount(r.Fields.Fees))
	}
	if r.Suggested != nil {
		line += " → " + r.Suggested.Name
	}
	return line
}

func (b *Bot) confirm(ctx context.Context, userID string, importID uint, accountName, categoryName string) string {
	acct, err := b.service.AccountByName(ctx, userID, accountName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Sprintf("❌ Unknown account %q, create it with !account.", accountName)
		}
		return replyError("load account", err)
	}
	return b.confirmOn(ctx, userID, importID, acct, categoryName)
}

func (b *Bot) confirmOn(ctx context.Context, userID string, importID uint, acct *storage.Account, categoryName string) string {
	var categoryID *uint
	if categoryName != "" {
		c, err := b.service.CategoryByName(ctx, userID, categoryName)
		if err != nil {
			return replyError("find category", err)
		}
		categoryID = &c.ID
	}

	tx, err := b.service.Confirm(ctx, userID, importID, acct.ID, categoryID, "")
	if err != nil {
		return replyError(fmt.Sprintf("confirm #%d", importID), err)
	}
	return fmt.Sprintf("Booked #%d on %s: %s", importID, acct.Name, formatAmount(tx.Amount))
}

func (b *Bot) handlePending(ctx context.Context, userID string) string {
	pending, err := b.service.Pending(ctx, userID)
	if err != nil {
		return replyError("list imports", err)
	}
	if len(pending) == 0 {
		return "No imports waiting for review."
	}

	var out strings.Builder
	out.WriteString("📥 **Pending imports**\n")
	for _, imp := range pending {
		fmt.Fprintf(&out, "#%d %s %s", imp.ID, imp.Kind, formatAmount(imp.Amount))
		if imp.Recipient != nil {
			out.WriteString(" · " + *imp.Recipient)
		}
		if imp.TransactionID != nil {
			out.WriteString(" · TID " + *imp.TransactionID)
		}
		out.WriteString("\n")
	}
	return strings.TrimRight(out.String(), "\n")
}

func (b *Bot) handleConfirm(ctx context.Context, userID string, args []string) string {
	if len(args) < 2 {
		return "Usage: !confirm <id> <account> [category]"
	}
	id, err := parseID(args[0])
	if err != nil {
		return err.Error()
	}

	acct, rest, err := b.resolveAccount(ctx, userID, args[1:])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Sprintf("❌ Unknown account %q, create it with !account.", strings.Join(args[1:], " "))
		}
		return replyError("load account", err)
	}
	return b.confirmOn(ctx, userID, id, acct, strings.Join(rest, " "))
}

// resolveAccount matches the longest leading run of words naming an
// account, so names may contain spaces. The remaining words are returned.
func (b *Bot) resolveAccount(ctx context.Context, userID string, words []string) (*storage.Account, []string, error) {
	for n := len(words); n > 0; n-- {
		acct, err := b.service.AccountByName(ctx, userID, strings.Join(words[:n], " "))
		if err == nil {
			return acct, words[n:], nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, nil, err
		}
	}
	return nil, nil, storage.ErrNotFound
}

func (b *Bot) handleReject(ctx context.Context, userID string, args []string) string {
	if len(args) != 1 {
		return "Usage: !reject <id>"
	}
	id, err := parseID(args[0])
	if err != nil {
		return err.Error()
	}
	if err := b.service.Reject(ctx, userID, id); err != nil {
		return replyError(fmt.Sprintf("reject #%d", id), err)
	}
	return fmt.Sprintf("Rejected #%d.", id)
}

func (b *Bot) handleSync(ctx context.Context) string {
	res, err := b.service.FlushQueue(ctx)
	if err != nil {
		return fmt.Sprintf("⏳ Replayed %d, %d still queued: %v", res.Applied, res.Left, err)
	}
	return fmt.Sprintf("🔄 Replayed %d queued transactions, %d rejected.", res.Applied, res.Rejected)
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("Invalid id: %s", s)
	}
	return uint(id), nil
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
