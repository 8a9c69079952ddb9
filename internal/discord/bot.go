package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/NgigiN/momo-wallet/internal/config"
	"github.com/NgigiN/momo-wallet/internal/ledger"
	"github.com/NgigiN/momo-wallet/internal/logger"
)

type Bot struct {
	session    *discordgo.Session
	service    *ledger.Service
	channelID  string
	healthAddr string
	health     *http.Server
	startTime  time.Time
	log        zerolog.Logger
	now        func() time.Time
}

func NewBot(cfg *config.Config, service *ledger.Service, log zerolog.Logger) (*Bot, error) {
	if err := cfg.ValidateDiscord(); err != nil {
		return nil, err
	}
	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	bot := newBot(service, log)
	bot.session = session
	bot.channelID = cfg.DiscordChannelId
	bot.healthAddr = cfg.HealthAddr

	session.AddHandler(bot.handleMessage)
	session.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentMessageContent

	return bot, nil
}

func newBot(service *ledger.Service, log zerolog.Logger) *Bot {
	return &Bot{
		service:   service,
		startTime: time.Now(),
		log:       log,
		now:       time.Now,
	}
}

func (b *Bot) Start() error {
	if b.healthAddr != "" {
		b.health = &http.Server{
			Addr:              b.healthAddr,
			Handler:           b.healthHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go b.startHealthServer()
	}

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	return nil
}

func (b *Bot) Stop() {
	if b.health != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		b.health.Shutdown(ctx)
	}
	b.session.Close()
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return //bot's messages
	}

	if m.ChannelID != b.channelID {
		return //specific to the channel
	}

	log := logger.WithFields(b.log, map[string]any{"user_id": m.Author.ID, "message_id": m.ID})
	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background(), log), 30*time.Second)
	defer cancel()

	reply := b.handle(ctx, m.Author.ID, m.Content)
	if reply == "" {
		return
	}
	for _, chunk := range chunks(reply, 1900) {
		if _, err := s.ChannelMessageSend(m.ChannelID, chunk); err != nil {
			log.Error().Err(err).Msg("failed to send reply")
		}
	}
}

// handle answers one chat message from userID.
func (b *Bot) handle(ctx context.Context, userID, content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	if !strings.HasPrefix(content, "!") {
		return b.handleImport(ctx, userID, content)
	}

	args := strings.Fields(content)
	log := logger.FromContext(ctx)
	log.Debug().Str("command", args[0]).Msg("command received")

	switch strings.ToLower(args[0]) {
	case "!pending":
		return b.handlePending(ctx, userID)
	case "!confirm":
		return b.handleConfirm(ctx, userID, args[1:])
	case "!reject":
		return b.handleReject(ctx, userID, args[1:])
	case "!add":
		return b.handleAdd(ctx, userID, args[1:])
	case "!balance":
		return b.handleBalance(ctx, userID)
	case "!account":
		return b.handleAccount(ctx, userID, args[1:])
	case "!summary":
		return b.handleSummary(ctx, userID)
	case "!due":
		return b.handleDue(ctx, userID)
	case "!charge":
		return b.handleCharge(ctx, userID, args[1:])
	case "!paid":
		return b.handlePaid(ctx, userID, args[1:])
	case "!sync":
		return b.handleSync(ctx)
	case "!help":
		return helpText
	default:
		return fmt.Sprintf("Unknown command %s.\n%s", args[0], helpText)
	}
}

const helpText = `**Commands**
Paste one or more SMS separated by blank lines. Under each SMS you may add
a: <account> to book it right away and c: <category> to pick the category.
!pending - imports waiting for review
!confirm <id> <account> [category]
!reject <id>
!add <account> <amount> <label> - book by hand, +amount for income
!balance - account balances
!account <name> <initial balance> [negative]
!summary - totals per category
!due - next fixed charge
!charge <day> <amount> <label>
!paid <charge id>
!sync - replay transactions queued while the database was down`

// replyError turns service errors into chat text.
func replyError(action string, err error) string {
	var ibe *ledger.InsufficientBalanceError
	switch {
	case errors.As(err, &ibe):
		return fmt.Sprintf("❌ Insufficient balance: %s available, %s requested. Pick another account with !confirm.",
			formatAmount(ibe.Balance), formatAmount(-ibe.Amount))
	case errors.Is(err, ledger.ErrQueued):
		return "⏳ Database unreachable, the transaction is queued and will be replayed."
	default:
		return fmt.Sprintf("❌ Failed to %s: %v", action, err)
	}
}

// formatAmount renders an amount with space-separated thousands.
func formatAmount(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	digits := fmt.Sprintf("%d", v)
	var out strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out.WriteByte(' ')
		}
		out.WriteRune(r)
	}
	return sign + out.String() + " FCFA"
}

// chunks splits s into pieces of at most size bytes, preferring line
// breaks and never cutting inside a rune.
func chunks(s string, size int) []string {
	var out []string
	for len(s) > size {
		cut := strings.LastIndex(s[:size], "\n")
		if cut <= 0 {
			cut = size
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(s)
			}
		}
		out = append(out, s[:cut])
		s = strings.TrimLeft(s[cut:], "\n")
	}
	return append(out, s)
}
