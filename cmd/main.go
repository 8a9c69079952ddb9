package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/NgigiN/momo-wallet/internal/discord"
	"github.com/NgigiN/momo-wallet/internal/ledger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var userID string

	root := &cobra.Command{
		Use:          "wallet",
		Short:        "Track Mobile Money SMS notifications in a personal ledger",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&userID, "user", "", "user the data belongs to (default $DEFAULT_USER_ID)")

	root.AddCommand(
		newBotCmd(),
		newImportCmd(&userID),
		newReplayCmd(),
		newDueCmd(&userID),
	)
	return root
}

func newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Discord bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
			defer stop()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			bot, err := discord.NewBot(a.cfg, a.service, a.log)
			if err != nil {
				return fmt.Errorf("failed to initialize the discord bot: %w", err)
			}
			if err := bot.Start(); err != nil {
				return fmt.Errorf("failed to start bot: %w", err)
			}
			a.log.Info().Str("health_addr", a.cfg.HealthAddr).Msg("bot is running")

			go replayLoop(ctx, a.service, a.cfg.Offline.ReplayInterval)

			<-ctx.Done()
			bot.Stop()
			a.log.Info().Msg("bot stopped")
			return nil
		},
	}
}

// replayLoop flushes the offline queue until ctx is done.
func replayLoop(ctx context.Context, service *ledger.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			service.FlushQueue(ctx)
		}
	}
}

func newImportCmd(userID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Import a file of SMS notifications separated by blank lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			user := a.userID(*userID)
			if _, err := a.service.EnsureDefaultCategories(ctx, user); err != nil {
				return err
			}
			report, err := a.service.Ingest(ctx, user, raw)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func readInput(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func printReport(w io.Writer, report *ledger.IngestReport) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	faint := color.New(color.Faint)

	for _, r := range report.Imported {
		green.Fprintf(w, "imported   #%-5d %-13s %10d", r.Import.ID, r.Import.Kind, r.Fields.Signed())
		if r.Fields.Recipient != nil {
			fmt.Fprintf(w, "  %s", *r.Fields.Recipient)
		}
		if r.Suggested != nil {
			faint.Fprintf(w, "  [%s]", r.Suggested.Name)
		}
		fmt.Fprintln(w)
	}
	for _, r := range report.Duplicates {
		tid := ""
		if r.Import.TransactionID != nil {
			tid = *r.Import.TransactionID
		}
		yellow.Fprintf(w, "duplicate  #%-5d %-13s %10d  TID %s\n", r.Import.ID, r.Import.Kind, r.Import.Amount, tid)
	}
	for _, raw := range report.Unrecognized {
		red.Fprintf(w, "unknown    %s\n", oneLine(raw))
	}
	for _, f := range report.Failed {
		red.Fprintf(w, "failed     %s: %v\n", oneLine(f.Raw), f.Err)
	}

	fmt.Fprintf(w, "\n%d imported, %d duplicates, %d unrecognized, %d failed\n",
		len(report.Imported), len(report.Duplicates), len(report.Unrecognized), len(report.Failed))
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 70 {
		s = string(r[:67]) + "..."
	}
	return s
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay transactions queued while the database was unreachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.service.FlushQueue(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%d applied, %d rejected, %d left\n", res.Applied, res.Rejected, res.Left)
			return err
		},
	}
}

func newDueCmd(userID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "due",
		Short: "Show the next fixed charge and the overdue ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			next, overdue, err := a.service.Upcoming(cmd.Context(), a.userID(*userID), time.Now())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if next == nil {
				fmt.Fprintln(w, "no fixed charges")
				return nil
			}
			fmt.Fprintf(w, "next: %s %d due %s\n", next.Charge.Label, next.Charge.Amount, next.Due.Format("2006-01-02"))
			for _, o := range overdue {
				color.New(color.FgRed).Fprintf(w, "overdue: %s %d since %s\n", o.Charge.Label, o.Charge.Amount, o.Due.Format("2006-01-02"))
			}
			return nil
		},
	}
}
