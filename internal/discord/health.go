package discord

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

type healthStatus struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	DiscordConnected bool   `json:"discord_connected"`
	QueuedCommits    int    `json:"queued_commits"`
	Timestamp        string `json:"timestamp"`
}

func (b *Bot) healthHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		connected := b.session != nil && b.session.State != nil
		resp := healthStatus{
			Status:           "healthy",
			Uptime:           time.Since(b.startTime).Round(time.Second).String(),
			DiscordConnected: connected,
			QueuedCommits:    b.service.QueueDepth(),
			Timestamp:        b.now().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		if !connected {
			resp.Status = "unhealthy"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func (b *Bot) startHealthServer() {
	if err := b.health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		b.log.Error().Err(err).Str("addr", b.healthAddr).Msg("health server stopped")
	}
}
