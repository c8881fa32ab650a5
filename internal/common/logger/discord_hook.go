package logger

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wsf-tracker/internal/common/discord"
)

type alertFieldsKey struct{}

// DiscordHook forwards log events at or above minLevel to a Discord webhook.
// Delivery is asynchronous and best-effort.
type DiscordHook struct {
	client   *discord.Client
	minLevel zerolog.Level
}

func NewDiscordHook(webhookURL string, minLevel zerolog.Level) *DiscordHook {
	return &DiscordHook{
		client:   discord.NewClient(webhookURL),
		minLevel: minLevel,
	}
}

// Run implements zerolog.Hook
func (h *DiscordHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level < h.minLevel || level == zerolog.NoLevel || msg == "" {
		return
	}

	fields, _ := e.GetCtx().Value(alertFieldsKey{}).(map[string]interface{})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.client.SendLogMessage(ctx, strings.ToUpper(level.String()), msg, fields)
	}()
}
