// Pedantic is a chat bot that reads every message on its channels and
// complains about typos, offering to add unknown words to its dictionary.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pedantic/bot"
	"pedantic/config"
	"pedantic/corrector"
	"pedantic/gateway"
	"pedantic/rest"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(1)
	}

	model := &corrector.TSVModel{Path: cfg.ModelPath}
	stats, err := model.Load()
	if err != nil {
		slog.Error("loading dictionary model failed", "path", cfg.ModelPath, "err", err)
		os.Exit(1)
	}
	norvig := corrector.NewNorvig(stats, model)
	slog.Info("dictionary model loaded", "path", cfg.ModelPath, "words", stats.Len())

	go func() {
		if err := corrector.WatchModel(model, norvig); err != nil {
			slog.Warn("model watcher stopped", "err", err)
		}
	}()

	restClient := rest.NewClient(cfg.Token)

	gatewayURL, err := restClient.GatewayURL()
	if err != nil {
		if errors.Is(err, rest.ErrAuthenticationFailed) {
			slog.Error("the API rejected the bot token", "err", err)
			os.Exit(1)
		}
		slog.Error("gateway lookup failed", "err", err)
		os.Exit(1)
	}

	dispatcher := gateway.NewDispatcher()
	bot.New(cfg.Prefix, norvig, restClient).Bind(dispatcher)

	session := gateway.NewSession(cfg.Token, dispatcher,
		gateway.WithGatewayURL(gatewayURL),
		gateway.WithIntents(gateway.IntentGuildMessages|gateway.IntentDirectMessages|gateway.IntentMessageContent),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, gateway.ErrAuthenticationFailed) {
			slog.Error("gateway rejected the bot token; not a network problem", "err", err)
		} else {
			slog.Error("gateway session ended", "err", err)
		}
		os.Exit(1)
	}
	slog.Info("shut down")
}
