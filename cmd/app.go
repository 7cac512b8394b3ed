package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"comitebot/pkg/action"
	"comitebot/pkg/bus"
	"comitebot/pkg/channel/telegram"
	"comitebot/pkg/config"
	"comitebot/pkg/conversation"
	"comitebot/pkg/forward"
	"comitebot/pkg/logger"
	"comitebot/pkg/routing"
	"comitebot/pkg/session"
)

// app is the wired bot: one Telegram adapter acting as both transport and
// messenger, a session store, and the conversation controller.
type app struct {
	cfg        *config.Config
	adapter    *telegram.Adapter
	store      session.Store
	events     *bus.Bus
	controller *conversation.Controller
}

func loadRuntime(component string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	return cfg, slog.Default().With("component", component), nil
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	adapter, err := telegram.NewAdapter(cfg.Telegram, log)
	if err != nil {
		return nil, fmt.Errorf("configure telegram channel: %w", err)
	}

	store, err := session.New(ctx, cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	events := bus.New()
	forwarder := forward.New(adapter, cfg.Forward, log)
	controller, err := conversation.New(store, routing.NewTable(cfg.Routes()), forwarder, adapter, events, controllerSettings(cfg), log)
	if err != nil {
		events.Close()
		return nil, errors.Join(fmt.Errorf("initialize conversation controller: %w", err), store.Close())
	}

	return &app{
		cfg:        cfg,
		adapter:    adapter,
		store:      store,
		events:     events,
		controller: controller,
	}, nil
}

func (a *app) Close() error {
	a.events.Close()
	return a.store.Close()
}

func controllerSettings(cfg *config.Config) conversation.Settings {
	topics := make(map[action.Type]int, len(action.All()))
	for _, typ := range action.All() {
		topics[typ] = cfg.EntryTopic(typ)
	}

	return conversation.Settings{
		BotUsername:        cfg.Telegram.BotUsername,
		SourceGroupID:      cfg.Groups.SourceGroupID,
		EntryTopics:        topics,
		DocumentationTopic: cfg.Groups.DocumentationTopic,
		Admins:             cfg.Telegram.AdminIDs,
	}
}

// sweeperFor returns the store's expiry sweeper. DynamoDB expires items with
// its native TTL attribute and has none.
func sweeperFor(store session.Store) (session.Sweeper, bool) {
	sweeper, ok := store.(session.Sweeper)
	return sweeper, ok
}
