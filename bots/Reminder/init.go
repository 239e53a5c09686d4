package reminder

import (
	"context"

	"reminderbot/bot"
	"reminderbot/bots/Reminder/conversation"
	"reminderbot/bots/Reminder/db"
	"reminderbot/bots/Reminder/stage"
	"reminderbot/bots/Reminder/tgbot"

	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const Name = "ReminderBot"

type Reminder struct {
	tbot   *tgbot.TBot
	store  db.Store
	stages *stage.Memory
	logger *zap.SugaredLogger
}

func (r *Reminder) Init(ctx context.Context, cfg bot.Config, l *zap.SugaredLogger) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		l.Errorw("failed to initialize reminder storage", "err", err)
		return err
	}

	tb, err := tgbot.NewTBot(cfg.TgToken, cfg.Debug, l)
	if err != nil {
		store.Close()
		return err
	}
	tb.RetryAttempts = cfg.RetryAttempts
	tb.RetryDelay = cfg.RetryDelay
	tb.Workers = cfg.Workers
	tb.HandleTimeout = cfg.HandleTimeout

	clk := clock.New()
	stages := stage.NewMemory(clk, cfg.StageTTL)
	tb.Handler = conversation.NewDispatcher(store, stages, tb, clk, l)

	r.tbot = tb
	r.store = store
	r.stages = stages
	r.logger = l

	l.Infow("reminder bot initialized", "storage", cfg.Storage, "stage_ttl", cfg.StageTTL)
	return nil
}

func openStore(ctx context.Context, cfg bot.Config) (db.Store, error) {
	switch cfg.Storage {
	case bot.StoragePostgres:
		if cfg.DBConnStr == "" {
			return nil, errors.Errorf("%s is required for %s storage", bot.CfgDbConnStr, cfg.Storage)
		}
		d, err := db.Init(ctx, cfg.DBConnStr, cfg.DBRetryAttempts, cfg.DBRetryDelay, cfg.DBTimeout)
		if err != nil {
			return nil, err
		}
		return d, nil

	case bot.StorageMemory:
		return db.NewMemory(clock.New()), nil
	}

	return nil, errors.Errorf("unknown storage %q", cfg.Storage)
}

func (r *Reminder) Run(ctx context.Context) {
	if r.tbot == nil {
		if r.logger != nil {
			r.logger.Warn("Bot can't run")
		}
		return
	}
	defer r.store.Close()

	go r.stages.Run(ctx, r.logger)
	r.tbot.Run(ctx)
}

func init() {
	bot.Register(Name, &Reminder{}, bot.CfgTgToken)
}
