package main

import (
	"context"
	"io/fs"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"reminderbot/bot"

	_ "reminderbot/bots/Reminder"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// getLogger creates a logger in global namespace
func getLogger() (*zap.SugaredLogger, func() error) {
	logger, _ := zap.NewDevelopment(zap.Fields(zap.String("ns", "Global")))

	log := logger.Sugar()
	return log, logger.Sync
}

// newFarmLogger creates the logger shared by the bots. If the log file is set,
// records are also written there, rotated by size.
func newFarmLogger(cfg *bot.FarmConfig) (*zap.Logger, error) {
	level := zap.InfoLevel
	if cfg.Debug {
		level = zap.DebugLevel
	}

	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	console, err := zcfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed building logger")
	}

	if cfg.LogFile == "" {
		return console, nil
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(fileWriter),
		level,
	)

	return console.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	})), nil
}

// loadEnv loads variables from .env in the working directory if it's present
func loadEnv() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// startBot validates the bot's configuration and initializes it
func startBot(ctx context.Context, cfg *bot.FarmConfig, rec bot.Record, l *zap.SugaredLogger) error {
	if err := cfg.Validate(rec); err != nil {
		return err
	}

	botCfg, err := cfg.Bot(rec.Name)
	if err != nil {
		return err
	}

	if err := rec.Bot.Init(ctx, botCfg, l); err != nil {
		return errors.Wrapf(err, "failed initializing %s", rec.Name)
	}
	return nil
}

// Botfarm entry point
func main() {
	logger, syncLogs := getLogger()
	defer syncLogs()

	if err := loadEnv(); err != nil {
		logger.Errorw("couldn't load .env file", "err", err)
	}

	cfgFile, ok := os.LookupEnv("CONFIG_FILE")
	if !ok {
		logger.Warn("configuration file name isn't set, reading configuration from environment")
	}

	cfg, err := bot.LoadConfig(cfgFile)
	if err != nil {
		logger.Fatalw("couldn't read configuration", "file", cfgFile, "err", err)
	}

	farmLogger, err := newFarmLogger(cfg)
	if err != nil {
		logger.Fatalw("couldn't create logger", "err", err)
	}
	defer farmLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, rec := range bot.GetThemAll() {
		s := farmLogger.With(zap.String("ns", rec.Name)).Sugar()

		if err := startBot(ctx, cfg, rec, s); err != nil {
			s.Errorw("bot isn't started", "err", err)
			if cfg.StopOnFailure {
				stop()
				break
			}
			continue
		}

		wg.Add(1)
		go func(b bot.Bot) {
			defer wg.Done()
			b.Run(ctx)
		}(rec.Bot)
	}

	wg.Wait()
	logger.Info("all bots have stopped")
}
