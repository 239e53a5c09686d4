package bot

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Each bot should implement the Bot interface.
type Bot interface {
	// Init method initializes the bot (connects to database, configures Telegram
	// Bot, etc.). On failure, Init should return an error rather than panic.
	Init(ctx context.Context, cfg Config, l *zap.SugaredLogger) error
	// Run starts the process of handling messages from the Telegram Bot and
	// returns when ctx is done. Multiple bots are supposed to run concurrently,
	// so Run should be started in a new goroutine.
	Run(ctx context.Context)
}

var (
	botsRegistry = make(map[string]Record)
	botsMu       sync.Mutex
)

// Register adds the bot to the list of bots to run. To register a bot call
// Register in the init function. The required fields are checked before the
// bot is initialized.
func Register(name string, bot Bot, requiredConfigFields ...string) bool {
	botsMu.Lock()
	defer botsMu.Unlock()

	_, ok := botsRegistry[name]
	if ok {
		return false
	}

	botsRegistry[name] = Record{Name: name, Bot: bot, RequiredConfigFields: requiredConfigFields}
	return true
}

// Named bot record in the bots registry.
type Record struct {
	Name                 string
	Bot                  Bot
	RequiredConfigFields []string
}

// GetThemAll returns sorted list of bots.
func GetThemAll() []Record {
	botsMu.Lock()
	defer botsMu.Unlock()

	bots := make([]Record, 0, len(botsRegistry))
	for _, rec := range botsRegistry {
		bots = append(bots, rec)
	}
	sort.Slice(bots, func(i, j int) bool { return bots[i].Name < bots[j].Name })

	return bots
}
