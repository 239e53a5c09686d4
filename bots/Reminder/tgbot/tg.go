package tgbot

import (
	"context"
	"sync"
	"time"

	"reminderbot/bot"
	"reminderbot/bots/Reminder/conversation"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	updateTimeout        = 60 // seconds
	shardQueueLen        = 16
	DefaultWorkers       = 4
	DefaultHandleTimeout = 30 * time.Second
	DefaultCooldown      = 2 * time.Second
)

// botAPI is the part of tg.BotAPI the bot uses.
type botAPI interface {
	Request(c tg.Chattable) (*tg.APIResponse, error)
	GetUpdatesChan(config tg.UpdateConfig) tg.UpdatesChannel
	StopReceivingUpdates()
}

// Handler processes user events.
type Handler interface {
	Handle(ctx context.Context, ev conversation.Event) error
}

// TBot connects the Telegram Bot API to the handler: it polls updates, turns
// them into events and delivers replies.
type TBot struct {
	Bot           botAPI
	Handler       Handler
	Logger        *zap.SugaredLogger
	RetryAttempts int
	RetryDelay    time.Duration
	Workers       int
	HandleTimeout time.Duration
	Cooldown      time.Duration

	clk       clock.Clock
	mu        sync.Mutex
	coolUntil time.Time
}

func NewTBot(tgtoken string, debug bool, l *zap.SugaredLogger) (*TBot, error) {
	b, err := tg.NewBotAPI(tgtoken)
	if err != nil {
		l.Errorw("failed to initialize Telegram Bot", "err", err)
		return nil, errors.Wrap(err, "failed to initialize Telegram Bot")
	}

	b.Debug = debug

	l.Infof("authorized on account %q (%q, %d)", b.Self.FirstName, b.Self.UserName, b.Self.ID)

	return newTBot(b, l), nil
}

func newTBot(b botAPI, l *zap.SugaredLogger) *TBot {
	return &TBot{
		Bot:           b,
		Logger:        l,
		RetryAttempts: 3,
		RetryDelay:    1 * time.Second,
		Workers:       DefaultWorkers,
		HandleTimeout: DefaultHandleTimeout,
		Cooldown:      DefaultCooldown,
		clk:           clock.New(),
	}
}

// Send delivers the reply, retrying failed requests. After the final failure
// the update polling pauses for the cooldown period, unless the context has
// been canceled or timed out.
func (b *TBot) Send(ctx context.Context, r conversation.Reply) error {
	m := tg.NewMessage(r.ChatID, r.Text)
	if r.ReplyTo > 0 {
		m.ReplyToMessageID = r.ReplyTo
	}
	m.DisableWebPagePreview = true
	if kb := keyboard(r.Buttons); kb != nil {
		m.ReplyMarkup = kb
	}

	var err error
	bot.RobustExecute(b.RetryAttempts, b.RetryDelay, func() bool {
		if err = ctx.Err(); err != nil {
			return true
		}
		_, err = b.Bot.Request(m)
		return err == nil
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			b.coolDown()
		}
		return errors.Wrap(err, "failed sending message")
	}
	return nil
}

func keyboard(buttons [][]conversation.Button) *tg.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}

	rows := make([][]tg.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		kbRow := make([]tg.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			kbRow = append(kbRow, tg.NewInlineKeyboardButtonData(btn.Label, btn.Data))
		}
		rows = append(rows, tg.NewInlineKeyboardRow(kbRow...))
	}

	kb := tg.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func (b *TBot) coolDown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.coolUntil = b.clk.Now().Add(b.Cooldown)
}

// waitCooldown blocks while the cooldown after a delivery failure lasts.
func (b *TBot) waitCooldown(ctx context.Context) {
	b.mu.Lock()
	d := b.coolUntil.Sub(b.clk.Now())
	b.mu.Unlock()
	if d <= 0 {
		return
	}

	b.Logger.Warnf("pausing updates for %v", d)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// toEvent converts the update into an event. Updates the bot doesn't handle
// are reported with false.
func toEvent(u tg.Update) (conversation.Event, bool) {
	switch {
	case u.Message != nil && u.Message.From != nil:
		msg := u.Message
		txt := msg.Text
		if txt == "" {
			txt = msg.Caption
		}
		if txt == "" {
			return nil, false
		}

		cht := msg.From.ID
		if msg.Chat != nil {
			cht = msg.Chat.ID
		}
		return conversation.TextEvent{UserID: msg.From.ID, ChatID: cht, MessageID: msg.MessageID, Text: txt}, true

	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		cbq := u.CallbackQuery
		ev := conversation.CallbackEvent{UserID: cbq.From.ID, ChatID: cbq.From.ID, Data: cbq.Data, CallbackID: cbq.ID}
		if cbq.Message != nil {
			ev.MessageID = cbq.Message.MessageID
			if cbq.Message.Chat != nil {
				ev.ChatID = cbq.Message.Chat.ID
			}
		}
		return ev, true
	}

	return nil, false
}

func senderOf(u tg.Update) int64 {
	switch {
	case u.Message != nil && u.Message.From != nil:
		return u.Message.From.ID
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return u.CallbackQuery.From.ID
	}
	return 0
}

// Run polls updates until ctx is done or the update channel is closed. Updates
// of one user are always handled by the same worker, so they're processed in
// the order they arrive.
func (b *TBot) Run(ctx context.Context) {
	workers := b.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	uCfg := tg.NewUpdate(0)
	uCfg.Timeout = updateTimeout
	updates := b.Bot.GetUpdatesChan(uCfg)

	var wg sync.WaitGroup
	shards := make([]chan tg.Update, workers)
	for i := range shards {
		shards[i] = make(chan tg.Update, shardQueueLen)
		wg.Add(1)
		go func(ch <-chan tg.Update) {
			defer wg.Done()
			for u := range ch {
				b.handleUpdate(ctx, u)
			}
		}(shards[i])
	}

	defer func() {
		for _, ch := range shards {
			close(ch)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			b.Bot.StopReceivingUpdates()
			b.Logger.Info("stopped receiving updates")
			return

		case u, ok := <-updates:
			if !ok {
				return
			}

			usr := senderOf(u)
			if usr == 0 {
				continue
			}

			b.waitCooldown(ctx)

			select {
			case shards[uint64(usr)%uint64(workers)] <- u:
			case <-ctx.Done():
			}
		}
	}
}

func (b *TBot) handleUpdate(ctx context.Context, u tg.Update) {
	ev, ok := toEvent(u)
	if !ok {
		b.Logger.Debugw("skipping update", "update", u.UpdateID)
		return
	}

	if cbq, ok := ev.(conversation.CallbackEvent); ok {
		// stops the spinner on the button
		if _, err := b.Bot.Request(tg.NewCallback(cbq.CallbackID, "")); err != nil {
			b.Logger.Errorw("failed answering callback", "err", err)
		}
	}

	hctx, cancel := context.WithTimeout(ctx, b.HandleTimeout)
	defer cancel()

	if err := b.Handler.Handle(hctx, ev); err != nil {
		b.Logger.Errorw("failed handling update", "err", err, "update", u.UpdateID)
	}
}
