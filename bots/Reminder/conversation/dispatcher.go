package conversation

import (
	"context"
	"strings"

	"reminderbot/bots/Reminder/db"
	"reminderbot/bots/Reminder/stage"

	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Dispatcher turns user events into changes of reminders and stages and
// replies to the user.
type Dispatcher struct {
	reminders db.Store
	stages    stage.Store
	sender    Sender
	clk       clock.Clock
	logger    *zap.SugaredLogger
	locks     *userLocks
}

func NewDispatcher(reminders db.Store, stages stage.Store, sender Sender, clk clock.Clock, l *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		reminders: reminders,
		stages:    stages,
		sender:    sender,
		clk:       clk,
		logger:    l,
		locks:     newUserLocks(),
	}
}

// Handle processes the event. Events of one user are processed one at a time,
// events of different users are processed concurrently. The returned error is
// the first failure to deliver a reply.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	l := d.logger.With("usr", ev.sender())

	replies := d.transition(ctx, l, ev)

	var sendErr error
	for _, r := range replies {
		if err := d.sender.Send(ctx, r); err != nil {
			l.Errorw("failed sending reply", "err", err)
			if sendErr == nil {
				sendErr = errors.Wrap(err, "failed sending reply")
			}
		}
	}
	return sendErr
}

// transition applies the event under the user's lock and returns the replies
// to send once the lock is released.
func (d *Dispatcher) transition(ctx context.Context, l *zap.SugaredLogger, ev Event) []Reply {
	unlock := d.locks.lock(ev.sender())
	defer unlock()

	switch ev := ev.(type) {
	case TextEvent:
		return d.onText(ctx, l, ev)
	case CallbackEvent:
		return d.onCallback(ctx, l, ev)
	}

	l.Warnf("unexpected event %T", ev)
	return nil
}

func (d *Dispatcher) onText(ctx context.Context, l *zap.SugaredLogger, ev TextEvent) []Reply {
	txt := strings.TrimSpace(ev.Text)
	if strings.HasPrefix(txt, "/") {
		return d.onCommand(ctx, l, ev, txt)
	}

	st, ok, err := d.stages.Get(ctx, ev.UserID)
	if err != nil {
		l.Errorw("failed fetching stage", "err", err)
		return d.reply(ev.ChatID, txtFailure)
	}
	if !ok {
		return d.reply(ev.ChatID, txtHelp)
	}

	switch st.Step {
	case stage.StepTitle:
		return d.setTitle(ctx, l, ev, st, txt)
	case stage.StepTime:
		return d.setTime(ctx, l, ev, st, txt)
	case stage.StepDays:
		day, err := db.ParseWeekday(txt)
		if err != nil {
			return []Reply{{ChatID: ev.ChatID, ReplyTo: ev.MessageID, Text: txtBadDay, Buttons: daysKeyboard}}
		}
		return d.toggleDay(ctx, l, ev.ChatID, st, day)
	}

	l.Errorf("unknown step %v", st.Step)
	return d.reply(ev.ChatID, txtFailure)
}

// splitCommand splits "/name@bot args" into the command name and arguments.
func splitCommand(txt string) (string, string) {
	name, args, _ := strings.Cut(strings.TrimPrefix(txt, "/"), " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), strings.TrimSpace(args)
}

func (d *Dispatcher) onCommand(ctx context.Context, l *zap.SugaredLogger, ev TextEvent, txt string) []Reply {
	name, args := splitCommand(txt)

	switch {
	case cmdStart.is(name):
		return d.reply(ev.ChatID, txtWelcome)

	case cmdHelp.is(name):
		return d.reply(ev.ChatID, txtHelp)

	case cmdCreate.is(name):
		return d.startCreation(ctx, l, ev.UserID, ev.ChatID)

	case cmdOnce.is(name):
		return d.createOnce(ctx, l, ev, args)

	case cmdList.is(name):
		return d.list(ctx, l, ev.UserID, ev.ChatID)

	case cmdDelete.is(name):
		if args == "" {
			return d.reply(ev.ChatID, txtExpectedID)
		}
		return d.delete(ctx, l, ev.UserID, ev.ChatID, args)
	}

	return d.dayOrHelp(ctx, l, ev.UserID, ev.ChatID, name)
}

func (d *Dispatcher) onCallback(ctx context.Context, l *zap.SugaredLogger, ev CallbackEvent) []Reply {
	data := strings.TrimPrefix(strings.TrimSpace(ev.Data), "/")

	switch {
	case data == cbqEndReminder:
		return d.finish(ctx, l, ev.UserID, ev.ChatID)

	case strings.HasPrefix(data, cbqDeleteReminderPfx):
		return d.delete(ctx, l, ev.UserID, ev.ChatID, strings.TrimPrefix(data, cbqDeleteReminderPfx))

	case len(data) == 1 && data[0] >= '0' && data[0] <= '6':
		day, err := db.ParseWeekday(data)
		if err != nil {
			return d.reply(ev.ChatID, txtHelp)
		}

		st, ok, err := d.stages.Get(ctx, ev.UserID)
		switch {
		case err != nil:
			l.Errorw("failed fetching stage", "err", err)
			return d.reply(ev.ChatID, txtFailure)
		case !ok:
			return d.reply(ev.ChatID, txtStateLost)
		case st.Step != stage.StepDays:
			return d.notYet(ev.ChatID, st)
		}
		return d.toggleDay(ctx, l, ev.ChatID, st, day)
	}

	l.Debugf("unknown callback data %q", ev.Data)
	return d.dayOrHelp(ctx, l, ev.UserID, ev.ChatID, data)
}

// dayOrHelp toggles the day named by an unrecognized command or callback when
// the user is choosing days, and shows the help otherwise.
func (d *Dispatcher) dayOrHelp(ctx context.Context, l *zap.SugaredLogger, usr, cht int64, token string) []Reply {
	st, ok, err := d.stages.Get(ctx, usr)
	if err != nil {
		l.Errorw("failed fetching stage", "err", err)
		return d.reply(cht, txtFailure)
	}

	if ok && st.Step == stage.StepDays {
		if day, err := db.ParseWeekday(token); err == nil {
			return d.toggleDay(ctx, l, cht, st, day)
		}
	}
	return d.reply(cht, txtHelp)
}

func (d *Dispatcher) reply(cht int64, txt string) []Reply {
	return []Reply{{ChatID: cht, Text: txt}}
}
