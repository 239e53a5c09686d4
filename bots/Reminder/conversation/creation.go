package conversation

import (
	"context"
	"fmt"
	"time"

	"reminderbot/bots/Reminder/db"
	"reminderbot/bots/Reminder/stage"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// startCreation creates a new draft and binds the user's stage to it. An
// unfinished draft the user might have is abandoned.
func (d *Dispatcher) startCreation(ctx context.Context, l *zap.SugaredLogger, usr, cht int64) []Reply {
	r, err := d.reminders.CreateRepeat(ctx, usr)
	if err != nil {
		l.Errorw("failed creating reminder draft", "err", err)
		return d.reply(cht, txtFailure)
	}

	st := stage.Stage{UserID: usr, ReminderID: r.ID, Step: stage.StepTitle}
	if err := d.stages.Put(ctx, st); err != nil {
		l.Errorw("failed saving stage", "err", err)
		return d.reply(cht, txtFailure)
	}

	l.Debugw("started creating reminder", "reminder", r.ID)
	return d.reply(cht, txtEnterTitle)
}

// loadDraft fetches the reminder the stage is bound to. If the reminder is
// gone, the stage is removed and the user is told to start over.
func (d *Dispatcher) loadDraft(ctx context.Context, l *zap.SugaredLogger, cht int64, st stage.Stage) (*db.Repeat, []Reply) {
	r, err := d.reminders.GetRepeat(ctx, st.ReminderID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		l.Warnw("reminder draft is gone", "reminder", st.ReminderID)
		if err := d.stages.Remove(ctx, st); err != nil {
			l.Errorw("failed removing stage", "err", err)
		}
		return nil, d.reply(cht, txtStateLost)

	case err != nil:
		l.Errorw("failed fetching reminder draft", "err", err)
		return nil, d.reply(cht, txtFailure)
	}

	return r, nil
}

// advance persists the draft and moves the stage to the next step.
func (d *Dispatcher) advance(ctx context.Context, l *zap.SugaredLogger, r *db.Repeat, st stage.Stage, next stage.Step) error {
	if err := d.reminders.UpdateRepeat(ctx, r); err != nil {
		l.Errorw("failed updating reminder draft", "err", err)
		return err
	}

	st.Step = next
	if err := d.stages.Put(ctx, st); err != nil {
		l.Errorw("failed saving stage", "err", err)
		return err
	}
	return nil
}

func (d *Dispatcher) setTitle(ctx context.Context, l *zap.SugaredLogger, ev TextEvent, st stage.Stage, title string) []Reply {
	r, replies := d.loadDraft(ctx, l, ev.ChatID, st)
	if r == nil {
		return replies
	}

	r.Title = title
	if err := d.advance(ctx, l, r, st, stage.StepTime); err != nil {
		return d.reply(ev.ChatID, txtFailure)
	}
	return d.reply(ev.ChatID, txtEnterTime)
}

func (d *Dispatcher) setTime(ctx context.Context, l *zap.SugaredLogger, ev TextEvent, st stage.Stage, txt string) []Reply {
	tod, err := db.ParseTimeOfDay(txt)
	if err != nil {
		l.Debugw("couldn't parse time", "err", err)
		return []Reply{{ChatID: ev.ChatID, ReplyTo: ev.MessageID, Text: txtBadTime}}
	}

	r, replies := d.loadDraft(ctx, l, ev.ChatID, st)
	if r == nil {
		return replies
	}

	r.Time = &tod
	if err := d.advance(ctx, l, r, st, stage.StepDays); err != nil {
		return d.reply(ev.ChatID, txtFailure)
	}
	return []Reply{{ChatID: ev.ChatID, Text: fmt.Sprintf(fmtTimeSet, tod), Buttons: daysKeyboard}}
}

func (d *Dispatcher) toggleDay(ctx context.Context, l *zap.SugaredLogger, cht int64, st stage.Stage, day time.Weekday) []Reply {
	r, replies := d.loadDraft(ctx, l, cht, st)
	if r == nil {
		return replies
	}

	added := r.ToggleDay(day)
	if err := d.advance(ctx, l, r, st, stage.StepDays); err != nil {
		return d.reply(cht, txtFailure)
	}

	format := fmtDayRemoved
	if added {
		format = fmtDayAdded
	}
	return d.reply(cht, fmt.Sprintf(format, day, r.Days))
}

// finish saves the draft if at least one day is selected.
func (d *Dispatcher) finish(ctx context.Context, l *zap.SugaredLogger, usr, cht int64) []Reply {
	st, ok, err := d.stages.Get(ctx, usr)
	switch {
	case err != nil:
		l.Errorw("failed fetching stage", "err", err)
		return d.reply(cht, txtFailure)
	case !ok:
		return d.reply(cht, txtStateLost)
	case st.Step != stage.StepDays:
		return d.notYet(cht, st)
	}

	r, replies := d.loadDraft(ctx, l, cht, st)
	if r == nil {
		return replies
	}

	if r.Saved {
		if err := d.stages.Remove(ctx, st); err != nil {
			l.Errorw("failed removing stage", "err", err)
		}
		return d.reply(cht, txtAlreadySaved)
	}

	if r.Days.Len() == 0 {
		return []Reply{{ChatID: cht, Text: txtNoDaysSelected, Buttons: daysKeyboard}}
	}

	r.Saved = true
	if err := d.reminders.UpdateRepeat(ctx, r); err != nil {
		l.Errorw("failed saving reminder", "err", err)
		return d.reply(cht, txtFailure)
	}

	if err := d.stages.Remove(ctx, st); err != nil {
		l.Errorw("failed removing stage", "err", err)
	}

	l.Infow("reminder saved", "reminder", r.ID)
	return d.reply(cht, fmt.Sprintf(fmtSaved, titleOf(r.Title), r.Time, r.Days))
}

func (d *Dispatcher) notYet(cht int64, st stage.Stage) []Reply {
	return d.reply(cht, fmt.Sprintf(fmtNotYet, st.Step))
}

func titleOf(title string) string {
	if title == "" {
		return txtUntitled
	}
	return title
}
