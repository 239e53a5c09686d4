package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reminderbot/bots/Reminder/db"
	"reminderbot/bots/Reminder/stage"
	"reminderbot/bots/Reminder/timezone"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// list sends a message per saved reminder, each with its own Delete button.
func (d *Dispatcher) list(ctx context.Context, l *zap.SugaredLogger, usr, cht int64) []Reply {
	repeats, err := d.reminders.ListRepeats(ctx, usr)
	if err != nil {
		l.Errorw("failed listing reminders", "err", err)
		return d.reply(cht, txtFailure)
	}

	onces, err := d.reminders.ListOnces(ctx, usr)
	if err != nil {
		l.Errorw("failed listing one-time reminders", "err", err)
		return d.reply(cht, txtFailure)
	}

	if len(repeats)+len(onces) == 0 {
		return d.reply(cht, txtNoReminders)
	}

	replies := make([]Reply, 0, len(repeats)+len(onces))
	for _, r := range repeats {
		txt := fmt.Sprintf(fmtRepeatEntry, titleOf(r.Title), r.Time, r.Days, r.ID)
		replies = append(replies, Reply{ChatID: cht, Text: txt, Buttons: deleteKeyboard(r.ID)})
	}
	for _, o := range onces {
		at := o.At.In(timezone.LoadOrUTC(o.TimeZone)).Format(onceDisplay)
		txt := fmt.Sprintf(fmtOnceEntry, titleOf(o.Title), at, o.ID)
		replies = append(replies, Reply{ChatID: cht, Text: txt, Buttons: deleteKeyboard(o.ID)})
	}
	return replies
}

// delete removes the user's reminder of either kind. Reminders of other users
// are reported as not found.
func (d *Dispatcher) delete(ctx context.Context, l *zap.SugaredLogger, usr, cht int64, arg string) []Reply {
	id, err := uuid.Parse(strings.TrimSpace(arg))
	if err != nil {
		return d.reply(cht, txtReminderNotFound)
	}

	err = d.deleteRepeat(ctx, usr, id)
	if errors.Is(err, db.ErrNotFound) {
		err = d.deleteOnce(ctx, usr, id)
	}

	switch {
	case errors.Is(err, db.ErrNotFound):
		return d.reply(cht, txtReminderNotFound)
	case err != nil:
		l.Errorw("failed deleting reminder", "err", err)
		return d.reply(cht, txtFailure)
	}

	// the user might be in the middle of editing this very reminder
	if err := d.stages.Remove(ctx, stage.Stage{UserID: usr, ReminderID: id}); err != nil {
		l.Errorw("failed removing stage", "err", err)
	}

	l.Infow("reminder deleted", "reminder", id)
	return d.reply(cht, txtReminderDeleted)
}

func (d *Dispatcher) deleteRepeat(ctx context.Context, usr int64, id uuid.UUID) error {
	r, err := d.reminders.GetRepeat(ctx, id)
	if err != nil {
		return err
	}
	if r.UserID != usr {
		return db.ErrNotFound
	}
	return d.reminders.RemoveRepeat(ctx, r)
}

func (d *Dispatcher) deleteOnce(ctx context.Context, usr int64, id uuid.UUID) error {
	o, err := d.reminders.GetOnce(ctx, id)
	if err != nil {
		return err
	}
	if o.UserID != usr {
		return db.ErrNotFound
	}
	return d.reminders.RemoveOnce(ctx, o)
}

// parseOnce parses "YYYY-MM-DD HH:MM [time zone] [title]". The time zone is
// optional and defaults to UTC. Only UTC and Area/Location names are taken as
// a zone, so titles starting with words like "Japan" stay intact.
func parseOnce(args string) (time.Time, string, string, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return time.Time{}, "", "", errors.New("date and time expected")
	}

	tz := db.DefaultTimeZone
	rest := fields[2:]
	if len(rest) > 0 && isZoneName(rest[0]) {
		tz = rest[0]
		rest = rest[1:]
	}

	loc, err := timezone.Load(tz)
	if err != nil {
		return time.Time{}, "", "", err
	}

	at, err := time.ParseInLocation(onceLayout, fields[0]+" "+fields[1], loc)
	if err != nil {
		return time.Time{}, "", "", errors.Wrap(err, "failed parsing date and time")
	}

	return at, tz, strings.Join(rest, " "), nil
}

func isZoneName(s string) bool {
	return s == db.DefaultTimeZone || strings.Contains(s, "/")
}

// createOnce saves a one-time reminder in a single step.
func (d *Dispatcher) createOnce(ctx context.Context, l *zap.SugaredLogger, ev TextEvent, args string) []Reply {
	at, tz, title, err := parseOnce(args)
	if err != nil {
		l.Debugw("couldn't parse one-time reminder", "err", err)
		return []Reply{{ChatID: ev.ChatID, ReplyTo: ev.MessageID, Text: txtBadOnce}}
	}

	if !at.After(d.clk.Now()) {
		return d.reply(ev.ChatID, txtOnceInPast)
	}

	o, err := d.reminders.CreateOnce(ctx, ev.UserID)
	if err != nil {
		l.Errorw("failed creating one-time reminder", "err", err)
		return d.reply(ev.ChatID, txtFailure)
	}

	o.Title = title
	o.At = at.UTC()
	o.TimeZone = tz
	o.Saved = true
	if err := d.reminders.UpdateOnce(ctx, o); err != nil {
		l.Errorw("failed saving one-time reminder", "err", err)
		return d.reply(ev.ChatID, txtFailure)
	}

	l.Infow("one-time reminder saved", "reminder", o.ID)
	return d.reply(ev.ChatID, fmt.Sprintf(fmtOnceSaved, titleOf(title), at.Format(onceDisplay)))
}
