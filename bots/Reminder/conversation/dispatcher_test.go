package conversation

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"reminderbot/bots/Reminder/db"
	"reminderbot/bots/Reminder/stage"

	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	alice = int64(1001)
	bob   = int64(1002)
)

type recorder struct {
	mu      sync.Mutex
	replies []Reply
	err     error
}

func (r *recorder) Send(_ context.Context, rep Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, rep)
	return r.err
}

// take returns the replies recorded so far and forgets them.
func (r *recorder) take() []Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.replies
	r.replies = nil
	return res
}

type fixture struct {
	d      *Dispatcher
	out    *recorder
	store  *db.Memory
	stages *stage.Memory
	clk    clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	clk := clock.NewFake()
	clk.Set(time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC))

	f := &fixture{
		out:    &recorder{},
		store:  db.NewMemory(clk),
		stages: stage.NewMemory(clk, stage.DefaultTTL),
		clk:    clk,
	}
	f.d = NewDispatcher(f.store, f.stages, f.out, clk, zaptest.NewLogger(t).Sugar())
	return f
}

func (f *fixture) text(t *testing.T, usr int64, txt string) []Reply {
	t.Helper()
	require.NoError(t, f.d.Handle(context.Background(), TextEvent{UserID: usr, ChatID: usr, MessageID: 1, Text: txt}))
	return f.out.take()
}

func (f *fixture) press(t *testing.T, usr int64, data string) []Reply {
	t.Helper()
	require.NoError(t, f.d.Handle(context.Background(), CallbackEvent{UserID: usr, ChatID: usr, MessageID: 2, Data: data, CallbackID: "cb"}))
	return f.out.take()
}

func (f *fixture) stageOf(t *testing.T, usr int64) (stage.Stage, bool) {
	t.Helper()
	st, ok, err := f.stages.Get(context.Background(), usr)
	require.NoError(t, err)
	return st, ok
}

// toDays walks the user through title and time.
func (f *fixture) toDays(t *testing.T, usr int64) stage.Stage {
	t.Helper()
	f.text(t, usr, "/create")
	f.text(t, usr, "Water plants")
	f.text(t, usr, "09:30")

	st, ok := f.stageOf(t, usr)
	require.True(t, ok)
	require.Equal(t, stage.StepDays, st.Step)
	return st
}

func only(t *testing.T, replies []Reply) Reply {
	t.Helper()
	require.Len(t, replies, 1)
	return replies[0]
}

func TestCreateListDeleteScenario(t *testing.T) {
	f := newFixture(t)

	r := only(t, f.text(t, alice, "/create"))
	assert.Equal(t, txtEnterTitle, r.Text)
	assert.Equal(t, alice, r.ChatID)
	st, ok := f.stageOf(t, alice)
	require.True(t, ok)
	assert.Equal(t, stage.StepTitle, st.Step)

	r = only(t, f.text(t, alice, "Water plants"))
	assert.Equal(t, txtEnterTime, r.Text)

	r = only(t, f.text(t, alice, "9:30"))
	assert.Equal(t, fmt.Sprintf(fmtTimeSet, "09:30"), r.Text)
	assert.Equal(t, daysKeyboard, r.Buttons)

	r = only(t, f.press(t, alice, "1"))
	assert.Equal(t, "added: Monday\nSelected: Mon", r.Text)

	r = only(t, f.text(t, alice, "wed"))
	assert.Equal(t, "added: Wednesday\nSelected: Mon, Wed", r.Text)

	r = only(t, f.press(t, alice, "1"))
	assert.Equal(t, "removed: Monday\nSelected: Wed", r.Text)

	f.press(t, alice, "1")

	r = only(t, f.press(t, alice, cbqEndReminder))
	assert.Equal(t, fmt.Sprintf(fmtSaved, "Water plants", "09:30", "Mon, Wed"), r.Text)
	_, ok = f.stageOf(t, alice)
	assert.False(t, ok, "stage must be gone after finish")

	saved, err := f.store.GetRepeat(context.Background(), st.ReminderID)
	require.NoError(t, err)
	assert.True(t, saved.Saved)
	assert.Equal(t, "Water plants", saved.Title)
	assert.Equal(t, db.TimeOfDay{Hour: 9, Minute: 30}, *saved.Time)
	assert.Equal(t, db.NewWeekdays(time.Monday, time.Wednesday), saved.Days)

	r = only(t, f.text(t, alice, "/list"))
	assert.Contains(t, r.Text, "Water plants")
	assert.Contains(t, r.Text, st.ReminderID.String())
	assert.Equal(t, deleteKeyboard(st.ReminderID), r.Buttons)

	r = only(t, f.press(t, alice, r.Buttons[0][0].Data))
	assert.Equal(t, txtReminderDeleted, r.Text)

	r = only(t, f.text(t, alice, "/list_reminder"))
	assert.Equal(t, txtNoReminders, r.Text)
}

func TestFinishWithoutDaysIsRejected(t *testing.T) {
	f := newFixture(t)
	st := f.toDays(t, alice)

	r := only(t, f.press(t, alice, cbqEndReminder))
	assert.Equal(t, txtNoDaysSelected, r.Text)
	assert.Equal(t, daysKeyboard, r.Buttons)

	cur, ok := f.stageOf(t, alice)
	require.True(t, ok)
	assert.Equal(t, stage.StepDays, cur.Step)

	draft, err := f.store.GetRepeat(context.Background(), st.ReminderID)
	require.NoError(t, err)
	assert.False(t, draft.Saved)

	// toggled on and off again is still empty
	f.press(t, alice, "5")
	f.press(t, alice, "5")
	r = only(t, f.press(t, alice, cbqEndReminder))
	assert.Equal(t, txtNoDaysSelected, r.Text)
}

func TestDoubleFinishIsRejected(t *testing.T) {
	f := newFixture(t)
	f.toDays(t, alice)
	f.press(t, alice, "0")

	f.press(t, alice, cbqEndReminder)
	r := only(t, f.press(t, alice, cbqEndReminder))
	assert.Equal(t, txtStateLost, r.Text)

	list, err := f.store.ListRepeats(context.Background(), alice)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFinishAlreadySavedDraft(t *testing.T) {
	f := newFixture(t)
	st := f.toDays(t, alice)
	f.press(t, alice, "2")

	draft, err := f.store.GetRepeat(context.Background(), st.ReminderID)
	require.NoError(t, err)
	draft.Saved = true
	require.NoError(t, f.store.UpdateRepeat(context.Background(), draft))

	r := only(t, f.press(t, alice, "/"+cbqEndReminder))
	assert.Equal(t, txtAlreadySaved, r.Text)
	_, ok := f.stageOf(t, alice)
	assert.False(t, ok)
}

func TestBadTimeKeepsStage(t *testing.T) {
	f := newFixture(t)
	f.text(t, alice, "/create")
	f.text(t, alice, "Stretch")

	r := only(t, f.text(t, alice, "half past nine"))
	assert.Equal(t, txtBadTime, r.Text)
	assert.Equal(t, 1, r.ReplyTo)

	st, ok := f.stageOf(t, alice)
	require.True(t, ok)
	assert.Equal(t, stage.StepTime, st.Step)

	r = only(t, f.text(t, alice, "21:15"))
	assert.Equal(t, daysKeyboard, r.Buttons)
}

func TestUnknownDayText(t *testing.T) {
	f := newFixture(t)
	f.toDays(t, alice)

	r := only(t, f.text(t, alice, "someday"))
	assert.Equal(t, txtBadDay, r.Text)
	assert.Equal(t, daysKeyboard, r.Buttons)

	st, ok := f.stageOf(t, alice)
	require.True(t, ok)
	assert.Equal(t, stage.StepDays, st.Step)
}

func TestDayBeforeDaysStep(t *testing.T) {
	f := newFixture(t)
	f.text(t, alice, "/create")

	r := only(t, f.press(t, alice, "3"))
	assert.Equal(t, fmt.Sprintf(fmtNotYet, "title"), r.Text)

	r = only(t, f.press(t, alice, cbqEndReminder))
	assert.Equal(t, fmt.Sprintf(fmtNotYet, "title"), r.Text)
}

func TestStageExpiry(t *testing.T) {
	f := newFixture(t)
	f.toDays(t, alice)
	f.press(t, alice, "1")

	f.clk.Add(stage.DefaultTTL)

	r := only(t, f.press(t, alice, "2"))
	assert.Equal(t, txtStateLost, r.Text)
	r = only(t, f.press(t, alice, cbqEndReminder))
	assert.Equal(t, txtStateLost, r.Text)
	r = only(t, f.text(t, alice, "monday"))
	assert.Equal(t, txtHelp, r.Text)
}

func TestEveryStepRefreshesExpiry(t *testing.T) {
	f := newFixture(t)
	f.text(t, alice, "/create")

	f.clk.Add(stage.DefaultTTL - time.Second)
	f.text(t, alice, "Title")
	f.clk.Add(stage.DefaultTTL - time.Second)
	f.text(t, alice, "10:00")
	f.clk.Add(stage.DefaultTTL - time.Second)
	f.press(t, alice, "4")
	f.clk.Add(stage.DefaultTTL - time.Second)

	r := only(t, f.press(t, alice, cbqEndReminder))
	assert.Contains(t, r.Text, "Saved!")
}

func TestDraftVanished(t *testing.T) {
	f := newFixture(t)
	f.text(t, alice, "/create")

	st, ok := f.stageOf(t, alice)
	require.True(t, ok)
	draft, err := f.store.GetRepeat(context.Background(), st.ReminderID)
	require.NoError(t, err)
	require.NoError(t, f.store.RemoveRepeat(context.Background(), draft))

	r := only(t, f.text(t, alice, "Title"))
	assert.Equal(t, txtStateLost, r.Text)
	_, ok = f.stageOf(t, alice)
	assert.False(t, ok)
}

func TestCreateOverwritesStage(t *testing.T) {
	f := newFixture(t)
	first := f.toDays(t, alice)

	f.text(t, alice, "/create_reminder")
	st, ok := f.stageOf(t, alice)
	require.True(t, ok)
	assert.Equal(t, stage.StepTitle, st.Step)
	assert.NotEqual(t, first.ReminderID, st.ReminderID)
}

func TestDeleteChecksOwner(t *testing.T) {
	f := newFixture(t)
	st := f.toDays(t, alice)
	f.press(t, alice, "6")
	f.press(t, alice, cbqEndReminder)

	r := only(t, f.text(t, bob, "/delete "+st.ReminderID.String()))
	assert.Equal(t, txtReminderNotFound, r.Text)

	_, err := f.store.GetRepeat(context.Background(), st.ReminderID)
	assert.NoError(t, err)

	r = only(t, f.text(t, alice, "/delete "+st.ReminderID.String()))
	assert.Equal(t, txtReminderDeleted, r.Text)

	r = only(t, f.text(t, alice, "/delete "+st.ReminderID.String()))
	assert.Equal(t, txtReminderNotFound, r.Text)
}

func TestDeleteDraftClearsStage(t *testing.T) {
	f := newFixture(t)
	st := f.toDays(t, alice)

	r := only(t, f.press(t, alice, cbqDeleteReminderPfx+st.ReminderID.String()))
	assert.Equal(t, txtReminderDeleted, r.Text)

	_, ok := f.stageOf(t, alice)
	assert.False(t, ok)
}

func TestDeleteArguments(t *testing.T) {
	f := newFixture(t)

	r := only(t, f.text(t, alice, "/delete"))
	assert.Equal(t, txtExpectedID, r.Text)

	r = only(t, f.text(t, alice, "/delete 42"))
	assert.Equal(t, txtReminderNotFound, r.Text)
}

func TestListOrderAndScope(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.toDays(t, alice)
		f.press(t, alice, strconv.Itoa(i))
		f.press(t, alice, cbqEndReminder)
	}
	f.toDays(t, bob)
	f.press(t, bob, "1")
	f.press(t, bob, cbqEndReminder)

	replies := f.text(t, alice, "/list")
	require.Len(t, replies, 3)
	assert.Contains(t, replies[0].Text, "Sun")
	assert.Contains(t, replies[1].Text, "Mon")
	assert.Contains(t, replies[2].Text, "Tue")
}

func TestOnceReminder(t *testing.T) {
	f := newFixture(t)

	r := only(t, f.text(t, alice, "/once 2024-03-05 08:15 UTC Call mom"))
	assert.Equal(t, fmt.Sprintf(fmtOnceSaved, "Call mom", "Tue, 05 Mar 2024 08:15 UTC"), r.Text)

	r = only(t, f.text(t, alice, "/once 2024-03-05 09:00 dentist appointment"))
	assert.Contains(t, r.Text, `"dentist appointment"`)

	onces, err := f.store.ListOnces(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, onces, 2)
	assert.Equal(t, "UTC", onces[0].TimeZone)
	assert.True(t, onces[0].At.Equal(time.Date(2024, 3, 5, 8, 15, 0, 0, time.UTC)))

	replies := f.text(t, alice, "/list")
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0].Text, "Call mom")
	assert.Equal(t, deleteKeyboard(onces[0].ID), replies[0].Buttons)

	r = only(t, f.press(t, alice, replies[0].Buttons[0][0].Data))
	assert.Equal(t, txtReminderDeleted, r.Text)
	onces, err = f.store.ListOnces(context.Background(), alice)
	require.NoError(t, err)
	assert.Len(t, onces, 1)
}

func TestOnceReminderValidation(t *testing.T) {
	f := newFixture(t)

	r := only(t, f.text(t, alice, "/once tomorrow"))
	assert.Equal(t, txtBadOnce, r.Text)

	r = only(t, f.text(t, alice, "/once 2024-13-01 10:00"))
	assert.Equal(t, txtBadOnce, r.Text)

	r = only(t, f.text(t, alice, "/once 2024-03-04 11:59 too late"))
	assert.Equal(t, txtOnceInPast, r.Text)

	onces, err := f.store.ListOnces(context.Background(), alice)
	require.NoError(t, err)
	assert.Empty(t, onces)
}

func TestOnceReminderTimeZone(t *testing.T) {
	tests := []struct {
		name  string
		args  string
		tz    string
		title string
		at    time.Time
	}{
		{
			name:  "area and location",
			args:  "2030-01-01 10:00 Europe/Berlin call mom",
			tz:    "Europe/Berlin",
			title: "call mom",
			at:    time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "utc",
			args:  "2030-01-01 10:00 UTC call mom",
			tz:    "UTC",
			title: "call mom",
			at:    time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "country name is a title word",
			args:  "2030-01-01 10:00 Japan trip booking",
			tz:    "UTC",
			title: "Japan trip booking",
			at:    time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "title only",
			args:  "2030-01-01 10:00 Poland",
			tz:    "UTC",
			title: "Poland",
			at:    time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at, tz, title, err := parseOnce(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.tz, tz)
			assert.Equal(t, tt.title, title)
			assert.True(t, at.Equal(tt.at), "got %v", at)
		})
	}

	_, _, _, err := parseOnce("2030-01-01 10:00 Europe/Berln call mom")
	assert.Error(t, err)

	f := newFixture(t)
	r := only(t, f.text(t, alice, "/once 2030-01-01 10:00 Japan trip booking"))
	assert.Contains(t, r.Text, `"Japan trip booking"`)

	onces, err := f.store.ListOnces(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, onces, 1)
	assert.Equal(t, "UTC", onces[0].TimeZone)
	assert.Equal(t, "Japan trip booking", onces[0].Title)
}

func TestCommandsAndFallbacks(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, txtHelp, only(t, f.text(t, alice, "hello")).Text)
	assert.Equal(t, txtWelcome, only(t, f.text(t, alice, "/start")).Text)
	assert.Equal(t, txtHelp, only(t, f.text(t, alice, "/help")).Text)
	assert.Equal(t, txtHelp, only(t, f.text(t, alice, "/dance")).Text)
	assert.Equal(t, txtHelp, only(t, f.text(t, alice, "/3")).Text)
	assert.Equal(t, txtHelp, only(t, f.press(t, alice, "7")).Text)
	assert.Equal(t, txtHelp, only(t, f.press(t, alice, "something")).Text)
	assert.Equal(t, txtHelp, only(t, f.press(t, alice, "monday")).Text)
	assert.Equal(t, txtStateLost, only(t, f.press(t, alice, "3")).Text)

	r := only(t, f.text(t, alice, "/create@ReminderBot"))
	assert.Equal(t, txtEnterTitle, r.Text)
}

func TestUnknownInputTriedAsDay(t *testing.T) {
	f := newFixture(t)
	st := f.toDays(t, alice)

	r := only(t, f.press(t, alice, "monday"))
	assert.Equal(t, fmt.Sprintf(fmtDayAdded, time.Monday, db.NewWeekdays(time.Monday)), r.Text)

	r = only(t, f.text(t, alice, "/3"))
	assert.Equal(t, fmt.Sprintf(fmtDayAdded, time.Wednesday, db.NewWeekdays(time.Monday, time.Wednesday)), r.Text)

	r = only(t, f.text(t, alice, "/Fri@ReminderBot"))
	assert.Contains(t, r.Text, "Friday")

	assert.Equal(t, txtHelp, only(t, f.press(t, alice, "someday")).Text)
	assert.Equal(t, txtHelp, only(t, f.text(t, alice, "/dance")).Text)

	draft, err := f.store.GetRepeat(context.Background(), st.ReminderID)
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, draft.Days.Days())

	cur, ok := f.stageOf(t, alice)
	require.True(t, ok)
	assert.Equal(t, stage.StepDays, cur.Step)
}

func TestUnknownInputBeforeDaysStep(t *testing.T) {
	f := newFixture(t)
	f.text(t, alice, "/create")

	assert.Equal(t, txtHelp, only(t, f.press(t, alice, "monday")).Text)
	assert.Equal(t, txtHelp, only(t, f.text(t, alice, "/3")).Text)

	st, ok := f.stageOf(t, alice)
	require.True(t, ok)
	assert.Equal(t, stage.StepTitle, st.Step)
}

func TestCommandDuringCreationKeepsStage(t *testing.T) {
	f := newFixture(t)
	f.text(t, alice, "/create")
	f.text(t, alice, "Title")

	assert.Equal(t, txtNoReminders, only(t, f.text(t, alice, "/list")).Text)

	st, ok := f.stageOf(t, alice)
	require.True(t, ok)
	assert.Equal(t, stage.StepTime, st.Step)
}

func TestConcurrentTogglesOfOneUser(t *testing.T) {
	f := newFixture(t)
	st := f.toDays(t, alice)

	var wg sync.WaitGroup
	for day := 0; day < 7; day++ {
		wg.Add(1)
		go func(day int) {
			defer wg.Done()
			ev := CallbackEvent{UserID: alice, ChatID: alice, Data: strconv.Itoa(day)}
			assert.NoError(t, f.d.Handle(context.Background(), ev))
		}(day)
	}
	wg.Wait()

	draft, err := f.store.GetRepeat(context.Background(), st.ReminderID)
	require.NoError(t, err)
	assert.Equal(t, 7, draft.Days.Len(), "no toggle may be lost")
	assert.Zero(t, f.d.locks.len())
}

func TestConcurrentUsers(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := int64(0); i < 20; i++ {
		wg.Add(1)
		go func(usr int64) {
			defer wg.Done()
			for _, txt := range []string{"/create", "Title", "07:00", "mon"} {
				ev := TextEvent{UserID: usr, ChatID: usr, Text: txt}
				assert.NoError(t, f.d.Handle(context.Background(), ev))
			}
			ev := CallbackEvent{UserID: usr, ChatID: usr, Data: cbqEndReminder}
			assert.NoError(t, f.d.Handle(context.Background(), ev))
		}(100 + i)
	}
	wg.Wait()

	for i := int64(0); i < 20; i++ {
		list, err := f.store.ListRepeats(context.Background(), 100+i)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	}
}

type failingStore struct {
	*db.Memory
}

func (s failingStore) UpdateRepeat(context.Context, *db.Repeat) error {
	return errors.New("database is down")
}

func TestStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.d.reminders = failingStore{f.store}

	f.text(t, alice, "/create")
	r := only(t, f.text(t, alice, "Title"))
	assert.Equal(t, txtFailure, r.Text)

	st, ok := f.stageOf(t, alice)
	require.True(t, ok)
	assert.Equal(t, stage.StepTitle, st.Step, "failed step must be retried")
}

func TestSendFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.out.err = errors.New("network is unreachable")

	err := f.d.Handle(context.Background(), TextEvent{UserID: alice, ChatID: alice, Text: "/create"})
	assert.Error(t, err)

	_, ok := f.stageOf(t, alice)
	assert.True(t, ok, "state changes don't depend on delivery")
}

func TestSplitCommand(t *testing.T) {
	name, args := splitCommand("/Delete@ReminderBot  abc ")
	assert.Equal(t, "delete", name)
	assert.Equal(t, "abc", args)

	name, args = splitCommand("/list")
	assert.Equal(t, "list", name)
	assert.Empty(t, args)
}
