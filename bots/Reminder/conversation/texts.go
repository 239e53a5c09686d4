package conversation

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	cbqEndReminder       = "end_reminder"
	cbqDeleteReminderPfx = "delete_reminder_"
)

const (
	txtWelcome = "Hi! I keep your reminders. Send /create to set up a recurring reminder or /help to see what else I can do"
	txtHelp    = `Here's what I can do:
/create - to create a recurring reminder step by step
/once YYYY-MM-DD HH:MM [time zone] title - to create a one-time reminder, e.g. /once 2025-01-31 18:30 Europe/Berlin call mom
/list - to list your reminders
/delete ID - to delete a reminder
/help - to show this message`
	txtEnterTitle       = "What should I remind you about? Send me the title"
	txtEnterTime        = "At what time? Send it in the format HH:MM, e.g. 09:30 or 9:30 PM"
	txtBadTime          = "I expect a valid time in the format HH:MM, e.g. 09:30 or 9:30 PM. Please send it again"
	txtChooseDays       = "Choose the days of week and press Finish"
	txtBadDay           = "I expect a day of week, e.g. Monday, or one of the buttons below. Press Finish when you're done"
	txtNoDaysSelected   = "No days selected. Choose at least one day before pressing Finish"
	txtAlreadySaved     = "This reminder has already been saved"
	txtStateLost        = "I've lost track of the reminder you were creating, it might have expired. Please start over with /create"
	txtFailure          = "Oops, something went wrong. Please retry now or later"
	txtNoReminders      = "You don't have any reminders yet. Use /create to make one"
	txtReminderNotFound = "I couldn't find this reminder, maybe it's already deleted"
	txtReminderDeleted  = "The reminder is deleted"
	txtExpectedID       = "Tell me which reminder to delete: /delete ID. You can find IDs with /list"
	txtBadOnce          = "I expect the date and time like this: /once 2025-01-31 18:30 [time zone] title"
	txtOnceInPast       = "This moment has already passed. Pick a time in the future"
	txtUntitled         = "(untitled)"

	fmtNotYet      = "Not yet. First send me the %s"
	fmtDayAdded    = "added: %s\nSelected: %s"
	fmtDayRemoved  = "removed: %s\nSelected: %s"
	fmtTimeSet     = "Got it, %s. " + txtChooseDays
	fmtSaved       = "Saved! I'll remind you about %q at %s on %s"
	fmtOnceSaved   = "Saved! I'll remind you about %q on %s"
	fmtRepeatEntry = "%s\n%s on %s\nID: %s"
	fmtOnceEntry   = "%s\n%s\nID: %s"
	onceLayout     = "2006-01-02 15:04"
	onceDisplay    = "Mon, 02 Jan 2006 15:04 MST"
)

var daysKeyboard = [][]Button{
	{dayButton(time.Monday), dayButton(time.Tuesday), dayButton(time.Wednesday), dayButton(time.Thursday)},
	{dayButton(time.Friday), dayButton(time.Saturday), dayButton(time.Sunday)},
	{{Label: "Finish", Data: cbqEndReminder}},
}

func dayButton(day time.Weekday) Button {
	return Button{Label: day.String(), Data: strconv.Itoa(int(day))}
}

func deleteKeyboard(id uuid.UUID) [][]Button {
	return [][]Button{{{Label: "Delete", Data: cbqDeleteReminderPfx + id.String()}}}
}

type Command struct {
	Name    string
	Aliases []string
}

func makeCommand(name string, aliases ...string) *Command {
	return &Command{Name: name, Aliases: aliases}
}

func (c *Command) is(name string) bool {
	if name == c.Name {
		return true
	}
	for _, a := range c.Aliases {
		if name == a {
			return true
		}
	}
	return false
}

var (
	cmdStart  = makeCommand("start")
	cmdHelp   = makeCommand("help")
	cmdCreate = makeCommand("create", "create_reminder")
	cmdOnce   = makeCommand("once")
	cmdList   = makeCommand("list", "list_reminder")
	cmdDelete = makeCommand("delete", "delete_reminder")
)
