package telegram

import (
	"errors"
	"fmt"
	"html"
	"strings"

	tele "gopkg.in/telebot.v4"

	"veloxbot/internal/camera"
	"veloxbot/internal/subscriber"
	"veloxbot/internal/watch"
	logx "veloxbot/pkg/logx"
)

var menuCommands = []tele.Command{
	{Text: "start", Description: "Subscribe to speed camera updates"},
	{Text: "stop", Description: "Unsubscribe"},
	{Text: "notifynochange", Description: "Toggle notifications for no-change checks"},
	{Text: "list", Description: "Show currently known cameras"},
	{Text: "update", Description: "Run a check now"},
	{Text: "status", Description: "Show watcher status"},
}

func (a *Adapter) registerHandlers() {
	a.bot.Handle("/start", a.handleStart)
	a.bot.Handle("/stop", a.handleStop)
	a.bot.Handle("/notifynochange", a.handleToggle)
	a.bot.Handle("/list", a.handleList)
	a.bot.Handle("/update", a.handleUpdate)
	a.bot.Handle("/status", a.handleStatus)
}

func (a *Adapter) handleStart(c tele.Context) error {
	chatID := c.Chat().ID
	newly, err := a.cmds.Subscribe(a.ctx(), chatID)
	if err != nil {
		a.log.Error("subscribe failed", logx.Int64("chat_id", chatID), logx.Err(err))
		return c.Send("Something went wrong, please try again later.")
	}
	if !newly {
		return c.Send("Already subscribed.")
	}
	return c.Send("You're subscribed to speed camera updates.")
}

func (a *Adapter) handleStop(c tele.Context) error {
	chatID := c.Chat().ID
	removed, err := a.cmds.Unsubscribe(a.ctx(), chatID)
	if err != nil {
		a.log.Error("unsubscribe failed", logx.Int64("chat_id", chatID), logx.Err(err))
		return c.Send("Something went wrong, please try again later.")
	}
	if !removed {
		return c.Send("You're not subscribed.")
	}
	return c.Send("Unsubscribed. Send /start to subscribe again.")
}

func (a *Adapter) handleToggle(c tele.Context) error {
	chatID := c.Chat().ID
	enabled, err := a.cmds.ToggleNoChangeNotify(a.ctx(), chatID)
	if errors.Is(err, subscriber.ErrNotFound) {
		return c.Send("You're not subscribed yet. Send /start first.")
	}
	if err != nil {
		a.log.Error("toggle failed", logx.Int64("chat_id", chatID), logx.Err(err))
		return c.Send("Something went wrong, please try again later.")
	}
	if enabled {
		return c.Send("Enabled - you'll also hear about checks that found no changes.")
	}
	return c.Send("Disabled - no message when a check finds no changes.")
}

func (a *Adapter) handleList(c tele.Context) error {
	snap, err := a.cmds.KnownCameras(a.ctx())
	if err != nil {
		a.log.Error("list failed", logx.Err(err))
		return c.Send("Something went wrong, please try again later.")
	}
	return c.Send(formatList(snap), &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
}

func (a *Adapter) handleUpdate(c tele.Context) error {
	rep, err := a.cmds.TriggerManual(a.ctx())
	if errors.Is(err, watch.ErrCycleInFlight) {
		return c.Send("A check is already running, hold on.")
	}
	if err != nil {
		return c.Send("Check failed: " + err.Error())
	}
	return c.Send(fmt.Sprintf("Check finished: %d added, %d removed, %d unchanged.",
		rep.Added, rep.Removed, rep.Unchanged))
}

func (a *Adapter) handleStatus(c tele.Context) error {
	st, err := a.cmds.Status(a.ctx())
	if err != nil {
		a.log.Error("status failed", logx.Err(err))
		return c.Send("Something went wrong, please try again later.")
	}
	return c.Send(formatStatus(st))
}

func formatList(snap camera.Snapshot) string {
	if len(snap.Cameras) == 0 {
		return "No cameras known yet. Try /update to run a check."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Currently known cameras (%d):\n", len(snap.Cameras))
	for _, r := range snap.Cameras {
		label := html.EscapeString(r.Label)
		if r.HasCoord() {
			fmt.Fprintf(&b, "- <a href=\"https://www.google.com/maps/search/?api=1&query=%.6f%%2C%.6f\">%s</a>\n",
				r.Lat(), r.Lon(), label)
		} else {
			fmt.Fprintf(&b, "- %s\n", label)
		}
	}
	if !snap.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "\nLast updated: %s", snap.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStatus(st Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "State: %s\n", st.State)
	fmt.Fprintf(&b, "Subscribers: %d\n", st.Subscribers)
	fmt.Fprintf(&b, "Known cameras: %d\n", st.KnownCameras)
	if !st.SnapshotAt.IsZero() {
		fmt.Fprintf(&b, "Snapshot from: %s\n", st.SnapshotAt.Format("2006-01-02 15:04"))
	}
	if st.Last != nil {
		fmt.Fprintf(&b, "Last check (%s): %d added, %d removed, %d unchanged",
			st.Last.Trigger, st.Last.Added, st.Last.Removed, st.Last.Unchanged)
		if st.Last.Err != nil {
			fmt.Fprintf(&b, "\nLast check error: %s", st.Last.Err)
		}
	} else {
		b.WriteString("No checks run yet.")
	}
	return strings.TrimRight(b.String(), "\n")
}
