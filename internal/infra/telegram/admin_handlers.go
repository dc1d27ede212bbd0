package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"condo_collections/internal/app"
	"condo_collections/internal/infra/scheduler"
)

const unauthorizedText = "Error: you are not allowed to run this command."

// Collections is the scheduler surface exposed to the operator.
type Collections interface {
	Trigger(ctx context.Context) (*app.CycleSummary, error)
	Status() scheduler.Status
}

// AdminHandlers serves the operator commands. Only adminTelegramID may use them.
type AdminHandlers struct {
	ctx             context.Context
	collections     Collections
	adminTelegramID int64
	logger          *logrus.Entry

	confirm *telebot.ReplyMarkup
	btnRun  telebot.Btn
	btnStop telebot.Btn
}

func NewAdminHandlers(ctx context.Context, collections Collections, adminTelegramID int64, baseLogger *logrus.Entry) *AdminHandlers {
	markup := &telebot.ReplyMarkup{}
	btnRun := markup.Data("Run now", "run_collections_confirm")
	btnStop := markup.Data("Cancel", "run_collections_cancel")
	markup.Inline(markup.Row(btnRun, btnStop))

	return &AdminHandlers{
		ctx:             ctx,
		collections:     collections,
		adminTelegramID: adminTelegramID,
		logger:          baseLogger,
		confirm:         markup,
		btnRun:          btnRun,
		btnStop:         btnStop,
	}
}

// Register wires the commands and buttons into the bot.
func (h *AdminHandlers) Register(b *telebot.Bot) {
	b.Handle("/start", h.HandleStart)
	b.Handle("/help", h.HandleHelp)
	b.Handle("/run_collections", h.HandleRunCollections)
	b.Handle("/collections_status", h.HandleStatus)
	b.Handle(&h.btnRun, h.HandleRunConfirm)
	b.Handle(&h.btnStop, h.HandleRunCancel)
}

// handlerLogger tags the entry with the sender when the update has one;
// channel posts do not.
func (h *AdminHandlers) handlerLogger(c telebot.Context, handler string) *logrus.Entry {
	log := h.logger.WithField("handler", handler)
	if sender := c.Sender(); sender != nil {
		log = log.WithField("sender_id", sender.ID)
	}
	return log
}

func (h *AdminHandlers) isAdmin(c telebot.Context) bool {
	return h.adminTelegramID != 0 && c.Sender() != nil && c.Sender().ID == h.adminTelegramID
}

func (h *AdminHandlers) HandleStart(c telebot.Context) error {
	log := h.handlerLogger(c, "/start")
	log.Info("Command received")
	if h.isAdmin(c) {
		return c.Send(fmt.Sprintf("Hello %s! The collections engine is ready. Use /help for the list of commands.", c.Sender().FirstName))
	}
	return c.Send("This bot posts the association's collections alerts. It takes no commands from you.")
}

func (h *AdminHandlers) HandleHelp(c telebot.Context) error {
	log := h.handlerLogger(c, "/help")
	log.Info("Command received")
	if !h.isAdmin(c) {
		return c.Send("No commands are available to you.")
	}

	var helpText strings.Builder
	helpText.WriteString("Operator commands:\n\n")
	helpText.WriteString("/run_collections - run a collections cycle now (asks for confirmation)\n")
	helpText.WriteString("/collections_status - show whether a cycle is running and the last result\n")
	helpText.WriteString("/help - show this message")
	return c.Send(helpText.String())
}

func (h *AdminHandlers) HandleRunCollections(c telebot.Context) error {
	log := h.handlerLogger(c, "/run_collections")
	log.Info("Command received")
	if !h.isAdmin(c) {
		log.Warn("Unauthorized access attempt")
		return c.Send(unauthorizedText)
	}
	if h.collections.Status().State == scheduler.StateRunning {
		return c.Send("A collections cycle is already running. Try again once it has finished.")
	}
	return c.Send("Run a collections cycle now? Owner notices, board alerts and referrals will go out.", h.confirm)
}

func (h *AdminHandlers) HandleRunConfirm(c telebot.Context) error {
	log := h.handlerLogger(c, "run_confirm")
	if !h.isAdmin(c) {
		log.Warn("Unauthorized access attempt")
		return c.Respond(&telebot.CallbackResponse{Text: unauthorizedText})
	}
	if err := c.Respond(&telebot.CallbackResponse{Text: "Collections cycle started"}); err != nil {
		log.WithError(err).Warn("Failed to acknowledge callback")
	}

	summary, err := h.collections.Trigger(h.ctx)
	if err != nil {
		if errors.Is(err, scheduler.ErrCycleAlreadyRunning) {
			log.Info("Manual trigger rejected, cycle already running")
			return c.Send("A collections cycle is already running. Try again once it has finished.")
		}
		log.WithError(err).Error("Manual collections cycle failed")
		return c.Send(fmt.Sprintf("The collections cycle failed: %s", err.Error()))
	}
	log.WithField("cycle_id", summary.CycleID).Info("Manual collections cycle completed")
	return c.Send(formatSummary(summary))
}

func (h *AdminHandlers) HandleRunCancel(c telebot.Context) error {
	if err := c.Respond(&telebot.CallbackResponse{Text: "Cancelled"}); err != nil {
		return err
	}
	return c.Send("Nothing was run.")
}

func (h *AdminHandlers) HandleStatus(c telebot.Context) error {
	log := h.handlerLogger(c, "/collections_status")
	log.Info("Command received")
	if !h.isAdmin(c) {
		log.Warn("Unauthorized access attempt")
		return c.Send(unauthorizedText)
	}
	return c.Send(formatStatus(h.collections.Status()))
}

func formatSummary(s *app.CycleSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cycle %s finished (%s).\n", s.CycleID, s.Outcome)
	fmt.Fprintf(&b, "Delinquent units: %d\n", s.DelinquentUnitCount)
	fmt.Fprintf(&b, "Units needing action: %d\n", s.UnitsNeedingAction)
	fmt.Fprintf(&b, "State changes: %d\n", len(s.Events))

	failed := 0
	for _, d := range s.Dispatches {
		if d.Failed() {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(&b, "Failed deliveries: %d\n", failed)
	}
	if len(s.UnitFailures) > 0 {
		fmt.Fprintf(&b, "Units not processed: %d\n", len(s.UnitFailures))
	}
	if s.DigestSent {
		b.WriteString("Board digest sent.")
	} else {
		b.WriteString("Nothing new for the board digest.")
	}
	return b.String()
}

func formatStatus(st scheduler.Status) string {
	var b strings.Builder
	if st.State == scheduler.StateRunning && st.RunningSince != nil {
		fmt.Fprintf(&b, "A %s cycle is running since %s.\n", st.CurrentTrigger, st.RunningSince.Format(time.RFC822))
	} else {
		b.WriteString("No cycle is running.\n")
	}
	if st.NextRun != nil {
		fmt.Fprintf(&b, "Next scheduled run: %s\n", st.NextRun.Format(time.RFC822))
	}
	if st.LastSummary != nil {
		b.WriteString("\nLast run:\n")
		b.WriteString(formatSummary(st.LastSummary))
	}
	if st.LastError != "" {
		fmt.Fprintf(&b, "\nLast error: %s", st.LastError)
	}
	return strings.TrimRight(b.String(), "\n")
}
