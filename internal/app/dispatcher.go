package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"condo_collections/internal/domain/association"
	"condo_collections/internal/domain/delinquency"
	"condo_collections/internal/domain/notification"
	"condo_collections/internal/infra/metrics"
	"condo_collections/internal/infra/retry"
	"condo_collections/internal/infra/templates"
)

var errNoAttorney = errors.New("no active attorney contact on file")

// UnitWork is one unit's input to the dispatcher.
type UnitWork struct {
	Snapshot       delinquency.UnitFinancialSnapshot
	DaysDelinquent int
	State          delinquency.LifecycleState
	Event          *delinquency.EscalationEvent // nil for re-notify work
	Actions        delinquency.ActionSet
	CycleTime      time.Time // fixes the billing period for every unit of the cycle
}

// BoardChat is an optional second channel for board mail, e.g. a Telegram chat.
type BoardChat struct {
	Transport notification.Transport
	ChatID    string
}

// DispatcherConfig carries the knobs of the Dispatcher.
type DispatcherConfig struct {
	AssociationName string
	Location        *time.Location
	Retry           retry.Policy
	Timeout         time.Duration // per transport call
}

// Dispatcher turns ActionSets into deliveries. Owner notices and attorney
// referrals are guarded by the idempotency ledger; board mail is not.
type Dispatcher struct {
	cfg       DispatcherConfig
	records   notification.Repository
	ledger    delinquency.LedgerStore
	events    delinquency.EventRepository
	mail      notification.Transport
	boardChat *BoardChat
	renderer  *templates.Renderer
	metrics   metrics.Recorder
	logger    *logrus.Entry
	now       func() time.Time
}

func NewDispatcher(
	cfg DispatcherConfig,
	records notification.Repository,
	ledger delinquency.LedgerStore,
	events delinquency.EventRepository,
	mail notification.Transport,
	boardChat *BoardChat,
	renderer *templates.Renderer,
	rec metrics.Recorder,
	logger *logrus.Entry,
) *Dispatcher {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Dispatcher{
		cfg:       cfg,
		records:   records,
		ledger:    ledger,
		events:    events,
		mail:      mail,
		boardChat: boardChat,
		renderer:  renderer,
		metrics:   rec,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch performs the unit's actions in order: owner notice, board alert,
// attorney referral.
func (d *Dispatcher) Dispatch(ctx context.Context, w UnitWork, rcpt association.Recipients) []notification.DispatchResult {
	var results []notification.DispatchResult
	at := w.CycleTime
	if at.IsZero() {
		at = d.now()
	}
	period := notification.PeriodFor(at, d.cfg.Location)
	log := d.logger.WithFields(logrus.Fields{"unit_id": w.Snapshot.UnitID, "period": period})

	if w.Actions.HasOwnerNotice() {
		results = append(results, d.ownerNotice(ctx, w, period, log))
	}
	if w.Actions.BoardAlert && w.Event != nil {
		results = append(results, d.escalationAlert(ctx, w, rcpt)...)
	}
	if w.Actions.AttorneyReferral {
		results = append(results, d.attorneyReferral(ctx, w, period, rcpt, log)...)
	}
	return results
}

func (d *Dispatcher) ownerNotice(ctx context.Context, w UnitWork, period string, log *logrus.Entry) notification.DispatchResult {
	snap := w.Snapshot
	tier := w.Actions.OwnerNotice
	log = log.WithField("tier", tier)
	res := notification.DispatchResult{
		UnitID:    snap.UnitID,
		Kind:      notification.KindOwnerNotice,
		Tier:      tier,
		Recipient: snap.ContactEmail,
	}

	sent, err := d.records.HasRecord(ctx, snap.UnitID, tier, period)
	if err != nil {
		log.WithError(err).Error("Idempotency check failed, notice not sent")
		return d.finish(res, notification.StatusFailed, fmt.Errorf("idempotency check: %w", err))
	}
	if sent {
		log.Info("Owner notice already sent for this period. Skipping")
		return d.finish(res, notification.StatusAlreadySent, nil)
	}

	if !snap.HasContact() {
		log.Warn("No contact email on file, owner notice suppressed")
		if err := d.writeRecord(ctx, snap.UnitID, tier, period, notification.OutcomeNoContact); err != nil {
			return d.finish(res, notification.StatusFailed, err)
		}
		return d.finish(res, notification.StatusNoContact, nil)
	}

	rendered, err := d.renderer.OwnerNotice(tier, templates.OwnerNoticeData{
		AssociationName: d.cfg.AssociationName,
		OwnerName:       snap.OwnerName,
		UnitNumber:      snap.UnitNumber,
		AmountOwed:      d.renderer.Money(snap.TotalOwed),
		MonthlyCharge:   d.renderer.Money(snap.MonthlyCharge),
		DaysDelinquent:  w.DaysDelinquent,
	})
	if err != nil {
		log.WithError(err).Error("Failed to render owner notice")
		return d.finish(res, notification.StatusFailed, err)
	}

	res.Attempts, err = d.send(ctx, d.mail, res.Kind, rendered.Message(snap.ContactEmail), log)
	if err != nil {
		log.WithError(err).Error("Owner notice delivery failed")
		return d.finish(res, notification.StatusFailed, err)
	}
	if err := d.writeRecord(ctx, snap.UnitID, tier, period, notification.OutcomeSent); err != nil {
		log.WithError(err).Error("Owner notice sent but not recorded")
		return d.finish(res, notification.StatusFailed, fmt.Errorf("sent but not recorded: %w", err))
	}
	log.Info("Owner notice sent")
	return d.finish(res, notification.StatusSent, nil)
}

func (d *Dispatcher) escalationAlert(ctx context.Context, w UnitWork, rcpt association.Recipients) []notification.DispatchResult {
	ev := w.Event
	results := d.AlertBoard(ctx, rcpt, templates.AlertData{
		AssociationName: d.cfg.AssociationName,
		Subject:         fmt.Sprintf("unit %s moved to %s", w.Snapshot.UnitNumber, ev.NewState),
		Message: fmt.Sprintf("Unit %s (%s) moved from %s to %s. Amount owed: %s, approximately %d days delinquent.",
			w.Snapshot.UnitNumber, w.Snapshot.OwnerName, ev.PreviousState, ev.NewState,
			d.renderer.Money(ev.AmountOwed), ev.DaysDelinquent),
	})
	for i := range results {
		results[i].UnitID = w.Snapshot.UnitID
	}
	return results
}

func (d *Dispatcher) attorneyReferral(ctx context.Context, w UnitWork, period string, rcpt association.Recipients, log *logrus.Entry) []notification.DispatchResult {
	snap := w.Snapshot
	tier := notification.TierAttorneyReferral
	log = log.WithField("tier", tier)
	res := notification.DispatchResult{UnitID: snap.UnitID, Kind: notification.KindAttorneyReferral, Tier: tier}

	sent, err := d.records.HasRecord(ctx, snap.UnitID, tier, period)
	if err != nil {
		log.WithError(err).Error("Idempotency check failed, referral not sent")
		return d.referralFailed(ctx, w, rcpt, res, fmt.Errorf("idempotency check: %w", err))
	}
	if sent {
		log.Info("Attorney referral already sent for this period. Skipping")
		return []notification.DispatchResult{d.finish(res, notification.StatusAlreadySent, nil)}
	}

	if rcpt.Attorney == nil {
		log.Error("Attorney referral required but no attorney is on file")
		return d.referralFailed(ctx, w, rcpt, res, errNoAttorney)
	}
	res.Recipient = rcpt.Attorney.Email

	data, err := d.referralData(ctx, w)
	if err != nil {
		log.WithError(err).Error("Failed to assemble referral package")
		return d.referralFailed(ctx, w, rcpt, res, err)
	}
	rendered, err := d.renderer.AttorneyReferral(data)
	if err != nil {
		log.WithError(err).Error("Failed to render referral package")
		return d.referralFailed(ctx, w, rcpt, res, err)
	}

	res.Attempts, err = d.send(ctx, d.mail, res.Kind, rendered.Message(rcpt.Attorney.Email), log)
	if err != nil {
		log.WithError(err).Error("Attorney referral delivery failed")
		return d.referralFailed(ctx, w, rcpt, res, err)
	}
	if err := d.writeRecord(ctx, snap.UnitID, tier, period, notification.OutcomeSent); err != nil {
		log.WithError(err).Error("Attorney referral sent but not recorded")
		return d.referralFailed(ctx, w, rcpt, res, fmt.Errorf("sent but not recorded: %w", err))
	}
	log.WithField("attorney", rcpt.Attorney.Email).Info("Attorney referral sent")
	return []notification.DispatchResult{d.finish(res, notification.StatusSent, nil)}
}

// referralFailed records the failed referral and raises an urgent board alert.
func (d *Dispatcher) referralFailed(ctx context.Context, w UnitWork, rcpt association.Recipients, res notification.DispatchResult, cause error) []notification.DispatchResult {
	results := []notification.DispatchResult{d.finish(res, notification.StatusFailed, cause)}
	alerts := d.AlertBoard(ctx, rcpt, templates.AlertData{
		AssociationName: d.cfg.AssociationName,
		Subject:         fmt.Sprintf("attorney referral for unit %s failed", w.Snapshot.UnitNumber),
		Message: fmt.Sprintf("Unit %s (%s) owes %s and requires referral to the association's attorney, but the referral could not be sent.",
			w.Snapshot.UnitNumber, w.Snapshot.OwnerName, d.renderer.Money(w.Snapshot.TotalOwed)),
		Error: cause.Error(),
	})
	for i := range alerts {
		alerts[i].UnitID = w.Snapshot.UnitID
	}
	return append(results, alerts...)
}

func (d *Dispatcher) referralData(ctx context.Context, w UnitWork) (templates.ReferralData, error) {
	snap := w.Snapshot
	data := templates.ReferralData{
		AssociationName: d.cfg.AssociationName,
		UnitNumber:      snap.UnitNumber,
		OwnerName:       snap.OwnerName,
		ContactEmail:    snap.ContactEmail,
		AmountOwed:      d.renderer.Money(snap.TotalOwed),
		DaysDelinquent:  w.DaysDelinquent,
	}

	charges, err := d.ledger.GetBalanceBreakdown(ctx, snap.UnitID)
	if err != nil {
		return data, fmt.Errorf("balance breakdown: %w", err)
	}
	for _, c := range charges {
		data.Charges = append(data.Charges, templates.ChargeView{
			DueDate:     d.date(c.DueDate),
			Description: c.Description,
			Amount:      d.renderer.Money(c.Amount),
		})
	}

	records, err := d.records.ListRecordsForUnit(ctx, snap.UnitID)
	if err != nil {
		return data, fmt.Errorf("contact history: %w", err)
	}
	for _, r := range records {
		data.History = append(data.History, templates.HistoryView{
			Date:    d.date(r.SentAt),
			Tier:    string(r.Tier),
			Outcome: string(r.Outcome),
		})
	}

	events, err := d.events.ListEventsForUnit(ctx, snap.UnitID)
	if err != nil {
		return data, fmt.Errorf("escalation history: %w", err)
	}
	for _, ev := range events {
		data.Escalations = append(data.Escalations, templates.TransitionView{
			Date:   d.date(ev.CycleTimestamp),
			From:   string(ev.PreviousState),
			To:     string(ev.NewState),
			Amount: d.renderer.Money(ev.AmountOwed),
		})
	}
	return data, nil
}

// AlertBoard sends an immediate alert to every board member and the board
// chat. One recipient's failure does not stop the others.
func (d *Dispatcher) AlertBoard(ctx context.Context, rcpt association.Recipients, data templates.AlertData) []notification.DispatchResult {
	rendered, err := d.renderer.BoardAlert(data)
	if err != nil {
		d.logger.WithError(err).Error("Failed to render board alert")
		return []notification.DispatchResult{d.finish(notification.DispatchResult{Kind: notification.KindBoardAlert}, notification.StatusFailed, err)}
	}
	return d.toBoard(ctx, notification.KindBoardAlert, rendered, rcpt)
}

// DispatchBoardDigest sends the per-cycle digest. An empty digest is not sent.
func (d *Dispatcher) DispatchBoardDigest(ctx context.Context, data templates.DigestData, rcpt association.Recipients) []notification.DispatchResult {
	if data.IsEmpty() {
		d.logger.WithField("cycle_id", data.CycleID).Info("Board digest has nothing to report. Skipping")
		return nil
	}
	rendered, err := d.renderer.BoardDigest(data)
	if err != nil {
		d.logger.WithError(err).Error("Failed to render board digest")
		return []notification.DispatchResult{d.finish(notification.DispatchResult{Kind: notification.KindBoardDigest}, notification.StatusFailed, err)}
	}
	return d.toBoard(ctx, notification.KindBoardDigest, rendered, rcpt)
}

func (d *Dispatcher) toBoard(ctx context.Context, kind notification.DispatchKind, rendered templates.Rendered, rcpt association.Recipients) []notification.DispatchResult {
	var results []notification.DispatchResult
	for _, email := range rcpt.BoardEmails() {
		results = append(results, d.sendTo(ctx, d.mail, kind, rendered.Message(email)))
	}
	if d.boardChat != nil && d.boardChat.Transport != nil {
		results = append(results, d.sendTo(ctx, d.boardChat.Transport, kind, rendered.Message(d.boardChat.ChatID)))
	}
	return results
}

func (d *Dispatcher) sendTo(ctx context.Context, t notification.Transport, kind notification.DispatchKind, msg notification.Message) notification.DispatchResult {
	log := d.logger.WithFields(logrus.Fields{"kind": kind, "recipient": msg.Recipient})
	res := notification.DispatchResult{Kind: kind, Recipient: msg.Recipient}

	var err error
	res.Attempts, err = d.send(ctx, t, kind, msg, log)
	if err != nil {
		log.WithError(err).Error("Board delivery failed")
		return d.finish(res, notification.StatusFailed, err)
	}
	log.Info("Board message sent")
	return d.finish(res, notification.StatusSent, nil)
}

// send runs one delivery under the retry policy; each attempt gets its own
// timeout.
func (d *Dispatcher) send(ctx context.Context, t notification.Transport, kind notification.DispatchKind, msg notification.Message, log *logrus.Entry) (int, error) {
	p := d.cfg.Retry
	p.OnRetry = func(attempt int, err error) {
		d.metrics.IncDispatchRetry(string(kind))
		log.WithError(err).WithField("attempt", attempt).Warn("Delivery failed, retrying")
	}
	return retry.Do(ctx, p, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
		return t.Send(callCtx, msg)
	})
}

func (d *Dispatcher) writeRecord(ctx context.Context, unitID string, tier notification.NoticeTier, period string, outcome notification.RecordOutcome) error {
	err := d.records.WriteRecord(ctx, &notification.Record{
		UnitID:  unitID,
		Tier:    tier,
		Period:  period,
		Outcome: outcome,
		SentAt:  d.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to write notification record: %w", err)
	}
	return nil
}

func (d *Dispatcher) finish(res notification.DispatchResult, status notification.DispatchStatus, err error) notification.DispatchResult {
	res.Status = status
	res.At = d.now()
	if err != nil {
		res.Error = err.Error()
	}
	d.metrics.IncDispatchResult(string(res.Kind), string(status))
	return res
}

func (d *Dispatcher) date(t time.Time) string {
	return t.In(d.cfg.Location).Format("2006-01-02")
}
