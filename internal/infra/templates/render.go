package templates

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"condo_collections/internal/domain/notification"
)

// OwnerNoticeData is the payload of the 30/60/90 day owner notices.
type OwnerNoticeData struct {
	AssociationName string
	OwnerName       string
	UnitNumber      string
	AmountOwed      string
	MonthlyCharge   string
	DaysDelinquent  int
}

// ChargeView is one line of an attorney referral balance breakdown.
type ChargeView struct {
	DueDate     string
	Description string
	Amount      string
}

// HistoryView is one contact history line.
type HistoryView struct {
	Date    string
	Tier    string
	Outcome string
}

// TransitionView is one escalation history line.
type TransitionView struct {
	Date   string
	From   string
	To     string
	Amount string
}

// ReferralData is the payload of the attorney referral package.
type ReferralData struct {
	AssociationName string
	UnitNumber      string
	OwnerName       string
	ContactEmail    string
	AmountOwed      string
	DaysDelinquent  int
	Charges         []ChargeView
	History         []HistoryView
	Escalations     []TransitionView
}

// DigestUnit is a unit line in the board digest.
type DigestUnit struct {
	UnitNumber     string
	From           string
	To             string
	AmountOwed     string
	DaysDelinquent int
	Tier           string
	Status         string
}

// DigestFailure is a failed delivery or an unprocessed unit in the digest.
type DigestFailure struct {
	UnitNumber string
	Kind       string
	Tier       string
	Recipient  string
	Attempts   int
	Stage      string
	Error      string
}

// DigestData is the payload of the per-cycle board digest.
type DigestData struct {
	AssociationName    string
	CycleID            string
	RunDate            string
	DelinquentUnits    int
	UnitsNeedingAction int
	Escalations        []DigestUnit
	Referrals          []DigestUnit
	Recoveries         []DigestUnit
	Unreachable        []DigestUnit
	FailedDeliveries   []DigestFailure
	UnitErrors         []DigestFailure
}

// IsEmpty reports whether the digest has nothing worth sending.
func (d DigestData) IsEmpty() bool {
	return len(d.Escalations) == 0 && len(d.Referrals) == 0 && len(d.Recoveries) == 0 &&
		len(d.Unreachable) == 0 && len(d.FailedDeliveries) == 0 && len(d.UnitErrors) == 0
}

// AlertData is the payload of an immediate board alert.
type AlertData struct {
	AssociationName string
	Subject         string
	Message         string
	Error           string
}

// Rendered is a rendered subject with plain-text and HTML bodies.
type Rendered struct {
	Subject string
	Body    string
	HTML    string
}

// Message addresses the rendered content to a recipient.
func (r Rendered) Message(recipient string) notification.Message {
	return notification.Message{Recipient: recipient, Subject: r.Subject, Body: r.Body, HTMLBody: r.HTML}
}

// Renderer executes catalogue templates.
type Renderer struct {
	catalog  *Catalog
	printer  *message.Printer
	currency currency.Unit
	markdown goldmark.Markdown
}

// NewRenderer returns a renderer formatting amounts in US dollars.
func NewRenderer(c *Catalog) *Renderer {
	return &Renderer{
		catalog:  c,
		printer:  message.NewPrinter(language.AmericanEnglish),
		currency: currency.USD,
		markdown: goldmark.New(),
	}
}

// Money formats an amount for humans, e.g. "$ 1,200.00".
func (r *Renderer) Money(d decimal.Decimal) string {
	return r.printer.Sprint(currency.Symbol(r.currency.Amount(d.Round(2).InexactFloat64())))
}

// OwnerNotice renders the owner notice for tier.
func (r *Renderer) OwnerNotice(tier notification.NoticeTier, data OwnerNoticeData) (Rendered, error) {
	p, ok := r.catalog.owner[tier]
	if !ok {
		return Rendered{}, fmt.Errorf("no owner notice template for tier %q", tier)
	}
	return r.render(p, data)
}

// AttorneyReferral renders the referral package.
func (r *Renderer) AttorneyReferral(data ReferralData) (Rendered, error) {
	return r.render(r.catalog.referral, data)
}

// BoardDigest renders the per-cycle digest.
func (r *Renderer) BoardDigest(data DigestData) (Rendered, error) {
	return r.render(r.catalog.digest, data)
}

// BoardAlert renders an urgent board alert.
func (r *Renderer) BoardAlert(data AlertData) (Rendered, error) {
	return r.render(r.catalog.alert, data)
}

func (r *Renderer) render(p pair, data any) (Rendered, error) {
	subject, err := execute(p.subject, data)
	if err != nil {
		return Rendered{}, err
	}
	body, err := execute(p.body, data)
	if err != nil {
		return Rendered{}, err
	}

	var html bytes.Buffer
	if err := r.markdown.Convert([]byte(body), &html); err != nil {
		return Rendered{}, fmt.Errorf("failed to render %s as HTML: %w", p.body.Name(), err)
	}

	return Rendered{
		Subject: strings.Join(strings.Fields(subject), " "), // headers are single-line
		Body:    body,
		HTML:    html.String(),
	}, nil
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
