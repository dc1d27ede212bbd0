package httpapi

import (
	"time"

	"condo_collections/internal/app"
	"condo_collections/internal/domain/delinquency"
	"condo_collections/internal/domain/notification"
	"condo_collections/internal/infra/scheduler"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type StatusResponse struct {
	Scheduler   scheduler.Status      `json:"scheduler"`
	LatestCycle *delinquency.CycleRun `json:"latest_cycle"`
}

type RunResponse struct {
	Summary *app.CycleSummary `json:"summary"`
}

type UnitDTO struct {
	ID             string `json:"id"`
	Number         string `json:"number"`
	OwnerName      string `json:"owner_name"`
	Status         string `json:"status"`
	TotalOwed      string `json:"total_owed"`
	MonthlyCharge  string `json:"monthly_charge"`
	DaysDelinquent *int   `json:"days_delinquent,omitempty"` // absent when the ledger data is inconsistent
	HasContact     bool   `json:"has_contact"`
}

type ChargeDTO struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	DueDate     string `json:"due_date"`
}

type NoticeDTO struct {
	Tier    string    `json:"tier"`
	Period  string    `json:"period"`
	Outcome string    `json:"outcome"`
	SentAt  time.Time `json:"sent_at"`
}

type UnitEscalationsResponse struct {
	Unit    UnitDTO                       `json:"unit"`
	Charges []ChargeDTO                   `json:"charges"`
	Events  []delinquency.EscalationEvent `json:"events"`
	Notices []NoticeDTO                   `json:"notices"`
}

func toUnitDTO(s *delinquency.UnitFinancialSnapshot) UnitDTO {
	dto := UnitDTO{
		ID:            s.UnitID,
		Number:        s.UnitNumber,
		OwnerName:     s.OwnerName,
		Status:        string(s.CurrentStatus),
		TotalOwed:     s.TotalOwed.StringFixed(2),
		MonthlyCharge: s.MonthlyCharge.StringFixed(2),
		HasContact:    s.HasContact(),
	}
	if days, _, err := delinquency.Classify(*s); err == nil {
		dto.DaysDelinquent = &days
	}
	return dto
}

func toChargeDTOs(lines []delinquency.ChargeLine) []ChargeDTO {
	out := make([]ChargeDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, ChargeDTO{
			Description: l.Description,
			Amount:      l.Amount.StringFixed(2),
			DueDate:     l.DueDate.Format("2006-01-02"),
		})
	}
	return out
}

func toNoticeDTOs(records []*notification.Record) []NoticeDTO {
	out := make([]NoticeDTO, 0, len(records))
	for _, r := range records {
		out = append(out, NoticeDTO{
			Tier:    string(r.Tier),
			Period:  r.Period,
			Outcome: string(r.Outcome),
			SentAt:  r.SentAt,
		})
	}
	return out
}
