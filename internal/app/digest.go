package app

import (
	"condo_collections/internal/domain/notification"
	"condo_collections/internal/infra/templates"
)

// buildDigest assembles the board digest from the cycle's unit outcomes.
// Idempotent skips are left out so a re-run with nothing new stays empty.
func (s *CollectionService) buildDigest(summary *CycleSummary, outcomes []unitOutcome) templates.DigestData {
	r := s.dispatcher.renderer
	data := templates.DigestData{
		AssociationName:    s.dispatcher.cfg.AssociationName,
		CycleID:            summary.CycleID,
		RunDate:            summary.StartedAt.In(s.dispatcher.cfg.Location).Format("2006-01-02"),
		DelinquentUnits:    summary.DelinquentUnitCount,
		UnitsNeedingAction: summary.UnitsNeedingAction,
	}

	for _, o := range outcomes {
		number := o.snapshot.UnitNumber

		if ev := o.event; ev != nil {
			line := templates.DigestUnit{
				UnitNumber:     number,
				From:           string(ev.PreviousState),
				To:             string(ev.NewState),
				AmountOwed:     r.Money(ev.AmountOwed),
				DaysDelinquent: ev.DaysDelinquent,
			}
			switch {
			case ev.IsRecovery():
				data.Recoveries = append(data.Recoveries, line)
			case o.actions.BoardAlert:
				data.Escalations = append(data.Escalations, line)
			}
		}

		for _, d := range o.dispatches {
			switch {
			case d.Kind == notification.KindAttorneyReferral && d.Status != notification.StatusAlreadySent:
				data.Referrals = append(data.Referrals, templates.DigestUnit{
					UnitNumber: number,
					AmountOwed: r.Money(o.snapshot.TotalOwed),
					Status:     string(d.Status),
				})
			case d.Status == notification.StatusNoContact:
				data.Unreachable = append(data.Unreachable, templates.DigestUnit{
					UnitNumber: number,
					Tier:       string(d.Tier),
				})
			}
			if d.Failed() {
				data.FailedDeliveries = append(data.FailedDeliveries, templates.DigestFailure{
					UnitNumber: number,
					Kind:       string(d.Kind),
					Tier:       string(d.Tier),
					Recipient:  d.Recipient,
					Attempts:   d.Attempts,
					Error:      d.Error,
				})
			}
		}

		if f := o.failure; f != nil {
			data.UnitErrors = append(data.UnitErrors, templates.DigestFailure{
				UnitNumber: number,
				Stage:      f.Stage,
				Error:      f.Error,
			})
		}
	}
	return data
}
