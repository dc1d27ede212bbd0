// internal/domain/notification/repository.go
package notification

import "context"

// Repository is the idempotency ledger consulted before every owner notice or
// attorney referral.
type Repository interface {
	HasRecord(ctx context.Context, unitID string, tier NoticeTier, period string) (bool, error)
	WriteRecord(ctx context.Context, rec *Record) error
	// ListRecordsForUnit returns the unit's contact history, oldest first.
	ListRecordsForUnit(ctx context.Context, unitID string) ([]*Record, error)
}

// Transport delivers a rendered message. Implementations must honor ctx
// cancellation; the dispatcher bounds every call with a timeout.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Message is a fully rendered notice. HTMLBody is optional.
type Message struct {
	Recipient string
	Subject   string
	Body      string
	HTMLBody  string
}
