package association

import "context"

// Repository defines the operations for reading association contacts.
type Repository interface {
	ListContacts(ctx context.Context) ([]*Contact, error)
}
