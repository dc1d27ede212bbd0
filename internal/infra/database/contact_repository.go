package database

import (
	"context"
	"fmt"

	"condo_collections/internal/domain/association"
)

type ContactRepository struct {
	store *Store
}

func NewContactRepository(store *Store) *ContactRepository {
	return &ContactRepository{store: store}
}

// ListContacts returns every contact, active or not, in insertion order.
// Filtering by role and activity is association.Resolve's job.
func (r *ContactRepository) ListContacts(ctx context.Context) ([]*association.Contact, error) {
	query := `SELECT id, name, email, role, is_active FROM association_contacts ORDER BY id`
	rows, err := r.store.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying association contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]*association.Contact, 0)
	for rows.Next() {
		c := &association.Contact{}
		var role string
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &role, &c.IsActive); err != nil {
			return nil, fmt.Errorf("error scanning contact row: %w", err)
		}
		c.Role = association.Role(role)
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contact rows: %w", err)
	}
	return contacts, nil
}
