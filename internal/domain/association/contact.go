package association

import "errors"

// Role is the capability a contact holds inside the association.
type Role string

const (
	RolePresident   Role = "president"
	RoleTreasurer   Role = "treasurer"
	RoleBoardMember Role = "board_member"
	RoleManager     Role = "manager" // property manager, receives board mail
	RoleAttorney    Role = "attorney"
)

// boardRoles receive the digest and urgent board alerts.
var boardRoles = map[Role]bool{
	RolePresident:   true,
	RoleTreasurer:   true,
	RoleBoardMember: true,
	RoleManager:     true,
}

// IsBoard reports whether the role belongs on board mail.
func (r Role) IsBoard() bool { return boardRoles[r] }

// Contact represents a person the engine may write to on the association's behalf.
type Contact struct {
	ID       int64
	Name     string
	Email    string
	Role     Role
	IsActive bool
}

// ErrNoBoardRecipients is returned when no active board contact exists.
var ErrNoBoardRecipients = errors.New("no active board recipients configured")

// Recipients is the concrete recipient list resolved once per cycle.
type Recipients struct {
	Board    []Contact
	Attorney *Contact // nil when the association has no counsel on file
}

// BoardEmails returns the board addresses in resolution order.
func (r Recipients) BoardEmails() []string {
	out := make([]string, 0, len(r.Board))
	for _, c := range r.Board {
		out = append(out, c.Email)
	}
	return out
}

// Resolve turns the raw contact list into Recipients. Inactive contacts and
// contacts without email are ignored; the first active attorney wins.
func Resolve(contacts []*Contact) (Recipients, error) {
	var rec Recipients
	seen := make(map[string]bool)
	for _, c := range contacts {
		if c == nil || !c.IsActive || c.Email == "" {
			continue
		}
		switch {
		case c.Role.IsBoard():
			if seen[c.Email] {
				continue
			}
			seen[c.Email] = true
			rec.Board = append(rec.Board, *c)
		case c.Role == RoleAttorney && rec.Attorney == nil:
			attorney := *c
			rec.Attorney = &attorney
		}
	}
	if len(rec.Board) == 0 {
		return rec, ErrNoBoardRecipients
	}
	return rec, nil
}
