package actor

import "fmt"

// Role is the acting user's function in the shop. Every engine operation
// receives the caller's role explicitly; nothing reads it from ambient state.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleOffice   Role = "OFFICE"
	RoleDispatch Role = "DISPATCH"
	RoleTech     Role = "TECH"
	RoleAdmin    Role = "ADMIN"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer, RoleOffice, RoleDispatch, RoleTech, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role: %s", s)
	}
}

// Actor identifies who is performing an operation. For TECH actors, ID is
// the technician id and is matched against the request's assignment.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
