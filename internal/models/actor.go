package models

// Actor is the authenticated identity supplied by the auth collaborator.
// The core trusts it and only enforces ownership and role checks.
type Actor struct {
	UserID string
	Role   string
}

// Known roles
const (
	RoleUser    = "user"
	RoleFinance = "finance"
	RoleFactory = "factory"
)

// CanManageOrders reports whether the actor may perform privileged
// order mutations (status changes, line item edits, delivery assignment)
func (a Actor) CanManageOrders() bool {
	return a.Role == RoleFinance || a.Role == RoleFactory
}
