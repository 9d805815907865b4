package domain

import dErrors "lifebank/pkg/domain-errors"

// Role is the closed set of caller roles. Capability checks use the CanX
// helpers rather than comparing raw strings at call sites.
type Role string

const (
	RoleMember Role = "member"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

var validRoles = map[Role]bool{
	RoleMember: true,
	RoleStaff:  true,
	RoleAdmin:  true,
}

// ParseRole constructs a Role from external input (JWT claims).
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role: "+s)
	}
	return r, nil
}

func (r Role) IsValid() bool { return validRoles[r] }

func (r Role) String() string { return string(r) }

// CanManageInventory covers unit intake, removal, and allocation triggers.
func (r Role) CanManageInventory() bool {
	return r == RoleStaff || r == RoleAdmin
}

// CanTransitionRequests covers status changes and deletes of any request.
func (r Role) CanTransitionRequests() bool {
	return r == RoleStaff || r == RoleAdmin
}

// CanCreateMatches covers donor outreach match creation.
func (r Role) CanCreateMatches() bool {
	return r == RoleStaff || r == RoleAdmin
}

// SeesAllRequests reports whether list queries are unfiltered. Members see
// only their own requests.
func (r Role) SeesAllRequests() bool {
	return r == RoleStaff || r == RoleAdmin
}
