package auth

import (
	"fmt"
	"strings"
)

// Role is one of the fixed organizational roles. Values outside the
// constants below never leave ParseRole.
type Role string

const (
	RoleVolunteer        Role = "volunteer"
	RoleMentor           Role = "mentor"
	RoleGeneralSecretary Role = "general_secretary"
)

// Roles lists every valid role.
var Roles = []Role{RoleVolunteer, RoleMentor, RoleGeneralSecretary}

// ParseRole maps a stored or token role string onto a Role.
// "gen_sec" is accepted for rows written by the old backend.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "volunteer":
		return RoleVolunteer, nil
	case "mentor":
		return RoleMentor, nil
	case "general_secretary", "gen_sec", "secretary":
		return RoleGeneralSecretary, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// ProfileTable is the side table holding the role-specific profile row.
func (r Role) ProfileTable() string {
	switch r {
	case RoleVolunteer:
		return "volunteers"
	case RoleMentor:
		return "mentors"
	case RoleGeneralSecretary:
		return "general_secretaries"
	}
	return ""
}

// CanMarkAttendance reports whether the role may mark bulk attendance.
func (r Role) CanMarkAttendance() bool { return r == RoleMentor }

// CanModifyHours reports whether the role may correct awarded hours.
func (r Role) CanModifyHours() bool {
	return r == RoleMentor || r == RoleGeneralSecretary
}

// CanManageContent covers events, galleries and donation campaigns.
func (r Role) CanManageContent() bool {
	return r == RoleMentor || r == RoleGeneralSecretary
}

// CanManageUsers reports whether the role may create accounts.
func (r Role) CanManageUsers() bool { return r == RoleGeneralSecretary }

func (r Role) String() string { return string(r) }
