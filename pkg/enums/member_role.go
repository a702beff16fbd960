package enums

import "fmt"

// MemberRole is the caller's role carried in the access token.
type MemberRole string

const (
	// MemberRoleOwner may move money for its own business.
	MemberRoleOwner MemberRole = "owner"
	// MemberRoleStaff may read its business wallet and start collections.
	MemberRoleStaff MemberRole = "staff"
	// MemberRoleOperator is platform support; it may read any business.
	MemberRoleOperator MemberRole = "operator"
)

var validMemberRoles = []MemberRole{
	MemberRoleOwner,
	MemberRoleStaff,
	MemberRoleOperator,
}

func (m MemberRole) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MemberRole.
func (m MemberRole) IsValid() bool {
	for _, candidate := range validMemberRoles {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMemberRole converts raw input into a MemberRole.
func ParseMemberRole(value string) (MemberRole, error) {
	for _, candidate := range validMemberRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member role %q", value)
}
