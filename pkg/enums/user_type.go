package enums

import "fmt"

// UserType distinguishes the kinds of accounts that can hold a balance.
type UserType string

const (
	UserTypeMember  UserType = "member"
	UserTypeOrgan   UserType = "organ"
	UserTypeVoucher UserType = "voucher"
	UserTypeAdmin   UserType = "admin"
)

var validUserTypes = []UserType{
	UserTypeMember,
	UserTypeOrgan,
	UserTypeVoucher,
	UserTypeAdmin,
}

// String implements fmt.Stringer.
func (t UserType) String() string {
	return string(t)
}

// IsValid reports whether the user type is recognized.
func (t UserType) IsValid() bool {
	for _, candidate := range validUserTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseUserType converts a raw string into a UserType.
func ParseUserType(value string) (UserType, error) {
	for _, candidate := range validUserTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user type %q", value)
}
