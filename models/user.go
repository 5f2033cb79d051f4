package models

// UserRole is carried in the JWT issued by the identity service.
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleOrganizer UserRole = "organizer"
	RolePlayer    UserRole = "player"
)

// CanAdminister reports whether the role may run admin-only bracket operations.
func (r UserRole) CanAdminister() bool {
	return r == RoleAdmin || r == RoleOrganizer
}
