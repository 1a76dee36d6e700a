package domain

// Role defines the application-level role assigned to an account.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// IsValid reports whether the role is one of the known application roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember:
		return true
	}
	return false
}

// Account represents an application profile record. AccountID equals the id
// of exactly one identity at the external provider; that 1:1 relationship is
// established by the signup saga, not by the store.
type Account struct {
	AccountID string `bson:"account_id" json:"account_id"`
	Username  string `bson:"username" json:"username"`
	Email     string `bson:"email" json:"email"`
	Role      Role   `bson:"role" json:"role"`
}
