package rbac

type Role string
type Action string

const (
	RoleTenant Role = "tenant"
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead           Action = "read"
	ActionList           Action = "list"
	ActionManageListings Action = "manage_listings"
	ActionManagePlans    Action = "manage_plans"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleOwner:
		return action == ActionRead || action == ActionList || action == ActionManageListings
	case RoleTenant:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleTenant, RoleOwner, RoleAdmin:
		return Role(role)
	default:
		return RoleTenant
	}
}
