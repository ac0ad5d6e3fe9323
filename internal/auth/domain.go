package auth

// Account is a demo identity a visitor can act as by choosing its role.
type Account struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// DashboardPath returns the landing route for role.
func DashboardPath(role string) string {
	switch role {
	case "admin", "manager", "viewer":
		return "/" + role + "/dashboard"
	default:
		return "/login"
	}
}

// DemoAccounts lists the selectable identities, one per role.
func DemoAccounts() []Account {
	return []Account{
		{ID: "1", Name: "Admin User", Email: "admin@example.com", Role: "admin"},
		{ID: "2", Name: "Manager Smith", Email: "manager@example.com", Role: "manager"},
		{ID: "3", Name: "John Doe", Email: "viewer@example.com", Role: "viewer"},
	}
}
