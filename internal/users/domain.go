package users

import "time"

// Role enumerates the access levels a user account can hold.
type Role string

// Known roles. RoleUser only appears in legacy seed data.
const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleViewer  Role = "viewer"
	RoleUser    Role = "user"
)

// Roles lists the assignable roles in display order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleViewer}
}

// Label returns the display name of the role.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Administrator"
	case RoleManager:
		return "Manager"
	case RoleViewer:
		return "Viewer"
	case RoleUser:
		return "User"
	default:
		return string(r)
	}
}

// Status is the activation state of an account.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// FilterAll disables a role, status, city or company filter.
const FilterAll = "all"

// Pagination defaults.
const (
	DefaultPageSize = 10
)

// PageSizeOptions lists the page sizes offered to the UI.
var PageSizeOptions = []int{5, 10, 25, 50, 100}

// User represents a user account held in the directory cache.
type User struct {
	ID        string     `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	Status    Status     `json:"status"`
	Phone     string     `json:"phone"`
	City      string     `json:"city"`
	Company   string     `json:"company"`
	Website   string     `json:"website"`
	Avatar    string     `json:"avatar"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "" && u.LastName == "":
		return "Unknown User"
	case u.LastName == "":
		return u.FirstName
	case u.FirstName == "":
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}

// clone returns a copy that shares no mutable state with u.
func (u User) clone() User {
	if u.LastLogin != nil {
		at := *u.LastLogin
		u.LastLogin = &at
	}
	return u
}

// NewUser carries the fields accepted when creating an account.
type NewUser struct {
	FirstName string
	LastName  string
	Email     string
	Role      Role
	Status    Status
	Phone     string
	City      string
	Company   string
	Website   string
	Avatar    string
}

// Patch carries the fields of a partial update. Nil fields are left untouched.
type Patch struct {
	FirstName *string
	LastName  *string
	Email     *string
	Role      *Role
	Status    *Status
	Phone     *string
	City      *string
	Company   *string
	Website   *string
	Avatar    *string
}

// apply merges the patch over u. ID and CreatedAt are never touched.
func (p Patch) apply(u User) User {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Status != nil {
		u.Status = *p.Status
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.City != nil {
		u.City = *p.City
	}
	if p.Company != nil {
		u.Company = *p.Company
	}
	if p.Website != nil {
		u.Website = *p.Website
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	return u
}

// SortOrder is the direction of a sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortBy names the field and direction used to order query results.
type SortBy struct {
	Field string
	Order SortOrder
}

// QueryOptions describes a filtered, sorted and paged view of the directory.
type QueryOptions struct {
	Search   string
	Role     string
	Status   string
	City     string
	Company  string
	SortBy   *SortBy
	Page     int
	PageSize int
}

// Page is one page of query results.
type Page struct {
	Data       []User `json:"data"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalPages int    `json:"totalPages"`
}

// DeleteFailure reports an id a batch delete could not remove locally.
type DeleteFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchDeleteResult summarises a successful batch delete.
type BatchDeleteResult struct {
	Deleted []string        `json:"deleted"`
	Errors  []DeleteFailure `json:"errors"`
}

// Export is a rendered CSV export.
type Export struct {
	Data     string
	Filename string
}

// Stats aggregates directory counters for the dashboards.
type Stats struct {
	TotalUsers        int          `json:"totalUsers"`
	ActiveUsers       int          `json:"activeUsers"`
	InactiveUsers     int          `json:"inactiveUsers"`
	ByRole            map[Role]int `json:"byRole"`
	NewUsersThisMonth int          `json:"newUsersThisMonth"`
	UserGrowth        float64      `json:"userGrowth"`
}
