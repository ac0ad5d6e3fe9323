package users

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/roledash/roledash/internal/shared"
)

// Sortable field names, matching the JSON field names of User.
const (
	FieldID        = "id"
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
	FieldEmail     = "email"
	FieldRole      = "role"
	FieldStatus    = "status"
	FieldPhone     = "phone"
	FieldCity      = "city"
	FieldCompany   = "company"
	FieldWebsite   = "website"
	FieldCreatedAt = "createdAt"
	FieldLastLogin = "lastLogin"
)

var stringFields = map[string]func(User) string{
	FieldFirstName: func(u User) string { return u.FirstName },
	FieldLastName:  func(u User) string { return u.LastName },
	FieldEmail:     func(u User) string { return u.Email },
	FieldRole:      func(u User) string { return string(u.Role) },
	FieldStatus:    func(u User) string { return string(u.Status) },
	FieldPhone:     func(u User) string { return u.Phone },
	FieldCity:      func(u User) string { return u.City },
	FieldCompany:   func(u User) string { return u.Company },
	FieldWebsite:   func(u User) string { return u.Website },
}

// IsSortable reports whether field can be used in SortBy.
func IsSortable(field string) bool {
	switch field {
	case FieldID, FieldCreatedAt, FieldLastLogin:
		return true
	}
	_, ok := stringFields[field]
	return ok
}

// Query filters, sorts and pages records. It never modifies records;
// the returned page holds copies.
func Query(records []User, opts QueryOptions) Page {
	fold := cases.Fold()

	filtered := make([]User, 0, len(records))
	needle := fold.String(strings.TrimSpace(opts.Search))
	for _, u := range records {
		if needle != "" && !matchesSearch(fold, u, needle) {
			continue
		}
		if !matchesExact(string(u.Role), opts.Role) {
			continue
		}
		if !matchesExact(string(u.Status), opts.Status) {
			continue
		}
		if !matchesExact(u.City, opts.City) {
			continue
		}
		if !matchesExact(u.Company, opts.Company) {
			continue
		}
		filtered = append(filtered, u)
	}

	if opts.SortBy != nil && IsSortable(opts.SortBy.Field) {
		filtered = sortUsers(fold, filtered, *opts.SortBy)
	}

	p := shared.NewPagination(opts.Page, opts.PageSize, len(filtered))
	start, end := p.Bounds()
	data := make([]User, 0, end-start)
	for _, u := range filtered[start:end] {
		data = append(data, u.clone())
	}
	return Page{
		Data:       data,
		Total:      p.Total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
	}
}

func matchesSearch(fold cases.Caser, u User, needle string) bool {
	for _, field := range []string{u.FirstName, u.LastName, u.Email, u.City, u.Company} {
		if field != "" && strings.Contains(fold.String(field), needle) {
			return true
		}
	}
	return false
}

func matchesExact(value, filter string) bool {
	if filter == "" || filter == FilterAll {
		return true
	}
	return value == filter
}

// sortKey is precomputed per record so the comparator stays cheap.
type sortKey struct {
	user    User
	text    string
	instant time.Time
	number  int64
	numeric bool
	missing bool
}

func sortUsers(fold cases.Caser, records []User, by SortBy) []User {
	keys := make([]sortKey, len(records))
	for i, u := range records {
		keys[i] = buildKey(fold, u, by.Field)
	}

	desc := by.Order == SortDesc
	slices.SortStableFunc(keys, func(a, b sortKey) int {
		// Missing values go last whatever the direction.
		switch {
		case a.missing && b.missing:
			return 0
		case a.missing:
			return 1
		case b.missing:
			return -1
		}
		c := compareKeys(a, b)
		if desc {
			return -c
		}
		return c
	})

	out := make([]User, len(keys))
	for i, k := range keys {
		out[i] = k.user
	}
	return out
}

func buildKey(fold cases.Caser, u User, field string) sortKey {
	k := sortKey{user: u}
	switch field {
	case FieldCreatedAt:
		k.instant = u.CreatedAt
		k.missing = u.CreatedAt.IsZero()
	case FieldLastLogin:
		if u.LastLogin == nil || u.LastLogin.IsZero() {
			k.missing = true
		} else {
			k.instant = *u.LastLogin
		}
	case FieldID:
		k.text = fold.String(u.ID)
		k.missing = u.ID == ""
		if n, err := strconv.ParseInt(u.ID, 10, 64); err == nil {
			k.number, k.numeric = n, true
		}
	default:
		v := stringFields[field](u)
		k.text = fold.String(v)
		k.missing = v == ""
	}
	return k
}

func compareKeys(a, b sortKey) int {
	if !a.instant.IsZero() || !b.instant.IsZero() {
		return a.instant.Compare(b.instant)
	}
	// Numeric ids sort before the rest so the order stays total.
	switch {
	case a.numeric && b.numeric:
		return cmp.Compare(a.number, b.number)
	case a.numeric:
		return -1
	case b.numeric:
		return 1
	}
	return strings.Compare(a.text, b.text)
}

// distinct returns the sorted set of non-empty values picked from records.
func distinct(records []User, pick func(User) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, u := range records {
		v := pick(u)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
