package users

import (
	"math"
	"time"
)

func computeStats(records []User, now time.Time) Stats {
	stats := Stats{
		TotalUsers: len(records),
		ByRole:     make(map[Role]int, len(Roles())),
	}
	for _, r := range Roles() {
		stats.ByRole[r] = 0
	}
	year, month, _ := now.UTC().Date()
	for _, u := range records {
		switch u.Status {
		case StatusActive:
			stats.ActiveUsers++
		case StatusInactive:
			stats.InactiveUsers++
		}
		stats.ByRole[u.Role]++
		y, m, _ := u.CreatedAt.UTC().Date()
		if y == year && m == month {
			stats.NewUsersThisMonth++
		}
	}
	if existing := stats.TotalUsers - stats.NewUsersThisMonth; existing > 0 {
		growth := float64(stats.NewUsersThisMonth) / float64(existing) * 100
		stats.UserGrowth = math.Round(growth*10) / 10
	}
	return stats
}
