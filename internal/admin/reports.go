package admin

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/klytics/licensekit/internal/identity"
	"github.com/klytics/licensekit/internal/taxonomy"
	"github.com/klytics/licensekit/internal/usage"
)

// ActionStat is one row of the top analyst actions report.
type ActionStat struct {
	Action      string `json:"log_action"`
	Category    string `json:"log_category"`
	TotalUses   int    `json:"total_uses"`
	UniqueUsers int    `json:"unique_users"`
}

// ContentStat is one row of the most-viewed content report.
type ContentStat struct {
	Path  string `json:"report_path"`
	Loads int    `json:"total_loads"`
}

// UserPlatform is one row of the per-user platform report.
type UserPlatform struct {
	UserName       string         `json:"user_name"`
	Email          string         `json:"email"`
	Platform       usage.Platform `json:"platform"`
	Logins         int            `json:"login_count"`
	CostCenterName string         `json:"cost_center_name"`
	DeptName       string         `json:"dept_name"`
	Title          string         `json:"title"`
	TitleCategory  string         `json:"title_category"`
}

// PlatformTotal is one row of the platform summary.
type PlatformTotal struct {
	Platform usage.Platform `json:"platform"`
	Logins   int            `json:"login_count"`
}

// UserReport is one row of the user-level license report.
type UserReport struct {
	UserUtilization
	LastActivity   string `json:"last_activity"`
	CostCenterName string `json:"cost_center_name"`
	DeptName       string `json:"dept_name"`
	Title          string `json:"title"`
	TitleCategory  string `json:"title_category"`
}

// TopActions groups analyst events by (action, category), ordered by total
// uses descending, then action and category ascending.
func TopActions(events []usage.ActionEvent) []ActionStat {
	type key struct{ action, category string }
	groups := lo.GroupBy(lo.Filter(events, func(e usage.ActionEvent, _ int) bool { return e.IsAnalyst }),
		func(e usage.ActionEvent) key { return key{e.Action, e.Category} })

	out := make([]ActionStat, 0, len(groups))
	for k, evs := range groups {
		out = append(out, ActionStat{
			Action:      k.action,
			Category:    k.category,
			TotalUses:   len(evs),
			UniqueUsers: len(lo.UniqBy(evs, func(e usage.ActionEvent) string { return e.UserName })),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalUses != b.TotalUses {
			return a.TotalUses > b.TotalUses
		}
		if a.Action != b.Action {
			return a.Action < b.Action
		}
		return a.Category < b.Category
	})
	return out
}

// MostViewed counts content loads per path, ordered by loads descending then
// path ascending.
func MostViewed(loads []usage.ActionEvent) []ContentStat {
	counts := lo.CountValuesBy(loads, func(e usage.ActionEvent) string { return e.ContentPath })
	out := make([]ContentStat, 0, len(counts))
	for path, n := range counts {
		out = append(out, ContentStat{Path: path, Loads: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Loads != out[j].Loads {
			return out[i].Loads > out[j].Loads
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// PlatformByUser counts classified logins per (user, platform) and attaches
// the user's email and directory attributes. Logins of users absent from res
// are skipped. Rows are ordered by username then platform.
func PlatformByUser(logins []usage.LoginEvent, res *identity.Result, tax *taxonomy.Taxonomy) []UserPlatform {
	type key struct {
		user     string
		platform usage.Platform
	}
	matches := res.ByUser()
	counts := make(map[key]int)
	for _, l := range logins {
		if _, ok := matches[l.UserName]; !ok {
			continue
		}
		counts[key{l.UserName, l.Platform}]++
	}

	out := make([]UserPlatform, 0, len(counts))
	for k, n := range counts {
		m := matches[k.user]
		out = append(out, UserPlatform{
			UserName:       k.user,
			Email:          m.User.Email,
			Platform:       k.platform,
			Logins:         n,
			CostCenterName: m.HR.CostCenterName,
			DeptName:       m.HR.DeptName,
			Title:          m.HR.Title,
			TitleCategory:  tax.TitleCategory(m.HR.Title),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserName != out[j].UserName {
			return out[i].UserName < out[j].UserName
		}
		return out[i].Platform < out[j].Platform
	})
	return out
}

// PlatformSummary totals logins per platform, ordered by logins descending
// then platform name.
func PlatformSummary(rows []UserPlatform) []PlatformTotal {
	totals := make(map[usage.Platform]int)
	for _, r := range rows {
		totals[r.Platform] += r.Logins
	}
	out := make([]PlatformTotal, 0, len(totals))
	for p, n := range totals {
		out = append(out, PlatformTotal{Platform: p, Logins: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Logins != out[j].Logins {
			return out[i].Logins > out[j].Logins
		}
		return out[i].Platform < out[j].Platform
	})
	return out
}

// ActivityLayout is the display format of LAST_ACTIVITY.
const ActivityLayout = time.DateTime

// UserReports joins utilization with resolution. Users dropped by the
// resolver are absent. Rows are ordered by last activity, most recent
// first, then username.
func UserReports(util []UserUtilization, res *identity.Result, tax *taxonomy.Taxonomy, loc *time.Location) []UserReport {
	if loc == nil {
		loc = time.UTC
	}
	matches := res.ByUser()
	var out []UserReport
	for _, u := range util {
		m, ok := matches[u.UserName]
		if !ok {
			continue
		}
		r := UserReport{
			UserUtilization: u,
			CostCenterName:  m.HR.CostCenterName,
			DeptName:        m.HR.DeptName,
			Title:           m.HR.Title,
			TitleCategory:   tax.TitleCategory(m.HR.Title),
		}
		if !u.LastLogin.IsZero() {
			r.LastActivity = u.LastLogin.In(loc).Format(ActivityLayout)
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.LastLogin.Equal(b.LastLogin) {
			return a.LastLogin.After(b.LastLogin)
		}
		return strings.Compare(a.UserName, b.UserName) < 0
	})
	return out
}
