package admin

import (
	"strconv"
	"strings"

	"github.com/klytics/licensekit/internal/formats/table"
)

// Output keys, without extension.
const (
	KeyUsers       = "analyst-functions-users"
	KeyTopActions  = "analyst-functions-top-actions"
	KeyContent     = "most-viewed-content"
	KeyPlatforms   = "platform-logins"
	KeyPlatformSum = "platform-summary"
)

// UsersTable renders the user-level report.
func UsersTable(rows []UserReport) *table.Table {
	t := table.New(KeyUsers,
		"USER_NAME", "USER_EMAIL", "LAST_ACTIVITY",
		"ANALYST_FUNCTIONS", "NON_ANALYST_FUNCTIONS",
		"ANALYST_PCT", "ANALYST_USER_FLAG", "ANALYST_THRESHOLD",
		"ANALYST_ACTIONS_PER_DAY", "ACTIVE_DAYS",
		"cost_center_name", "dept_name", "title", "TITLE_CATEGORY",
	)
	for _, r := range rows {
		t.Append(
			r.UserName, r.Email, r.LastActivity,
			strconv.Itoa(r.AnalystCount), strconv.Itoa(r.NonAnalystCount),
			decimalString(r.AnalystPct), strconv.FormatBool(r.Flag), number(r.Threshold),
			decimalString(r.ActionsPerDay), strconv.Itoa(r.ActiveDays),
			r.CostCenterName, r.DeptName, r.Title, r.TitleCategory,
		)
	}
	return t
}

// TopActionsTable renders the top analyst actions report.
func TopActionsTable(rows []ActionStat) *table.Table {
	t := table.New(KeyTopActions, "LOG_ACTION", "LOG_CATEGORY", "TOTAL_USES", "UNIQUE_USERS")
	for _, r := range rows {
		t.Append(r.Action, r.Category, strconv.Itoa(r.TotalUses), strconv.Itoa(r.UniqueUsers))
	}
	return t
}

// ContentTable renders the most-viewed content report.
func ContentTable(rows []ContentStat) *table.Table {
	t := table.New(KeyContent, "report_path", "total_loads")
	for _, r := range rows {
		t.Append(r.Path, strconv.Itoa(r.Loads))
	}
	return t
}

// PlatformsTable renders the per-user platform report.
func PlatformsTable(rows []UserPlatform) *table.Table {
	t := table.New(KeyPlatforms,
		"USER_NAME", "USER_EMAIL", "platform", "LOGIN_COUNT",
		"cost_center_name", "dept_name", "title", "TITLE_CATEGORY",
	)
	for _, r := range rows {
		t.Append(r.UserName, r.Email, string(r.Platform), strconv.Itoa(r.Logins),
			r.CostCenterName, r.DeptName, r.Title, r.TitleCategory)
	}
	return t
}

// PlatformSummaryTable renders the per-platform totals.
func PlatformSummaryTable(rows []PlatformTotal) *table.Table {
	t := table.New(KeyPlatformSum, "platform", "LOGIN_COUNT")
	for _, r := range rows {
		t.Append(string(r.Platform), strconv.Itoa(r.Logins))
	}
	return t
}

// number formats v with the fewest digits needed.
func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// decimalString formats v like number but always with a fractional part,
// so rates and percentages read as decimals in spreadsheet tools.
func decimalString(v float64) string {
	s := number(v)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
