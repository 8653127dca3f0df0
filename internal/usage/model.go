// Package usage defines the in-memory tables a run works on and the
// ingestor that builds them from raw data-source rows.
package usage

import "time"

// Column names as they appear in the analytics and HR datasets.
const (
	ColUserID    = "user_id"
	ColUserName  = "user_name"
	ColEmail     = "email"
	ColLastLogin = "last_login"

	ColCategory   = "log_category"
	ColAction     = "log_action"
	ColLoggedTime = "logged_time"
	ColSuccess    = "success"
	ColMachine    = "machine"

	ColSMTP        = "smtp"
	ColNTID        = "nt_id"
	ColCostCenter  = "cost_center_name"
	ColDept        = "dept_name"
	ColTitle       = "title"
	ColLastUpdated = "last_updated"
)

// UserRecord is a platform identity that logged in within the lookback window.
type UserRecord struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	// LastLogin is zero when the source value could not be parsed.
	LastLogin time.Time `json:"last_login"`
}

// ActionEvent is one row of the platform action log.
type ActionEvent struct {
	UserName    string    `json:"user_name"`
	Category    string    `json:"log_category"`
	Action      string    `json:"log_action"`
	LoggedTime  time.Time `json:"logged_time"`
	Success     bool      `json:"success"`
	ContentPath string    `json:"content_path,omitempty"`
	IsAnalyst   bool      `json:"is_analyst"`
}

// Platform is the client surface a login originated from.
type Platform string

const (
	PlatformWebPlayer    Platform = "Web Player"
	PlatformCloud        Platform = "Cloud"
	PlatformLocalDesktop Platform = "Local Desktop"
	PlatformOther        Platform = "Other"
)

// LoginEvent is an authentication row from the action log.
type LoginEvent struct {
	UserName       string    `json:"user_name"`
	SourceCategory string    `json:"source_category"`
	MachineAddress string    `json:"machine_address"`
	LoggedTime     time.Time `json:"logged_time"`
	Success        bool      `json:"success"`
	Platform       Platform  `json:"platform,omitempty"`
}

// HRRecord is one employee row from the HR directory.
type HRRecord struct {
	SMTP           string    `json:"smtp"`
	NTID           string    `json:"nt_id"`
	CostCenterName string    `json:"cost_center_name"`
	DeptName       string    `json:"dept_name"`
	Title          string    `json:"title"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
	// Seq is the record's position in the source result.
	Seq int `json:"-"`
}
