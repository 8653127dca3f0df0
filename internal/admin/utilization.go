// Package admin rolls classified usage up into per-user license utilization
// and the secondary reports license administrators review.
package admin

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/klytics/licensekit/internal/usage"
)

// UserUtilization holds the analyst-usage metrics of one candidate user.
type UserUtilization struct {
	UserName  string    `json:"user_name"`
	Email     string    `json:"email"`
	LastLogin time.Time `json:"last_login"`

	AnalystCount    int     `json:"analyst_cnt"`
	NonAnalystCount int     `json:"non_analyst_cnt"`
	ActiveDays      int     `json:"active_days"`
	AnalystPct      float64 `json:"analyst_pct"`
	ActionsPerDay   float64 `json:"analyst_actions_per_day"`
	Flag            bool    `json:"analyst_user_flag"`
	Threshold       float64 `json:"analyst_threshold"`
}

// Total is the number of retained events for the user.
func (u UserUtilization) Total() int { return u.AnalystCount + u.NonAnalystCount }

// Totals summarises a utilization table.
type Totals struct {
	Users      int `json:"users"`
	Analyst    int `json:"analyst_events"`
	NonAnalyst int `json:"non_analyst_events"`
	Flagged    int `json:"flagged_users"`
	Idle       int `json:"idle_users"`
}

type tally struct {
	analyst, nonAnalyst int
	days                map[string]struct{}
}

// Utilization computes metrics for every user in users, in the same order.
// Users without events appear with zero metrics. Events are expected to be
// classified and restricted to the candidate users.
func Utilization(users []usage.UserRecord, events []usage.ActionEvent, threshold float64) []UserUtilization {
	byUser := make(map[string]*tally)
	for _, e := range events {
		t, ok := byUser[e.UserName]
		if !ok {
			t = &tally{days: make(map[string]struct{})}
			byUser[e.UserName] = t
		}
		if e.IsAnalyst {
			t.analyst++
		} else {
			t.nonAnalyst++
		}
		t.days[e.LoggedTime.UTC().Format(time.DateOnly)] = struct{}{}
	}

	return lo.Map(users, func(u usage.UserRecord, _ int) UserUtilization {
		out := UserUtilization{
			UserName:  u.UserName,
			Email:     u.Email,
			LastLogin: u.LastLogin,
			Threshold: threshold,
		}
		if t, ok := byUser[u.UserName]; ok {
			out.AnalystCount = t.analyst
			out.NonAnalystCount = t.nonAnalyst
			out.ActiveDays = len(t.days)
		}
		out.AnalystPct = Percent(out.AnalystCount, out.Total())
		out.ActionsPerDay = Rate(out.AnalystCount, out.ActiveDays)
		out.Flag = out.AnalystPct >= threshold
		return out
	})
}

// Percent returns 100*part/whole rounded half-to-even to 2 places, or 0 when
// whole is 0.
func Percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	v, _ := decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(whole))).
		RoundBank(2).
		Float64()
	return v
}

// Rate returns n/days rounded half-to-even to 4 places, or 0 when days is 0.
func Rate(n, days int) float64 {
	if days == 0 {
		return 0
	}
	v, _ := decimal.NewFromInt(int64(n)).
		Div(decimal.NewFromInt(int64(days))).
		RoundBank(4).
		Float64()
	return v
}

// Summarize totals a utilization table.
func Summarize(rows []UserUtilization) Totals {
	return Totals{
		Users:      len(rows),
		Analyst:    lo.SumBy(rows, func(u UserUtilization) int { return u.AnalystCount }),
		NonAnalyst: lo.SumBy(rows, func(u UserUtilization) int { return u.NonAnalystCount }),
		Flagged:    lo.CountBy(rows, func(u UserUtilization) bool { return u.Flag }),
		Idle:       lo.CountBy(rows, func(u UserUtilization) bool { return u.Total() == 0 }),
	}
}
