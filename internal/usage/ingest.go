package usage

import (
	"sort"
	"strings"

	"github.com/klytics/licensekit/internal/source"
	"github.com/klytics/licensekit/internal/taxonomy"
)

// Drop reasons reported in IngestStats.
const (
	DropMissingUser   = "missing_user"
	DropExcludedUser  = "excluded_user"
	DropDuplicateUser = "duplicate_user"
	DropUnknownUser   = "unknown_user"
	DropNoiseCategory = "noise_category"
	DropNoiseAction   = "noise_action"
	DropInvalidTime   = "invalid_time"
	DropNotContent    = "not_content"
	DropMissingPath   = "missing_path"
)

// IngestStats counts what happened to the rows of one table.
type IngestStats struct {
	Table   string         `json:"table"`
	Rows    int            `json:"rows"`
	Kept    int            `json:"kept"`
	Dropped map[string]int `json:"dropped,omitempty"`
}

func newStats(name string, rows int) IngestStats {
	return IngestStats{Table: name, Rows: rows, Dropped: map[string]int{}}
}

func (s *IngestStats) drop(reason string) { s.Dropped[reason]++ }

// DroppedTotal sums all drop reasons.
func (s IngestStats) DroppedTotal() int {
	n := 0
	for _, v := range s.Dropped {
		n += v
	}
	return n
}

// Ingestor turns raw rows into typed tables, applying the taxonomy's noise
// filters before anything is classified.
type Ingestor struct {
	tax *taxonomy.Taxonomy
	// ContentColumn is the action-log column identifying opened content.
	ContentColumn string
	// HRUpdatedColumn is the directory's last-modified column. Default last_updated.
	HRUpdatedColumn string
}

// NewIngestor returns an Ingestor for tax.
func NewIngestor(tax *taxonomy.Taxonomy, contentColumn string) *Ingestor {
	return &Ingestor{tax: tax, ContentColumn: contentColumn}
}

// Users builds the candidate user set. Rows without a username or for
// excluded accounts are dropped; when a username repeats, the row with the
// latest login wins so every user appears once.
func (in *Ingestor) Users(rows source.Rows) ([]UserRecord, IngestStats) {
	st := newStats("users", len(rows))
	index := make(map[string]int, len(rows))
	var users []UserRecord

	for _, r := range rows {
		name := strings.TrimSpace(r[ColUserName])
		if name == "" {
			st.drop(DropMissingUser)
			continue
		}
		if in.tax.IsExcludedUser(name) {
			st.drop(DropExcludedUser)
			continue
		}
		last, _ := source.ParseTime(r[ColLastLogin])
		u := UserRecord{
			UserID:    strings.TrimSpace(r[ColUserID]),
			UserName:  name,
			Email:     strings.TrimSpace(r[ColEmail]),
			LastLogin: last,
		}
		if i, ok := index[name]; ok {
			st.drop(DropDuplicateUser)
			if u.LastLogin.After(users[i].LastLogin) {
				users[i] = u
			}
			continue
		}
		index[name] = len(users)
		users = append(users, u)
	}
	st.Kept = len(users)
	return users, st
}

// Actions builds the retained action events for the given candidate users.
// Noise categories and actions, excluded accounts, users outside the
// candidate set and rows with an unparseable logged_time are dropped.
func (in *Ingestor) Actions(rows source.Rows, users []UserRecord) ([]ActionEvent, IngestStats) {
	st := newStats("actions", len(rows))
	known := make(map[string]struct{}, len(users))
	for _, u := range users {
		known[u.UserName] = struct{}{}
	}

	var events []ActionEvent
	for _, r := range rows {
		name := strings.TrimSpace(r[ColUserName])
		category := strings.TrimSpace(r[ColCategory])
		action := strings.TrimSpace(r[ColAction])
		switch {
		case name == "":
			st.drop(DropMissingUser)
			continue
		case in.tax.IsExcludedUser(name):
			st.drop(DropExcludedUser)
			continue
		case in.tax.IsNoiseCategory(category):
			st.drop(DropNoiseCategory)
			continue
		case in.tax.IsNoiseAction(action):
			st.drop(DropNoiseAction)
			continue
		}
		if _, ok := known[name]; !ok {
			st.drop(DropUnknownUser)
			continue
		}
		logged, ok := source.ParseTime(r[ColLoggedTime])
		if !ok {
			st.drop(DropInvalidTime)
			continue
		}
		success, _ := source.ParseBool(r[ColSuccess])
		events = append(events, ActionEvent{
			UserName:   name,
			Category:   category,
			Action:     action,
			LoggedTime: logged,
			Success:    success,
		})
	}
	st.Kept = len(events)
	return events, st
}

// ContentLoads keeps the action rows that open a piece of library content.
// These rows are fetched separately because the library categories are
// noise for classification purposes.
func (in *Ingestor) ContentLoads(rows source.Rows) ([]ActionEvent, IngestStats) {
	st := newStats("content", len(rows))
	var events []ActionEvent
	for _, r := range rows {
		name := strings.TrimSpace(r[ColUserName])
		category := strings.TrimSpace(r[ColCategory])
		action := strings.TrimSpace(r[ColAction])
		path := strings.TrimSpace(r[in.ContentColumn])
		switch {
		case name != "" && in.tax.IsExcludedUser(name):
			st.drop(DropExcludedUser)
			continue
		case !in.tax.IsContentLoad(category, action):
			st.drop(DropNotContent)
			continue
		case path == "":
			st.drop(DropMissingPath)
			continue
		}
		logged, _ := source.ParseTime(r[ColLoggedTime])
		success, _ := source.ParseBool(r[ColSuccess])
		events = append(events, ActionEvent{
			UserName:    name,
			Category:    category,
			Action:      action,
			LoggedTime:  logged,
			Success:     success,
			ContentPath: path,
		})
	}
	st.Kept = len(events)
	return events, st
}

// Logins builds login events. Channel, success and active-user restrictions
// are applied later by the platform classifier.
func (in *Ingestor) Logins(rows source.Rows) ([]LoginEvent, IngestStats) {
	st := newStats("logins", len(rows))
	var events []LoginEvent
	for _, r := range rows {
		name := strings.TrimSpace(r[ColUserName])
		if name == "" {
			st.drop(DropMissingUser)
			continue
		}
		if in.tax.IsExcludedUser(name) {
			st.drop(DropExcludedUser)
			continue
		}
		logged, _ := source.ParseTime(r[ColLoggedTime])
		success, _ := source.ParseBool(r[ColSuccess])
		events = append(events, LoginEvent{
			UserName:       name,
			SourceCategory: strings.TrimSpace(r[ColCategory]),
			MachineAddress: strings.TrimSpace(r[ColMachine]),
			LoggedTime:     logged,
			Success:        success,
		})
	}
	st.Kept = len(events)
	return events, st
}

// HR builds directory records in source order. De-duplication is the
// identity resolver's job.
func (in *Ingestor) HR(rows source.Rows) ([]HRRecord, IngestStats) {
	st := newStats("hr", len(rows))
	records := make([]HRRecord, 0, len(rows))
	updatedCol := HRUpdatedColumn(in.HRUpdatedColumn)
	for i, r := range rows {
		updated, _ := source.ParseTime(r[updatedCol])
		records = append(records, HRRecord{
			SMTP:           strings.TrimSpace(r[ColSMTP]),
			NTID:           strings.TrimSpace(r[ColNTID]),
			CostCenterName: strings.TrimSpace(r[ColCostCenter]),
			DeptName:       strings.TrimSpace(r[ColDept]),
			Title:          strings.TrimSpace(r[ColTitle]),
			UpdatedAt:      updated,
			Seq:            i,
		})
	}
	st.Kept = len(records)
	return records, st
}

// HRUpdatedColumn returns the directory column holding the last-modified
// time: name, or last_updated when name is empty.
func HRUpdatedColumn(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return ColLastUpdated
}

// Reasons returns the drop reasons of st in sorted order, for stable logs.
func (s IngestStats) Reasons() []string {
	out := make([]string, 0, len(s.Dropped))
	for k := range s.Dropped {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
