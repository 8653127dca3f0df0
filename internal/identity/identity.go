// Package identity reconciles platform usernames with HR directory records.
//
// Users are matched first on email against the directory's SMTP address and,
// failing that, on their normalized username against the directory's NT ID.
// A user matching neither is dropped from every report.
package identity

import (
	"sort"
	"strings"

	"github.com/klytics/licensekit/internal/usage"
)

// Stage identifies which key space resolved a user.
type Stage string

const (
	StageEmail Stage = "email"
	StageNTID  Stage = "nt_id"
)

// Match is a resolved user with its directory record attached.
type Match struct {
	User  usage.UserRecord `json:"user"`
	HR    usage.HRRecord   `json:"hr"`
	Stage Stage            `json:"stage"`
}

// Result is the outcome of one resolution pass.
type Result struct {
	// Matches are in candidate user order.
	Matches []Match `json:"matches"`

	ByEmail      int      `json:"matched_email"`
	ByNTID       int      `json:"matched_nt_id"`
	Dropped      int      `json:"dropped_no_match"`
	DroppedUsers []string `json:"dropped_users,omitempty"`
	// HRDuplicates counts directory rows discarded by de-duplication.
	HRDuplicates int `json:"hr_duplicates"`
}

// Active returns the set of resolved usernames.
func (r *Result) Active() map[string]struct{} {
	out := make(map[string]struct{}, len(r.Matches))
	for _, m := range r.Matches {
		out[m.User.UserName] = struct{}{}
	}
	return out
}

// ByUser indexes matches by platform username.
func (r *Result) ByUser() map[string]Match {
	out := make(map[string]Match, len(r.Matches))
	for _, m := range r.Matches {
		out[m.User.UserName] = m
	}
	return out
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUserName strips a DOMAIN\ prefix, then lower-cases and trims.
func NormalizeUserName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// supersedes reports whether a should replace b as the record for a key.
// The most recently updated record wins; when update times are equal or
// unknown, the record appearing later in the source wins.
func supersedes(a, b usage.HRRecord) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.Seq > b.Seq
}

// Dedupe returns one directory record per normalized NT ID, sorted by NT ID.
// Records without an NT ID cannot collide and are appended in source order.
// The second return value is the number of records discarded.
func Dedupe(records []usage.HRRecord) ([]usage.HRRecord, int) {
	byKey := make(map[string]usage.HRRecord, len(records))
	var keyless []usage.HRRecord
	discarded := 0
	for _, r := range records {
		key := NormalizeUserName(r.NTID)
		if key == "" {
			keyless = append(keyless, r)
			continue
		}
		cur, ok := byKey[key]
		if !ok {
			byKey[key] = r
			continue
		}
		discarded++
		if supersedes(r, cur) {
			byKey[key] = r
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]usage.HRRecord, 0, len(keys)+len(keyless))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return append(out, keyless...), discarded
}

// Resolver matches users to directory records.
type Resolver struct {
	bySMTP map[string]usage.HRRecord
	byNTID map[string]usage.HRRecord
	dups   int
}

// NewResolver de-duplicates records and builds both key indexes.
func NewResolver(records []usage.HRRecord) *Resolver {
	deduped, dups := Dedupe(records)
	r := &Resolver{
		bySMTP: make(map[string]usage.HRRecord, len(deduped)),
		byNTID: make(map[string]usage.HRRecord, len(deduped)),
		dups:   dups,
	}
	for _, rec := range deduped {
		if k := NormalizeUserName(rec.NTID); k != "" {
			r.byNTID[k] = rec
		}
		if k := NormalizeEmail(rec.SMTP); k != "" {
			if cur, ok := r.bySMTP[k]; !ok || supersedes(rec, cur) {
				r.bySMTP[k] = rec
			}
		}
	}
	return r
}

// Lookup resolves a single user. ok is false when neither key matches.
func (r *Resolver) Lookup(u usage.UserRecord) (Match, bool) {
	if k := NormalizeEmail(u.Email); k != "" {
		if rec, ok := r.bySMTP[k]; ok {
			return Match{User: u, HR: rec, Stage: StageEmail}, true
		}
	}
	if k := NormalizeUserName(u.UserName); k != "" {
		if rec, ok := r.byNTID[k]; ok {
			return Match{User: u, HR: rec, Stage: StageNTID}, true
		}
	}
	return Match{}, false
}

// Resolve runs both stages over users. Every user ends up either in exactly
// one stage's matches or in DroppedUsers.
func (r *Resolver) Resolve(users []usage.UserRecord) *Result {
	res := &Result{Matches: make([]Match, 0, len(users)), HRDuplicates: r.dups}
	for _, u := range users {
		m, ok := r.Lookup(u)
		if !ok {
			res.Dropped++
			res.DroppedUsers = append(res.DroppedUsers, u.UserName)
			continue
		}
		switch m.Stage {
		case StageEmail:
			res.ByEmail++
		case StageNTID:
			res.ByNTID++
		}
		res.Matches = append(res.Matches, m)
	}
	return res
}

// Resolve is a convenience wrapper around NewResolver(records).Resolve(users).
func Resolve(users []usage.UserRecord, records []usage.HRRecord) *Result {
	return NewResolver(records).Resolve(users)
}
