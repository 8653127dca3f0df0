package identity

import (
	"fmt"
	"testing"
	"time"

	"github.com/klytics/licensekit/internal/usage"
)

func TestResolveByEmail(t *testing.T) {
	hr := []usage.HRRecord{{SMTP: "a@x.com", NTID: "auser", Title: "Engineer"}}
	users := []usage.UserRecord{{UserName: "AUSER", Email: "a@x.com"}}

	res := Resolve(users, hr)
	if res.ByEmail != 1 || res.ByNTID != 0 || res.Dropped != 0 {
		t.Fatalf("unexpected counters %+v", res)
	}
	if res.Matches[0].Stage != StageEmail {
		t.Errorf("expected email stage, got %s", res.Matches[0].Stage)
	}
	if res.Matches[0].HR.Title != "Engineer" {
		t.Error("HR attributes should be attached")
	}
}

func TestResolveFallsBackToNTID(t *testing.T) {
	hr := []usage.HRRecord{{SMTP: "a@x.com", NTID: "auser"}}
	users := []usage.UserRecord{{UserName: "AUSER"}}

	res := Resolve(users, hr)
	if res.ByEmail != 0 || res.ByNTID != 1 {
		t.Fatalf("unexpected counters %+v", res)
	}
	if res.Matches[0].Stage != StageNTID {
		t.Errorf("expected nt_id stage, got %s", res.Matches[0].Stage)
	}
}

func TestResolveNormalizesKeys(t *testing.T) {
	hr := []usage.HRRecord{
		{SMTP: "Bob@Example.com ", NTID: "bsmith"},
		{SMTP: "c@x.com", NTID: " CJones"},
	}
	users := []usage.UserRecord{
		{UserName: "bob", Email: "  BOB@example.COM"},
		{UserName: `CORP\cjones`, Email: "unknown@x.com"},
	}
	res := Resolve(users, hr)
	if res.ByEmail != 1 || res.ByNTID != 1 || res.Dropped != 0 {
		t.Errorf("unexpected counters %+v", res)
	}
}

func TestResolveDropsUnmatched(t *testing.T) {
	hr := []usage.HRRecord{{SMTP: "a@x.com", NTID: "auser"}}
	users := []usage.UserRecord{
		{UserName: "auser", Email: "a@x.com"},
		{UserName: "ghost", Email: "ghost@x.com"},
		{UserName: "", Email: ""},
	}
	res := Resolve(users, hr)
	if res.Dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", res.Dropped)
	}
	if len(res.Matches) != 1 {
		t.Errorf("expected 1 match, got %d", len(res.Matches))
	}
	if res.DroppedUsers[0] != "ghost" {
		t.Errorf("unexpected dropped users %v", res.DroppedUsers)
	}
}

func TestStagesAreDisjoint(t *testing.T) {
	var hr []usage.HRRecord
	var users []usage.UserRecord
	for i := 0; i < 30; i++ {
		hr = append(hr, usage.HRRecord{SMTP: fmt.Sprintf("u%d@x.com", i), NTID: fmt.Sprintf("u%d", i)})
		u := usage.UserRecord{UserName: fmt.Sprintf(`DOM\U%d`, i)}
		switch i % 3 {
		case 0:
			u.Email = fmt.Sprintf("U%d@x.com", i)
		case 1:
			u.Email = "nobody@x.com"
		case 2:
			u.UserName = fmt.Sprintf("stranger%d", i)
		}
		users = append(users, u)
	}

	res := Resolve(users, hr)
	seen := map[string]Stage{}
	for _, m := range res.Matches {
		if prev, ok := seen[m.User.UserName]; ok {
			t.Fatalf("%s matched twice (%s, %s)", m.User.UserName, prev, m.Stage)
		}
		seen[m.User.UserName] = m.Stage
	}
	if res.Dropped != len(users)-res.ByEmail-res.ByNTID {
		t.Errorf("dropped %d != %d - %d - %d", res.Dropped, len(users), res.ByEmail, res.ByNTID)
	}
	if res.ByEmail != 10 || res.ByNTID != 10 || res.Dropped != 10 {
		t.Errorf("unexpected counters %+v", res)
	}
}

func TestDedupePrecedence(t *testing.T) {
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	records := []usage.HRRecord{
		{NTID: "auser", Title: "newest", UpdatedAt: feb, Seq: 0},
		{NTID: "AUSER", Title: "older", UpdatedAt: jan, Seq: 1},
		{NTID: "buser", Title: "first", Seq: 2},
		{NTID: "buser", Title: "second", Seq: 3},
		{NTID: "", Title: "keyless", Seq: 4},
	}
	out, dups := Dedupe(records)
	if dups != 2 {
		t.Errorf("expected 2 duplicates, got %d", dups)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 records, got %d", len(out))
	}
	if out[0].Title != "newest" {
		t.Errorf("most recently updated record should win, got %q", out[0].Title)
	}
	if out[1].Title != "second" {
		t.Errorf("later record should win a tie, got %q", out[1].Title)
	}
	if out[2].Title != "keyless" {
		t.Errorf("keyless records should follow, got %q", out[2].Title)
	}
}

func TestNormalizeUserName(t *testing.T) {
	tests := map[string]string{
		`CORP\JDoe`: "jdoe",
		" jdoe ":    "jdoe",
		`A\B\carol`: "carol",
		"":          "",
		`DOMAIN\`:   "",
	}
	for in, want := range tests {
		if got := NormalizeUserName(in); got != want {
			t.Errorf("NormalizeUserName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveEmptyInputs(t *testing.T) {
	res := Resolve(nil, nil)
	if len(res.Matches) != 0 || res.Dropped != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	res = Resolve([]usage.UserRecord{{UserName: "a", Email: "a@x.com"}}, nil)
	if res.Dropped != 1 {
		t.Errorf("expected user dropped with empty directory, got %+v", res)
	}
	if len(res.Active()) != 0 {
		t.Error("no user should be active")
	}
}
