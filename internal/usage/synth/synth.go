// Package synth generates deterministic synthetic platform data for
// benchmarks, fixtures and load tests.
package synth

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/klytics/licensekit/internal/source"
	"github.com/klytics/licensekit/internal/usage"
)

// Options size a generated data set.
type Options struct {
	Seed          uint64
	Users         int
	EventsPerUser int
	// Now anchors generated timestamps; events fall in the 60 days before it.
	Now time.Time
	// HRCoverage is the fraction of users present in the HR directory. Default 0.9.
	HRCoverage float64
}

// Data is one generated snapshot.
type Data struct {
	Users   source.Rows
	Actions source.Rows
	HR      source.Rows
}

type action struct{ category, name string }

var (
	analystActions = []action{
		{"analysis_pro", "open"}, {"analysis_pro", "save"}, {"info_link", "run_query"},
		{"info_link", "get_data"}, {"datasource_pro", "create"}, {"datafunction_pro", "execute"},
		{"library_pro", "save_as"}, {"file_pro", "export"},
	}
	otherActions = []action{
		{"web_player", "open"}, {"web_player", "apply_bookmark"}, {"analysis_wp", "open"},
	}
	noiseActions = []action{
		{"auth_wp", "login"}, {"auth_pro", "login"}, {"library_as", "load_content"}, {"dblogging", "flush"},
	}
	titles = []string{
		"Data Scientist", "Process Engineer", "Yield Analyst", "Maintenance Technician",
		"Program Manager", "Software Engineer", "Operator",
	}
	machines = []string{"192.12.34.1", "10.20.1.5", "172.16.4.9", ""}
)

// Generate builds a data set. The same Options always produce the same rows.
func Generate(o Options) Data {
	if o.Now.IsZero() {
		o.Now = time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	}
	if o.HRCoverage == 0 {
		o.HRCoverage = 0.9
	}
	r := rand.New(rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15))
	stamp := func() string {
		return o.Now.Add(-time.Duration(r.Int64N(int64(60 * 24 * time.Hour)))).Format(time.DateTime)
	}

	var d Data
	for i := 0; i < o.Users; i++ {
		name := fmt.Sprintf("user%05d", i)
		email := name + "@example.com"
		// every fifth user only has a domain-qualified login and no email
		login := name
		if i%5 == 0 {
			login = `CORP\` + name
			email = ""
		}
		d.Users = append(d.Users, source.Row{
			usage.ColUserID:    strconv.Itoa(i + 1),
			usage.ColUserName:  login,
			usage.ColEmail:     email,
			usage.ColLastLogin: stamp(),
		})
		if r.Float64() < o.HRCoverage {
			d.HR = append(d.HR, source.Row{
				usage.ColSMTP:        name + "@example.com",
				usage.ColNTID:        name,
				usage.ColCostCenter:  fmt.Sprintf("CC%03d", r.IntN(40)),
				usage.ColDept:        fmt.Sprintf("Dept %d", r.IntN(12)),
				usage.ColTitle:       titles[r.IntN(len(titles))],
				usage.ColLastUpdated: stamp(),
			})
		}

		// users lean analyst or viewer
		analystBias := r.Float64()
		for j := 0; j < o.EventsPerUser; j++ {
			var a action
			switch p := r.Float64(); {
			case p < 0.15:
				a = noiseActions[r.IntN(len(noiseActions))]
			case p < 0.15+0.85*analystBias:
				a = analystActions[r.IntN(len(analystActions))]
			default:
				a = otherActions[r.IntN(len(otherActions))]
			}
			success := "1"
			if r.IntN(20) == 0 {
				success = "0"
			}
			row := source.Row{
				usage.ColUserName:   login,
				usage.ColCategory:   a.category,
				usage.ColAction:     a.name,
				usage.ColLoggedTime: stamp(),
				usage.ColSuccess:    success,
				usage.ColMachine:    "",
				"arg1":              "",
			}
			if a.category == "auth_pro" {
				row[usage.ColMachine] = machines[r.IntN(len(machines))]
			}
			if a.category == "library_as" {
				row["arg1"] = fmt.Sprintf("/Reports/Area%d/Dashboard%d", r.IntN(5), r.IntN(20))
			}
			d.Actions = append(d.Actions, row)
		}
	}
	return d
}

// Columns lists the column order used when writing each dataset to a file.
var Columns = struct {
	Users, Actions, HR []string
}{
	Users:   []string{usage.ColUserID, usage.ColUserName, usage.ColEmail, usage.ColLastLogin},
	Actions: []string{usage.ColUserName, usage.ColCategory, usage.ColAction, usage.ColLoggedTime, usage.ColSuccess, usage.ColMachine, "arg1"},
	HR:      []string{usage.ColSMTP, usage.ColNTID, usage.ColCostCenter, usage.ColDept, usage.ColTitle, usage.ColLastUpdated},
}
