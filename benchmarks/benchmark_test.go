package benchmarks

import (
	"testing"
	"time"

	"github.com/klytics/licensekit/internal/admin"
	"github.com/klytics/licensekit/internal/classify"
	"github.com/klytics/licensekit/internal/formats/table"
	"github.com/klytics/licensekit/internal/identity"
	"github.com/klytics/licensekit/internal/taxonomy"
	"github.com/klytics/licensekit/internal/usage"
	"github.com/klytics/licensekit/internal/usage/synth"
)

type dataset struct {
	users   []usage.UserRecord
	events  []usage.ActionEvent
	loads   []usage.ActionEvent
	logins  []usage.LoginEvent
	hr      []usage.HRRecord
	classed []usage.ActionEvent
}

func load(b *testing.B, users, perUser int) (*taxonomy.Taxonomy, dataset) {
	b.Helper()
	tax := taxonomy.Default()
	d := synth.Generate(synth.Options{Seed: 7, Users: users, EventsPerUser: perUser})
	in := usage.NewIngestor(tax, "arg1")

	var ds dataset
	ds.users, _ = in.Users(d.Users)
	ds.events, _ = in.Actions(d.Actions, ds.users)
	ds.loads, _ = in.ContentLoads(d.Actions)
	ds.logins, _ = in.Logins(d.Actions)
	ds.hr, _ = in.HR(d.HR)
	ds.classed = classify.NewClassifier(tax).Classify(ds.events)
	if len(ds.events) == 0 {
		b.Fatal("generator produced no retained events")
	}
	return tax, ds
}

// --- Ingestion ---

func BenchmarkIngestActions(b *testing.B) {
	tax := taxonomy.Default()
	d := synth.Generate(synth.Options{Seed: 7, Users: 500, EventsPerUser: 40})
	in := usage.NewIngestor(tax, "arg1")
	users, _ := in.Users(d.Users)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		in.Actions(d.Actions, users)
	}
}

// --- Classification ---

func BenchmarkClassifyActions(b *testing.B) {
	tax, ds := load(b, 500, 40)
	c := classify.NewClassifier(tax)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Classify(ds.events)
	}
}

func BenchmarkClassifyPlatforms(b *testing.B) {
	tax, ds := load(b, 500, 40)
	res := identity.Resolve(ds.users, ds.hr)
	active := res.Active()
	p := classify.NewPlatformClassifier(tax)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Classify(ds.logins, active)
	}
}

// --- Aggregation ---

func BenchmarkUtilization(b *testing.B) {
	tax, ds := load(b, 500, 40)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		admin.Utilization(ds.users, ds.classed, tax.Threshold)
	}
}

func BenchmarkUtilizationLarge(b *testing.B) {
	tax, ds := load(b, 5000, 60)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		admin.Utilization(ds.users, ds.classed, tax.Threshold)
	}
}

func BenchmarkTopActions(b *testing.B) {
	_, ds := load(b, 500, 40)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		admin.TopActions(ds.classed)
	}
}

func BenchmarkMostViewed(b *testing.B) {
	_, ds := load(b, 500, 40)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		admin.MostViewed(ds.loads)
	}
}

// --- Identity ---

func BenchmarkResolve(b *testing.B) {
	_, ds := load(b, 2000, 1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		identity.Resolve(ds.users, ds.hr)
	}
}

func BenchmarkDedupeHR(b *testing.B) {
	_, ds := load(b, 2000, 1)
	records := append(append([]usage.HRRecord(nil), ds.hr...), ds.hr...)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		identity.Dedupe(records)
	}
}

// --- Report encoding ---

func usersTable(b *testing.B) *table.Table {
	tax, ds := load(b, 1000, 30)
	util := admin.Utilization(ds.users, ds.classed, tax.Threshold)
	res := identity.Resolve(ds.users, ds.hr)
	return admin.UsersTable(admin.UserReports(util, res, tax, time.UTC))
}

func BenchmarkEncodeCSV(b *testing.B) {
	t := usersTable(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := table.Encode(t, table.FormatCSV); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeXLSX(b *testing.B) {
	t := usersTable(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := table.Encode(t, table.FormatXLSX); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeJSON(b *testing.B) {
	t := usersTable(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := table.Encode(t, table.FormatJSON); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeXLSX(b *testing.B) {
	data, err := table.Encode(usersTable(b), table.FormatXLSX)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := table.Decode("users", data, table.FormatXLSX); err != nil {
			b.Fatal(err)
		}
	}
}
