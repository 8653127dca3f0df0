package synth

import (
	"reflect"
	"testing"
)

func TestGenerateIsDeterministic(t *testing.T) {
	o := Options{Seed: 42, Users: 20, EventsPerUser: 15}
	a, b := Generate(o), Generate(o)
	if !reflect.DeepEqual(a, b) {
		t.Error("same options should produce identical data")
	}
	if len(a.Users) != 20 || len(a.Actions) != 300 {
		t.Errorf("unexpected sizes users=%d actions=%d", len(a.Users), len(a.Actions))
	}
	if len(a.HR) == 0 || len(a.HR) > 20 {
		t.Errorf("unexpected HR size %d", len(a.HR))
	}
	if reflect.DeepEqual(a, Generate(Options{Seed: 7, Users: 20, EventsPerUser: 15})) {
		t.Error("different seeds should differ")
	}
}

func TestGeneratedRowsHaveColumns(t *testing.T) {
	d := Generate(Options{Seed: 1, Users: 3, EventsPerUser: 2})
	for _, r := range d.Actions {
		for _, c := range Columns.Actions {
			if _, ok := r[c]; !ok {
				t.Fatalf("action row missing column %q", c)
			}
		}
	}
}
