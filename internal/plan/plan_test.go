package plan

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/config"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/index"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/layout"
)

func testSet() *index.Set {
	return &index.Set{
		Entries: map[int][]index.Entry{
			// Entries deliberately unsorted within each lead.
			0: {
				{Variable: "tp", Member: 1, Lead: 0, Offset: 200, Length: 50},
				{Variable: "10u", Member: 0, Lead: 0, Offset: 100, Length: 40},
				{Variable: "tp", Member: 0, Lead: 0, Offset: 0, Length: 100},
			},
			6: {
				{Variable: "tp", Member: 0, Lead: 6, Offset: 0, Length: 90},
				{Variable: "msl", Member: 0, Lead: 6, Offset: 300, Length: 80},
			},
		},
		Errors: map[int]error{},
	}
}

func testConfig() (config.Config, layout.Layout) {
	cfg := config.Default()
	cfg.Date = "20251012"
	cfg.Cycle = "00"
	cfg.BaseDir = "/data"
	cfg.Variables = []string{"tp", "10u"}
	return cfg, layout.Layout{BaseDir: cfg.BaseDir, Date: cfg.Date, Cycle: cfg.Cycle}
}

func TestBuildOrdering(t *testing.T) {
	cfg, lay := testConfig()

	p, err := Build(testSet(), cfg, lay)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(p.Tasks) != 4 {
		t.Fatalf("got %d tasks, want 4", len(p.Tasks))
	}

	// Ordered by lead, then member, then requested variable order.
	type ord struct {
		lead, member int
		variable     string
	}
	var got []ord
	for _, task := range p.Tasks {
		got = append(got, ord{task.Key.Lead, task.Key.Member, task.Key.Variable})
	}
	want := []ord{
		{0, 0, "tp"},
		{0, 0, "10u"},
		{0, 1, "tp"},
		{6, 0, "tp"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestBuildDeterministic(t *testing.T) {
	cfg, lay := testConfig()

	first, err := Build(testSet(), cfg, lay)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Build(testSet(), cfg, lay)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.Tasks, second.Tasks) {
		t.Error("plans for identical inputs differ")
	}
}

func TestBuildTaskFields(t *testing.T) {
	cfg, lay := testConfig()

	p, err := Build(testSet(), cfg, lay)
	if err != nil {
		t.Fatal(err)
	}

	task := p.Tasks[0]
	if task.Offset != 0 || task.Length != 100 {
		t.Errorf("byte range = (%d, %d), want (0, 100)", task.Offset, task.Length)
	}
	if task.SourceURL != cfg.BlobURL(0) {
		t.Errorf("SourceURL = %q", task.SourceURL)
	}
	if task.Dest != lay.SlicePath(task.Key) {
		t.Errorf("Dest = %q", task.Dest)
	}
	if !strings.Contains(task.Dest, "m00") {
		t.Errorf("control member must route to bucket 00, got %q", task.Dest)
	}
}

func TestBuildSingleMemberScope(t *testing.T) {
	cfg, lay := testConfig()
	cfg.Members = "1"

	p, err := Build(testSet(), cfg, lay)
	if err != nil {
		t.Fatal(err)
	}

	if len(p.Tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(p.Tasks))
	}
	if p.Tasks[0].Key.Member != 1 {
		t.Errorf("member = %d, want 1", p.Tasks[0].Key.Member)
	}
	// 10u exists only for member 0, so it matches nothing in this scope.
	if len(p.Unmatched) != 1 || p.Unmatched[0] != "10u" {
		t.Errorf("Unmatched = %v", p.Unmatched)
	}
}

func TestBuildUnmatchedVariableIsWarning(t *testing.T) {
	cfg, lay := testConfig()
	cfg.Variables = []string{"tp", "nosuchvar"}

	p, err := Build(testSet(), cfg, lay)
	if err != nil {
		t.Fatalf("unmatched variable must not be an error: %v", err)
	}

	if len(p.Unmatched) != 1 || p.Unmatched[0] != "nosuchvar" {
		t.Errorf("Unmatched = %v", p.Unmatched)
	}
	if len(p.Tasks) != 3 {
		t.Errorf("got %d tasks for tp, want 3", len(p.Tasks))
	}
}

func TestMembersAndTotalBytes(t *testing.T) {
	cfg, lay := testConfig()

	p, err := Build(testSet(), cfg, lay)
	if err != nil {
		t.Fatal(err)
	}

	if got := p.Members(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("Members() = %v", got)
	}
	if got := p.TotalBytes(); got != 100+40+50+90 {
		t.Errorf("TotalBytes() = %d", got)
	}
}
