package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/assemble"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/config"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/layout"
)

// payload is the synthetic field content for one (variable, member, lead).
func payload(variable string, member, lead int) string {
	return fmt.Sprintf("%s-m%02d-f%03d;", variable, member, lead)
}

// upstream simulates the remote forecast store: one blob plus one index
// resource per lead time, every field at a known offset.
type upstream struct {
	variables []string
	members   []int
	failIndex map[int]bool // lead times whose index request 404s
}

func (u *upstream) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var lead int
		switch {
		case strings.HasSuffix(r.URL.Path, ".index"):
			if _, err := fmt.Sscanf(filepath.Base(r.URL.Path), "f%d.index", &lead); err != nil {
				http.NotFound(w, r)
				return
			}
			if u.failIndex[lead] {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(u.index(lead)))
		case strings.HasSuffix(r.URL.Path, ".grib2"):
			if _, err := fmt.Sscanf(filepath.Base(r.URL.Path), "f%d.grib2", &lead); err != nil {
				http.NotFound(w, r)
				return
			}
			u.serveRange(w, r, []byte(u.blob(lead)))
		default:
			http.NotFound(w, r)
		}
	})
}

func (u *upstream) blob(lead int) string {
	var b strings.Builder
	for _, m := range u.members {
		for _, v := range u.variables {
			b.WriteString(payload(v, m, lead))
		}
	}
	return b.String()
}

func (u *upstream) index(lead int) string {
	var b strings.Builder
	offset := 0
	for _, m := range u.members {
		for _, v := range u.variables {
			length := len(payload(v, m, lead))
			if m == 0 {
				fmt.Fprintf(&b, `{"type": "cf", "param": %q, "step": "%d", "_offset": %d, "_length": %d}`+"\n",
					v, lead, offset, length)
			} else {
				fmt.Fprintf(&b, `{"type": "pf", "param": %q, "step": "%d", "number": "%d", "_offset": %d, "_length": %d}`+"\n",
					v, lead, m, offset, length)
			}
			offset += length
		}
	}
	return b.String()
}

func (u *upstream) serveRange(w http.ResponseWriter, r *http.Request, data []byte) {
	var start, end int64
	rangeHeader := strings.TrimPrefix(r.Header.Get("Range"), "bytes=")
	if _, err := fmt.Sscanf(rangeHeader, "%d-%d", &start, &end); err != nil {
		w.Write(data)
		return
	}
	if end >= int64(len(data)) {
		end = int64(len(data)) - 1
	}
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(data[start : end+1])
}

// concatTransformer is an in-process stand-in for the array tool.
type concatTransformer struct{}

func (concatTransformer) concat(inputs []string, output string) error {
	var out bytes.Buffer
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		out.Write(data)
	}
	return os.WriteFile(output, out.Bytes(), 0644)
}

func (t concatTransformer) MergeTime(ctx context.Context, inputs []string, output string) error {
	return t.concat(inputs, output)
}

func (t concatTransformer) MergeFields(ctx context.Context, inputs []string, output string) error {
	return t.concat(inputs, output)
}

func (t concatTransformer) Crop(ctx context.Context, box assemble.Box, input, output string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	return os.WriteFile(output, []byte(fmt.Sprintf("crop[%s]", data)), 0644)
}

func testConfig(t *testing.T, serverURL string) config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Date = "20251012"
	cfg.Cycle = "00"
	cfg.Variables = []string{"tp"}
	cfg.BaseDir = t.TempDir()
	cfg.Workers = 4
	cfg.URLTemplate = serverURL + "/{date}/{cycle}/f{lead}.grib2"
	return cfg
}

func runOpts(out *bytes.Buffer) Options {
	return Options{Transformer: concatTransformer{}, Output: out}
}

func TestRunFullCoverage(t *testing.T) {
	up := &upstream{variables: []string{"tp"}, members: []int{0, 1}}
	server := httptest.NewServer(up.handler())
	defer server.Close()

	cfg := testConfig(t, server.URL) // stride 0..360 step 6: 61 lead times

	var out bytes.Buffer
	summary, err := Run(context.Background(), cfg, runOpts(&out))
	if err != nil {
		t.Fatalf("Run: %v\n%s", err, out.String())
	}

	if summary.LeadsAvailable != 61 || summary.LeadsUnavailable != 0 {
		t.Errorf("leads = %d/%d", summary.LeadsAvailable, summary.LeadsUnavailable)
	}
	if summary.Fetched != 122 || summary.Failed != 0 {
		t.Errorf("fetched/failed = %d/%d, want 122/0", summary.Fetched, summary.Failed)
	}
	if len(summary.Finals) != 2 {
		t.Fatalf("finals = %v", summary.Finals)
	}

	// Final artifact holds all 61 timesteps in lead order.
	data, err := os.ReadFile(summary.Finals[1])
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if got := strings.Count(content, ";"); got != 61 {
		t.Errorf("got %d timesteps, want 61", got)
	}
	first := strings.Index(content, payload("tp", 1, 0))
	last := strings.Index(content, payload("tp", 1, 360))
	if first < 0 || last < 0 || first > last {
		t.Errorf("timesteps out of order: first=%d last=%d", first, last)
	}

	// Cleanup leaves only final artifacts in the run directory.
	lay := layout.Layout{BaseDir: cfg.BaseDir, Date: cfg.Date, Cycle: cfg.Cycle}
	entries, err := os.ReadDir(lay.RunDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			t.Errorf("intermediate directory survived cleanup: %s", e.Name())
		}
	}
	if len(entries) != 2 {
		t.Errorf("run dir holds %d entries, want 2 final artifacts", len(entries))
	}
}

func TestRunIdempotent(t *testing.T) {
	up := &upstream{variables: []string{"tp"}, members: []int{0}}
	server := httptest.NewServer(up.handler())
	defer server.Close()

	cfg := testConfig(t, server.URL)
	cfg.MaxLead = 12

	var out bytes.Buffer
	first, err := Run(context.Background(), cfg, runOpts(&out))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstData, err := os.ReadFile(first.Finals[0])
	if err != nil {
		t.Fatal(err)
	}

	second, err := Run(context.Background(), cfg, runOpts(&out))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	secondData, err := os.ReadFile(second.Finals[0])
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(firstData, secondData) {
		t.Error("re-run produced a different final artifact")
	}
}

func TestRunPartialIndexFailure(t *testing.T) {
	up := &upstream{
		variables: []string{"tp"},
		members:   []int{0},
		failIndex: map[int]bool{180: true},
	}
	server := httptest.NewServer(up.handler())
	defer server.Close()

	cfg := testConfig(t, server.URL)

	var out bytes.Buffer
	summary, err := Run(context.Background(), cfg, runOpts(&out))
	if err != nil {
		t.Fatalf("partial coverage must still succeed: %v", err)
	}

	if summary.LeadsAvailable != 60 || summary.LeadsUnavailable != 1 {
		t.Errorf("leads = %d/%d, want 60/1", summary.LeadsAvailable, summary.LeadsUnavailable)
	}

	data, err := os.ReadFile(summary.Finals[0])
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), ";"); got != 60 {
		t.Errorf("got %d timesteps, want 60", got)
	}
	if strings.Contains(string(data), payload("tp", 0, 180)) {
		t.Error("unavailable lead time appeared in the final artifact")
	}
	if !strings.Contains(out.String(), "180h unavailable") {
		t.Errorf("missing warning: %q", out.String())
	}
}

func TestRunUnmatchedVariableWarns(t *testing.T) {
	up := &upstream{variables: []string{"tp"}, members: []int{0}}
	server := httptest.NewServer(up.handler())
	defer server.Close()

	cfg := testConfig(t, server.URL)
	cfg.MaxLead = 6
	cfg.Variables = []string{"tp", "nosuchvar"}

	var out bytes.Buffer
	summary, err := Run(context.Background(), cfg, runOpts(&out))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(summary.Unmatched) != 1 || summary.Unmatched[0] != "nosuchvar" {
		t.Errorf("Unmatched = %v", summary.Unmatched)
	}
	if !strings.Contains(out.String(), "nosuchvar") {
		t.Errorf("missing warning: %q", out.String())
	}
	if len(summary.Finals) != 1 {
		t.Errorf("tp must be unaffected, finals = %v", summary.Finals)
	}
}

func TestRunTotalFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	cfg := testConfig(t, server.URL)
	cfg.MaxLead = 12

	var out bytes.Buffer
	summary, err := Run(context.Background(), cfg, runOpts(&out))
	if err != ErrNoArtifacts {
		t.Fatalf("err = %v, want ErrNoArtifacts", err)
	}
	if summary == nil || len(summary.Finals) != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunSingleMemberScope(t *testing.T) {
	up := &upstream{variables: []string{"tp"}, members: []int{0, 1, 2}}
	server := httptest.NewServer(up.handler())
	defer server.Close()

	cfg := testConfig(t, server.URL)
	cfg.MaxLead = 12
	cfg.Members = "2"

	var out bytes.Buffer
	summary, err := Run(context.Background(), cfg, runOpts(&out))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(summary.Finals) != 1 {
		t.Fatalf("finals = %v", summary.Finals)
	}
	final, ok := summary.Finals[2]
	if !ok {
		t.Fatalf("no final for member 2: %v", summary.Finals)
	}
	if filepath.Base(final) != "20251012_00z_m02.grib2" {
		t.Errorf("final name = %q", filepath.Base(final))
	}
}

func TestRunPublish(t *testing.T) {
	up := &upstream{variables: []string{"tp"}, members: []int{0}}
	server := httptest.NewServer(up.handler())
	defer server.Close()

	bucketDir := t.TempDir()

	cfg := testConfig(t, server.URL)
	cfg.MaxLead = 6
	cfg.PublishBucket = "file://" + bucketDir

	var out bytes.Buffer
	summary, err := Run(context.Background(), cfg, runOpts(&out))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(summary.PublishErrors) != 0 {
		t.Fatalf("publish errors: %v", summary.PublishErrors)
	}
	key, ok := summary.Published[0]
	if !ok {
		t.Fatalf("published = %v", summary.Published)
	}

	local, err := os.ReadFile(summary.Finals[0])
	if err != nil {
		t.Fatal(err)
	}
	remote, err := os.ReadFile(filepath.Join(bucketDir, key))
	if err != nil {
		t.Fatalf("read published object: %v", err)
	}
	if !bytes.Equal(local, remote) {
		t.Error("published object differs from the local final artifact")
	}
}

func TestSummaryReport(t *testing.T) {
	s := &Summary{
		Date: "20251012", Cycle: "00",
		LeadsAvailable: 60, LeadsUnavailable: 1,
		Fetched: 60, Skipped: 0, Failed: 0,
		Units: []assemble.UnitResult{
			{Variable: "tp", Member: 0, Timesteps: 60, Final: "/x/final.grib2"},
		},
		Finals: map[int]string{0: "/x/final.grib2"},
	}

	var buf bytes.Buffer
	s.Report(&buf)

	out := buf.String()
	for _, want := range []string{"60 lead times available", "tp", "m00", "1/1"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
