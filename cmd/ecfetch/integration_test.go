//go:build integration

package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "gocloud.dev/blob/s3blob"

	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/testutils"
)

// fakeTool writes a shell script that mimics the array tool's CLI:
// it concatenates all input files into the output file, ignoring the
// operator. Good enough to trace data flow end to end without cdo.
func fakeTool(t *testing.T) string {
	t.Helper()

	script := `#!/bin/sh
[ "$1" = "-O" ] && shift
shift
inputs=""
out=""
for a in "$@"; do
	inputs="$inputs $out"
	out=$a
done
cat $inputs > "$out"
`
	path := filepath.Join(t.TempDir(), "faketool")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("write fake tool: %v", err)
	}
	return path
}

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	t.Log("Starting forecast test server...")
	server := testutils.StartForecastServer(t, []string{"tp"}, []int{0, 1})

	t.Log("Starting Minio container...")
	minio := testutils.StartMinioContainer(t, ctx, "ecfetch-test-bucket")
	defer func() {
		if err := minio.Close(ctx); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	}()

	baseDir := t.TempDir()
	tool := fakeTool(t)

	commonArgs := []string{
		"-date", "20251012",
		"-cycle", "00",
		"-vars", "tp",
		"-dir", baseDir,
		"-url", server.URLTemplate(),
		"-max-lead", "24",
		"-tool", tool,
	}

	t.Run("plan", func(t *testing.T) {
		exitCode := runPlan(commonArgs)
		if exitCode != ExitSuccess {
			t.Fatalf("plan failed with exit code %d", exitCode)
		}
	})

	t.Run("fetch_and_publish", func(t *testing.T) {
		args := append([]string{}, commonArgs...)
		args = append(args, "-publish", minio.BucketURL, "-progress=false")

		exitCode := runFetch(args)
		if exitCode != ExitSuccess {
			t.Fatalf("fetch failed with exit code %d", exitCode)
		}

		// Final artifact per member, intermediates gone.
		runDir := filepath.Join(baseDir, "20251012_00z")
		for _, name := range []string{"20251012_00z_m00.grib2", "20251012_00z_m01.grib2"} {
			data, err := os.ReadFile(filepath.Join(runDir, name))
			if err != nil {
				t.Fatalf("final artifact missing: %v", err)
			}
			if got := strings.Count(string(data), ";"); got != 5 {
				t.Errorf("%s holds %d timesteps, want 5", name, got)
			}
		}
		for _, dir := range []string{"slices", "work", "index"} {
			if _, err := os.Stat(filepath.Join(runDir, dir)); !os.IsNotExist(err) {
				t.Errorf("intermediate directory %s survived cleanup", dir)
			}
		}

		// Published copy matches the local artifact.
		bucket, err := minio.OpenBucket(ctx)
		if err != nil {
			t.Fatalf("open bucket: %v", err)
		}
		defer bucket.Close()

		r, err := bucket.NewReader(ctx, "20251012_00z_m01.grib2", nil)
		if err != nil {
			t.Fatalf("read published object: %v", err)
		}
		defer r.Close()

		remote, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("read published object: %v", err)
		}
		local, err := os.ReadFile(filepath.Join(runDir, "20251012_00z_m01.grib2"))
		if err != nil {
			t.Fatal(err)
		}
		if string(remote) != string(local) {
			t.Error("published object differs from the local final artifact")
		}
	})

	t.Run("refetch_is_idempotent", func(t *testing.T) {
		runDir := filepath.Join(baseDir, "20251012_00z")
		before, err := os.ReadFile(filepath.Join(runDir, "20251012_00z_m00.grib2"))
		if err != nil {
			t.Fatal(err)
		}

		args := append([]string{}, commonArgs...)
		args = append(args, "-progress=false")
		if exitCode := runFetch(args); exitCode != ExitSuccess {
			t.Fatalf("re-fetch failed with exit code %d", exitCode)
		}

		after, err := os.ReadFile(filepath.Join(runDir, "20251012_00z_m00.grib2"))
		if err != nil {
			t.Fatal(err)
		}
		if string(before) != string(after) {
			t.Error("re-run produced a different final artifact")
		}
	})

	t.Run("clean", func(t *testing.T) {
		exitCode := runClean([]string{"-date", "20251012", "-cycle", "00", "-dir", baseDir, "-all"})
		if exitCode != ExitSuccess {
			t.Fatalf("clean failed with exit code %d", exitCode)
		}
		if _, err := os.Stat(filepath.Join(baseDir, "20251012_00z")); !os.IsNotExist(err) {
			t.Error("run directory survived clean -all")
		}
	})
}
