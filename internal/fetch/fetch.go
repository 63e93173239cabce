package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	enshttp "github.com/ZamanRokon/ECMWF-forecast-downloader/internal/http"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/plan"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/progress"
)

// ErrTruncated is returned when a range request delivered fewer or more
// bytes than the index declared. The partial destination is deleted so a
// later run re-fetches it.
var ErrTruncated = errors.New("fetch: truncated range response")

// Status is the terminal state of one fetch task.
type Status string

const (
	// StatusFetched means the slice was retrieved from the network.
	StatusFetched Status = "fetched"
	// StatusSkipped means the destination already held the complete slice.
	StatusSkipped Status = "skipped"
	// StatusFailed means the task reached a terminal failure. Other tasks
	// are unaffected.
	StatusFailed Status = "failed"
)

// Result is the terminal outcome of one fetch task.
type Result struct {
	Task   plan.Task
	Status Status
	Bytes  int64
	Err    error
}

// Run executes the fetch plan on a bounded worker pool and blocks until
// every task has reached a terminal result. Task failures never abort the
// stage; completion with partial coverage is the designed behavior.
//
// Destination paths are unique per task, so workers share no state beyond
// the job channel. Re-running against unchanged remote data skips
// everything already on disk: the filesystem is the recovery journal.
func Run(ctx context.Context, client *enshttp.Client, tasks []plan.Task, workers int, reporter *progress.Reporter) []Result {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	results := make([]Result, len(tasks))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = fetchOne(ctx, client, tasks[idx])

				if reporter != nil {
					switch results[idx].Status {
					case StatusFetched:
						reporter.TaskFetched(results[idx].Bytes)
					case StatusSkipped:
						reporter.TaskSkipped()
					case StatusFailed:
						reporter.TaskFailed()
					}
				}
			}
		}()
	}

	for i := range tasks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// fetchOne brings a single task to a terminal state.
func fetchOne(ctx context.Context, client *enshttp.Client, task plan.Task) Result {
	// A destination holding exactly the declared bytes is a completed
	// task from an earlier run.
	if fi, err := os.Stat(task.Dest); err == nil {
		if fi.Size() == task.Length {
			return Result{Task: task, Status: StatusSkipped, Bytes: fi.Size()}
		}
		// Wrong size on disk means a corrupt leftover; treat as absent.
		os.Remove(task.Dest)
	}

	if err := os.MkdirAll(filepath.Dir(task.Dest), 0755); err != nil {
		return Result{Task: task, Status: StatusFailed, Err: err}
	}

	n, err := download(ctx, client, task)
	if err != nil {
		return Result{Task: task, Status: StatusFailed, Err: err}
	}

	return Result{Task: task, Status: StatusFetched, Bytes: n}
}

// download streams the task's byte range into its destination. The slice
// is written to a .part file and renamed only once complete, so a crash
// never leaves a plausible-looking partial destination.
func download(ctx context.Context, client *enshttp.Client, task plan.Task) (int64, error) {
	// The Range header is inclusive: [offset, offset+length) on our side
	// maps to bytes=offset-(offset+length-1).
	resp, err := client.GetRange(ctx, task.SourceURL, task.Offset, task.Offset+task.Length-1)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	partPath := task.Dest + ".part"
	part, err := os.Create(partPath)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(part, resp.Body)
	if closeErr := part.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partPath)
		return 0, err
	}

	if n != task.Length {
		os.Remove(partPath)
		return 0, fmt.Errorf("%w: got %d bytes, want %d", ErrTruncated, n, task.Length)
	}

	if err := os.Rename(partPath, task.Dest); err != nil {
		os.Remove(partPath)
		return 0, err
	}

	return n, nil
}

// Tally summarizes results per status.
func Tally(results []Result) (fetched, skipped, failed int) {
	for _, r := range results {
		switch r.Status {
		case StatusFetched:
			fetched++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	return
}
