package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// TotalTasks is the number of fetch tasks in the plan.
	TotalTasks int

	// TotalBytes is the number of bytes the plan would transfer.
	TotalBytes int64

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration
}

// Reporter prints human-readable fetch progress. All counter methods are
// safe for concurrent use by fetch workers.
type Reporter struct {
	opts Options

	fetched      atomic.Int64
	skipped      atomic.Int64
	failed       atomic.Int64
	fetchedBytes atomic.Int64

	mu        sync.Mutex
	startTime time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopped   bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.startTime = time.Now()

	fmt.Fprintf(r.opts.Output, "[ecfetch] Fetching %d field slices (%s)\n",
		r.opts.TotalTasks, formatBytes(r.opts.TotalBytes))

	go r.updateLoop()
}

// Stop stops the progress reporter and prints the final line. It blocks
// until the update loop has finished writing, so callers may print to the
// same output immediately afterwards.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// TaskFetched records a slice fetched from the network.
func (r *Reporter) TaskFetched(bytes int64) {
	r.fetched.Add(1)
	r.fetchedBytes.Add(bytes)
}

// TaskSkipped records a slice already present on disk.
func (r *Reporter) TaskSkipped() {
	r.skipped.Add(1)
}

// TaskFailed records a slice that reached a terminal failure.
func (r *Reporter) TaskFailed() {
	r.failed.Add(1)
}

func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinal()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

func (r *Reporter) counts() (done, fetched, skipped, failed int64) {
	fetched = r.fetched.Load()
	skipped = r.skipped.Load()
	failed = r.failed.Load()
	return fetched + skipped + failed, fetched, skipped, failed
}

func (r *Reporter) printProgress() {
	done, _, skipped, failed := r.counts()

	fmt.Fprintf(r.opts.Output, "\r[ecfetch] Slices: %d/%d | skipped: %d | failed: %d | %s    ",
		done, r.opts.TotalTasks, skipped, failed, formatBytes(r.fetchedBytes.Load()))
}

func (r *Reporter) printFinal() {
	done, fetched, skipped, failed := r.counts()
	duration := time.Since(r.startTime)

	fmt.Fprintf(r.opts.Output, "\r[ecfetch] Slices: %d/%d | fetched: %d | skipped: %d | failed: %d    \n",
		done, r.opts.TotalTasks, fetched, skipped, failed)
	fmt.Fprintf(r.opts.Output, "[ecfetch] Transferred %s in %s\n",
		formatBytes(r.fetchedBytes.Load()), formatDuration(duration))
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, m)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}
