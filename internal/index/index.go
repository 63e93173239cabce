package index

import (
	"bytes"
	"context"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/config"
	enshttp "github.com/ZamanRokon/ECMWF-forecast-downloader/internal/http"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/layout"
)

// Set is the outcome of fetching the index resources of one run: parsed
// entries per lead time, plus the reason each unavailable lead time was
// discarded. A lead time appears in exactly one of the two maps.
type Set struct {
	Entries map[int][]Entry
	Errors  map[int]error
}

// Available returns the lead times with a usable index, in ascending order.
func (s *Set) Available() []int {
	leads := make([]int, 0, len(s.Entries))
	for lead := range s.Entries {
		leads = append(leads, lead)
	}
	sort.Ints(leads)
	return leads
}

// FetchAll retrieves and parses the index resource of every lead time in
// the configured stride. Unreachable or malformed resources mark their
// lead time unavailable; they never fail the call. Fetches run with
// bounded parallelism sized to the available CPUs.
//
// Fetched resources are cached under the run's index directory. A cached
// copy that still parses is reused without touching the network, which
// keeps re-runs cheap and deterministic.
func FetchAll(ctx context.Context, client *enshttp.Client, cfg config.Config, lay layout.Layout) *Set {
	leads := cfg.LeadTimes()

	set := &Set{
		Entries: make(map[int][]Entry, len(leads)),
		Errors:  make(map[int]error),
	}

	// Cache misses are non-fatal; the directory may be missing on a
	// fresh run.
	os.MkdirAll(lay.IndexDir(), 0755)

	workers := runtime.GOMAXPROCS(0)
	if workers > len(leads) {
		workers = len(leads)
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan int)
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for lead := range jobs {
				entries, err := fetchOne(ctx, client, cfg, lay, lead)

				mu.Lock()
				if err != nil {
					set.Errors[lead] = err
				} else {
					set.Entries[lead] = entries
				}
				mu.Unlock()
			}
		}()
	}

	for _, lead := range leads {
		select {
		case jobs <- lead:
		case <-ctx.Done():
			// Remaining leads are marked unavailable below.
		}
	}
	close(jobs)
	wg.Wait()

	// Anything neither fetched nor failed was skipped by cancellation.
	for _, lead := range leads {
		if _, ok := set.Entries[lead]; ok {
			continue
		}
		if _, ok := set.Errors[lead]; ok {
			continue
		}
		set.Errors[lead] = ctx.Err()
	}

	return set
}

// fetchOne returns the parsed entries for a single lead time, consulting
// the on-disk cache first.
func fetchOne(ctx context.Context, client *enshttp.Client, cfg config.Config, lay layout.Layout, lead int) ([]Entry, error) {
	cachePath := lay.IndexCachePath(lead)

	if data, err := os.ReadFile(cachePath); err == nil {
		if entries, err := Parse(bytes.NewReader(data), lead); err == nil {
			return entries, nil
		}
		// Unparseable cache entries are stale; refetch.
		os.Remove(cachePath)
	}

	body, err := client.Get(ctx, cfg.IndexURL(lead))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	entries, err := Parse(bytes.NewReader(data), lead)
	if err != nil {
		return nil, err
	}

	writeCache(cachePath, data)
	return entries, nil
}

// writeCache persists an index resource atomically. Failure is ignored:
// the cache is an optimization, not pipeline state.
func writeCache(path string, data []byte) {
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
	}
}
