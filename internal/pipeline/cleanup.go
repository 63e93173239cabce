package pipeline

import (
	"os"

	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/assemble"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/fetch"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/layout"
)

// cleanup removes the intermediate artifacts of every member whose final
// artifact is verified on disk. Members without a final artifact keep all
// their inputs, so an interrupted run can always resume: at no point does
// a member exist with neither the final artifact nor its inputs.
//
// The shared index cache is removed only once at least one member
// finished; it costs nothing to keep otherwise and speeds up retries.
func cleanup(lay layout.Layout, results []fetch.Result, outcome *assemble.Outcome) {
	for member, final := range outcome.Finals {
		if !verifiedNonEmpty(final) {
			continue
		}

		// Slices of this member, across all variables and lead times.
		for _, r := range results {
			if r.Status == fetch.StatusFailed || r.Task.Key.Member != member {
				continue
			}
			os.Remove(r.Task.Dest)
		}

		// Series artifacts of this member.
		for _, u := range outcome.Units {
			if u.Member != member || u.Err != nil {
				continue
			}
			os.Remove(lay.SeriesPath(u.Variable, member))
		}

		os.Remove(lay.CombinedPath(member))
	}

	if len(outcome.Finals) > 0 {
		os.RemoveAll(lay.IndexDir())

		// Drop the work directories when nothing is left in them.
		os.Remove(lay.SliceDir())
		os.Remove(lay.WorkDir())
	}
}

func verifiedNonEmpty(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}
