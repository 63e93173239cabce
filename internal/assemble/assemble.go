package assemble

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/fetch"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/layout"
)

// ErrEmptyArtifact is returned when a transform reports success but its
// output is missing or empty.
var ErrEmptyArtifact = errors.New("assemble: transform produced an empty artifact")

// Box is a geographic bounding box in degrees.
type Box struct {
	West  float64
	East  float64
	South float64
	North float64
}

// Transformer is the external scientific-array tool the assembler drives.
// Each invocation takes complete input artifacts and produces one output
// artifact; the assembler treats all of them as opaque.
type Transformer interface {
	// MergeTime concatenates time-ordered inputs into one time series.
	MergeTime(ctx context.Context, inputs []string, output string) error
	// MergeFields combines per-variable series into one multi-field artifact.
	MergeFields(ctx context.Context, inputs []string, output string) error
	// Crop writes the bounding-box subset of input to output.
	Crop(ctx context.Context, box Box, input, output string) error
}

// UnitResult reports the outcome for one (variable, member) unit.
type UnitResult struct {
	Variable  string
	Member    int
	Timesteps int    // lead times merged into the series
	Final     string // final artifact path, empty if the unit failed
	Err       error
}

// Outcome is the result of assembling one run.
type Outcome struct {
	Units []UnitResult

	// Finals maps members to their verified non-empty final artifacts.
	Finals map[int]string
}

// slice is one fetched field on disk.
type slice struct {
	lead int
	path string
}

// unitKey identifies a (variable, member) assembly unit.
type unitKey struct {
	variable string
	member   int
}

// Run merges fetched slices into per-unit time series, combines each
// member's variables, and crops the result. Work is distributed over a
// bounded pool with one job per member; every failure is contained to its
// own unit or member and never blocks the others.
func Run(ctx context.Context, tf Transformer, results []fetch.Result, box Box, lay layout.Layout, workers int) *Outcome {
	groups := groupSlices(results)

	members := make([]int, 0)
	seen := make(map[int]bool)
	for k := range groups {
		if !seen[k.member] {
			seen[k.member] = true
			members = append(members, k.member)
		}
	}
	sort.Ints(members)

	if workers <= 0 {
		workers = 1
	}
	if workers > len(members) && len(members) > 0 {
		workers = len(members)
	}

	outcome := &Outcome{Finals: make(map[int]string)}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan int)
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for member := range jobs {
				units, final := assembleMember(ctx, tf, member, groups, box, lay)

				mu.Lock()
				outcome.Units = append(outcome.Units, units...)
				if final != "" {
					outcome.Finals[member] = final
				}
				mu.Unlock()
			}
		}()
	}

	for _, m := range members {
		jobs <- m
	}
	close(jobs)
	wg.Wait()

	sort.Slice(outcome.Units, func(i, j int) bool {
		a, b := outcome.Units[i], outcome.Units[j]
		if a.Member != b.Member {
			return a.Member < b.Member
		}
		return a.Variable < b.Variable
	})

	return outcome
}

// groupSlices collects the slices present on disk per (variable, member).
// Failed tasks simply do not contribute; their absence is a gap, not an
// error.
func groupSlices(results []fetch.Result) map[unitKey][]slice {
	groups := make(map[unitKey][]slice)
	for _, r := range results {
		if r.Status == fetch.StatusFailed {
			continue
		}
		k := unitKey{variable: r.Task.Key.Variable, member: r.Task.Key.Member}
		groups[k] = append(groups[k], slice{lead: r.Task.Key.Lead, path: r.Task.Dest})
	}
	return groups
}

// assembleMember runs merge, combine and crop for one member.
func assembleMember(ctx context.Context, tf Transformer, member int, groups map[unitKey][]slice, box Box, lay layout.Layout) ([]UnitResult, string) {
	if err := os.MkdirAll(lay.WorkDir(), 0755); err != nil {
		return failAll(member, groups, err), ""
	}

	// Merge: one time series per variable of this member.
	var units []UnitResult
	var seriesPaths []string
	for k, slices := range groups {
		if k.member != member {
			continue
		}

		unit := UnitResult{Variable: k.variable, Member: member, Timesteps: len(slices)}

		// Lead-time labels vary in digit width, so ordering must be
		// numeric, never lexicographic.
		sort.Slice(slices, func(i, j int) bool { return slices[i].lead < slices[j].lead })

		inputs := make([]string, len(slices))
		for i, s := range slices {
			inputs[i] = s.path
		}

		series := lay.SeriesPath(k.variable, member)
		if err := tf.MergeTime(ctx, inputs, series); err != nil {
			unit.Err = fmt.Errorf("merge %s: %w", k.variable, err)
			units = append(units, unit)
			continue
		}
		seriesPaths = append(seriesPaths, series)
		units = append(units, unit)
	}

	if len(seriesPaths) == 0 {
		return units, ""
	}
	sort.Strings(seriesPaths)

	// Combine: union of whatever variable series exist for this member. A
	// variable missing here is an absent field, not a mismatch.
	combined := lay.CombinedPath(member)
	if err := tf.MergeFields(ctx, seriesPaths, combined); err != nil {
		return markSurvivors(units, fmt.Errorf("combine member %s: %w", layout.MemberID(member), err)), ""
	}

	// Crop into a temporary path first: the combined artifact is never
	// mutated and a crop failure leaves no half-written final artifact.
	final := lay.FinalPath(member)
	tmp := final + ".part"
	if err := tf.Crop(ctx, box, combined, tmp); err != nil {
		os.Remove(tmp)
		return markSurvivors(units, fmt.Errorf("crop member %s: %w", layout.MemberID(member), err)), ""
	}

	fi, err := os.Stat(tmp)
	if err != nil || fi.Size() == 0 {
		os.Remove(tmp)
		return markSurvivors(units, fmt.Errorf("crop member %s: %w", layout.MemberID(member), ErrEmptyArtifact)), ""
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return markSurvivors(units, err), ""
	}

	for i := range units {
		if units[i].Err == nil {
			units[i].Final = final
		}
	}
	return units, final
}

// failAll marks every unit of a member as failed before any work started.
func failAll(member int, groups map[unitKey][]slice, err error) []UnitResult {
	var units []UnitResult
	for k, slices := range groups {
		if k.member != member {
			continue
		}
		units = append(units, UnitResult{
			Variable:  k.variable,
			Member:    member,
			Timesteps: len(slices),
			Err:       err,
		})
	}
	return units
}

// markSurvivors attaches a member-level failure to the units that had not
// already failed individually.
func markSurvivors(units []UnitResult, err error) []UnitResult {
	for i := range units {
		if units[i].Err == nil {
			units[i].Err = err
		}
	}
	return units
}
