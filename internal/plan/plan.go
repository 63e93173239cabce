package plan

import (
	"sort"

	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/config"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/index"
	"github.com/ZamanRokon/ECMWF-forecast-downloader/internal/layout"
)

// Task is one byte range to fetch: a single field slice together with its
// source location and unique destination path.
type Task struct {
	Key       layout.Key
	SourceURL string
	Offset    int64
	Length    int64
	Dest      string
}

// Plan is a deterministic, ordered fetch plan. Determinism matters for
// reproducible logs and tests, not for correctness: the fetch stage may
// complete tasks in any order.
type Plan struct {
	Tasks []Task

	// Unmatched lists requested variables with no matching index entry at
	// any lead time. This is warning-level: the variables simply
	// contribute no tasks.
	Unmatched []string
}

// Build filters the parsed index entries down to the requested variables
// and ensemble scope and lays them out as fetch tasks ordered by lead
// time, then member, then the requested variable order.
func Build(set *index.Set, cfg config.Config, lay layout.Layout) (*Plan, error) {
	scope, err := cfg.MemberScope()
	if err != nil {
		return nil, err
	}

	varRank := make(map[string]int, len(cfg.Variables))
	for i, v := range cfg.Variables {
		varRank[v] = i
	}

	p := &Plan{}
	matched := make(map[string]bool)

	for _, lead := range set.Available() {
		var leadTasks []Task
		for _, e := range set.Entries[lead] {
			if _, ok := varRank[e.Variable]; !ok {
				continue
			}
			if scope >= 0 && e.Member != scope {
				continue
			}
			matched[e.Variable] = true

			key := layout.Key{
				Date:     cfg.Date,
				Cycle:    cfg.Cycle,
				Variable: e.Variable,
				Member:   e.Member,
				Lead:     e.Lead,
			}
			leadTasks = append(leadTasks, Task{
				Key:       key,
				SourceURL: cfg.BlobURL(lead),
				Offset:    e.Offset,
				Length:    e.Length,
				Dest:      lay.SlicePath(key),
			})
		}

		sort.SliceStable(leadTasks, func(i, j int) bool {
			a, b := leadTasks[i].Key, leadTasks[j].Key
			if a.Member != b.Member {
				return a.Member < b.Member
			}
			return varRank[a.Variable] < varRank[b.Variable]
		})
		p.Tasks = append(p.Tasks, leadTasks...)
	}

	for _, v := range cfg.Variables {
		if !matched[v] {
			p.Unmatched = append(p.Unmatched, v)
		}
	}

	return p, nil
}

// Members returns the distinct ensemble members appearing in the plan, in
// ascending order.
func (p *Plan) Members() []int {
	seen := make(map[int]bool)
	for _, t := range p.Tasks {
		seen[t.Key.Member] = true
	}
	members := make([]int, 0, len(seen))
	for m := range seen {
		members = append(members, m)
	}
	sort.Ints(members)
	return members
}

// TotalBytes is the number of bytes the plan will transfer if nothing is
// skipped.
func (p *Plan) TotalBytes() int64 {
	var total int64
	for _, t := range p.Tasks {
		total += t.Length
	}
	return total
}
