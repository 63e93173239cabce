package layout

import (
	"fmt"
	"path/filepath"
)

// Key identifies one field slice: a single variable of a single ensemble
// member at a single lead time within one forecast run.
type Key struct {
	Date     string // YYYYMMDD
	Cycle    string // synoptic hour, e.g. "00"
	Variable string
	Member   int
	Lead     int // hours from initialization
}

// MemberID renders the ensemble member as a zero-padded bucket identifier.
// Member 0 is the control run.
func MemberID(member int) string {
	return fmt.Sprintf("%02d", member)
}

// LeadID renders a lead time as a fixed-width label so directory listings
// sort in time order. Numeric code never relies on this ordering.
func LeadID(lead int) string {
	return fmt.Sprintf("%03d", lead)
}

// Layout maps artifact keys to storage paths for one run. All methods are
// pure; the directory tree doubles as the crash-recovery journal, so every
// pipeline stage must agree on these paths.
type Layout struct {
	BaseDir string
	Date    string
	Cycle   string
}

// RunDir is the directory holding everything produced by one (date, cycle)
// run. Only final artifacts remain in it after cleanup.
func (l Layout) RunDir() string {
	return filepath.Join(l.BaseDir, fmt.Sprintf("%s_%sz", l.Date, l.Cycle))
}

// SliceDir holds the fetched per-lead-time field slices.
func (l Layout) SliceDir() string {
	return filepath.Join(l.RunDir(), "slices")
}

// SlicePath is the destination of one fetched field. Paths are unique per
// (variable, member, lead), so fetch workers never share a destination.
func (l Layout) SlicePath(k Key) string {
	name := fmt.Sprintf("%s_m%s_f%s.grib2", k.Variable, MemberID(k.Member), LeadID(k.Lead))
	return filepath.Join(l.SliceDir(), name)
}

// WorkDir holds intermediate series and combined artifacts.
func (l Layout) WorkDir() string {
	return filepath.Join(l.RunDir(), "work")
}

// SeriesPath is the time-merged artifact for one (variable, member) pair.
func (l Layout) SeriesPath(variable string, member int) string {
	name := fmt.Sprintf("%s_m%s_series.grib2", variable, MemberID(member))
	return filepath.Join(l.WorkDir(), name)
}

// CombinedPath is the multi-variable artifact for one member, before the
// geographic crop.
func (l Layout) CombinedPath(member int) string {
	name := fmt.Sprintf("m%s_combined.grib2", MemberID(member))
	return filepath.Join(l.WorkDir(), name)
}

// FinalPath is the cropped final artifact for one member. The name encodes
// date, cycle and member so artifacts from different runs can share a
// directory without ambiguity.
func (l Layout) FinalPath(member int) string {
	name := fmt.Sprintf("%s_%sz_m%s.grib2", l.Date, l.Cycle, MemberID(member))
	return filepath.Join(l.RunDir(), name)
}

// IndexDir caches fetched index resources for inspection and reuse.
func (l Layout) IndexDir() string {
	return filepath.Join(l.RunDir(), "index")
}

// IndexCachePath is the on-disk copy of one lead time's index resource.
func (l Layout) IndexCachePath(lead int) string {
	return filepath.Join(l.IndexDir(), fmt.Sprintf("f%s.index", LeadID(lead)))
}
