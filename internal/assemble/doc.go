// Package assemble combines fetched field slices into final artifacts.
//
// Assembly is three transform steps per ensemble member, each delegated to
// an external array tool behind the Transformer interface:
//
//   - Merge: per (variable, member), sort slices numerically by lead time
//     and concatenate them into one time series.
//   - Combine: union all variable series a member has into one
//     multi-field artifact.
//   - Crop: subset the combined artifact to the configured bounding box,
//     writing the final artifact.
//
// A unit with zero slices is skipped, never failed; a variable missing for
// one member is an absent field in that member's output. The combined
// artifact is never modified in place, so a failed crop cannot corrupt
// upstream data.
package assemble
