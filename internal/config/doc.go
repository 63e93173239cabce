// Package config defines the immutable run configuration shared by every
// pipeline stage.
//
// Configuration is resolved in layers: Default() values, then an optional
// YAML file, then ECFETCH_* environment variables, then command-line flag
// overrides merged via Config.Merge. Validate() must pass before a run
// starts.
//
// # Example YAML
//
//	date: "20251012"
//	cycle: "00"
//	variables: [tp, 10u, 10v]
//	members: all
//	max_lead_hours: 360
//	lead_step_hours: 6
//	crop:
//	  west: 87
//	  east: 93
//	  south: 20
//	  north: 27
//	retry:
//	  attempts: 3
//	  backoff: 1s
package config
