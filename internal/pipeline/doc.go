// Package pipeline wires the stages of one forecast retrieval run:
//
//	index fetch → selection → range fetch → assembly → cleanup → publish
//
// Every stage degrades instead of aborting: unavailable lead times,
// failed slices and failed units only reduce coverage. The run as a whole
// fails only when zero final artifacts were produced.
//
// Cleanup is ordered per member: intermediates are deleted strictly after
// the member's final artifact is verified non-empty on disk. Interrupting
// the pipeline at any point therefore leaves either the final artifact or
// enough state to resume.
package pipeline
