// Package pipeline runs the phase sequence of a phaseweaver run.
//
// It is split into:
//   - Immutable plan (Plan): the ordered phases a Mode selects, derived from a
//     dependency graph
//   - Mutable execution state (Machine, Summary): phase states and the
//     sub-tasks that completed
//
// Every phase is strictly sequential and fail-fast. A sub-task is recorded in
// the Summary only after its command exited 0; the first failure aborts the
// run and every phase not yet entered is marked SKIPPED.
package pipeline
