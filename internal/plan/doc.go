// Package plan turns parsed index entries into an ordered fetch plan.
//
// Selection is an exact match on the variable code plus the requested
// ensemble scope. An index entry without a member number belongs to the
// control run, member 0. A requested variable that matches nothing
// anywhere is recorded as unmatched and produces no tasks; it never aborts
// the run.
package plan
