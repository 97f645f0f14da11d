// Package generators implements the per-year event generator stages.
//
// Stages and the stages whose events they consume:
//
//	termination           (none)
//	hiring                termination
//	new_hire_termination  hiring
//	promotion             termination
//	merit                 termination, promotion
//	enrollment            termination, hiring, new_hire_termination
//	contribution          every stage above
//
// Every random draw comes from a stream keyed by (seed, year, stage,
// employee), so output is identical for a given seed regardless of the
// number of workers.
package generators
