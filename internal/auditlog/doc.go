// Package auditlog records a structured trail for every command execution.
//
// Records carry identifiers, exit codes, timing, and output sizes. Counts of
// overridden environment variables are logged; their values never are.
package auditlog
