// Package safety provides a heuristic, warn-only scanner for destructive
// command shapes. Matches are reported for logging and never block execution.
package safety
