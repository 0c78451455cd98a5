package safety

import (
	"regexp"

	"go.uber.org/zap"
)

const (
	recursiveRootDeletionLabelConstant = "recursive root deletion"
	forkBombLabelConstant              = "fork bomb"
	filesystemFormatLabelConstant      = "filesystem format"
	rawDeviceWriteLabelConstant        = "raw device write"
	permissionBlastLabelConstant       = "recursive permission blast"

	recursiveRootDeletionPatternConstant = `(?i)\brm\s+(-[a-z-]*r[a-z-]*f|-[a-z-]*f[a-z-]*r|--recursive\s+--force)\s+/+(\s|$|\*)`
	forkBombPatternConstant              = `:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;?\s*:`
	filesystemFormatPatternConstant      = `(?i)\bmkfs(\.[a-z0-9]+)?\b`
	rawDeviceWritePatternConstant        = `(?i)\bdd\b[^|;&]*\bof=/dev/`
	permissionBlastPatternConstant       = `(?i)\bchmod\s+(-[a-z]*r[a-z]*|--recursive)\s+777\s+/+(\s|$)`

	destructivePatternWarnMessageConstant = "command matches destructive pattern"
	logFieldCommandConstant               = "command"
	logFieldPatternLabelConstant          = "pattern_label"
)

// ScanPattern pairs a human-readable label with a compiled destructive-shape expression.
type ScanPattern struct {
	Label      string
	Expression *regexp.Regexp
}

// CommandScanner evaluates command text against destructive-shape patterns.
// Matches are advisory: the scanner warns and never rejects a command.
type CommandScanner struct {
	logger   *zap.Logger
	patterns []ScanPattern
}

// NewCommandScanner constructs a scanner with the built-in destructive patterns.
func NewCommandScanner(logger *zap.Logger) *CommandScanner {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CommandScanner{
		logger: logger,
		patterns: []ScanPattern{
			{Label: recursiveRootDeletionLabelConstant, Expression: regexp.MustCompile(recursiveRootDeletionPatternConstant)},
			{Label: forkBombLabelConstant, Expression: regexp.MustCompile(forkBombPatternConstant)},
			{Label: filesystemFormatLabelConstant, Expression: regexp.MustCompile(filesystemFormatPatternConstant)},
			{Label: rawDeviceWriteLabelConstant, Expression: regexp.MustCompile(rawDeviceWritePatternConstant)},
			{Label: permissionBlastLabelConstant, Expression: regexp.MustCompile(permissionBlastPatternConstant)},
		},
	}
}

// Scan returns the labels of every destructive pattern the command matches
// and logs one warning per match.
func (scanner *CommandScanner) Scan(command string) []string {
	var matchedLabels []string
	for _, pattern := range scanner.patterns {
		if pattern.Expression.MatchString(command) {
			matchedLabels = append(matchedLabels, pattern.Label)
			scanner.logger.Warn(
				destructivePatternWarnMessageConstant,
				zap.String(logFieldCommandConstant, command),
				zap.String(logFieldPatternLabelConstant, pattern.Label),
			)
		}
	}
	return matchedLabels
}
