package pathutils

import (
	"path/filepath"
	"strings"
)

// WorkingDirectoryResolver normalizes user-supplied working directory paths
// before they reach process launch.
type WorkingDirectoryResolver struct {
	homeExpander *HomeExpander
}

// NewWorkingDirectoryResolver constructs a resolver backed by the operating
// system home directory lookup.
func NewWorkingDirectoryResolver() *WorkingDirectoryResolver {
	return &WorkingDirectoryResolver{homeExpander: NewHomeExpander()}
}

// Resolve expands a leading tilde and converts the path to absolute form. An
// empty input stays empty so callers can fall back to their own default.
func (resolver *WorkingDirectoryResolver) Resolve(candidatePath string) string {
	trimmedPath := strings.TrimSpace(candidatePath)
	if len(trimmedPath) == 0 {
		return ""
	}

	expandedPath := resolver.homeExpander.Expand(trimmedPath)
	absolutePath, absoluteError := filepath.Abs(expandedPath)
	if absoluteError != nil {
		return expandedPath
	}
	return absolutePath
}
