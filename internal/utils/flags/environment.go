package flags

import (
	"fmt"
	"strings"
)

const (
	environmentAssignmentSeparatorConstant    = "="
	environmentAssignmentSplitPartCount       = 2
	invalidEnvironmentAssignmentErrorTemplate = "invalid environment assignment %q; expected KEY=VALUE"
	emptyEnvironmentKeyErrorTemplate          = "environment assignment %q has an empty key"
)

// ParseEnvironmentAssignments converts repeated KEY=VALUE flag values into a
// map. Later assignments for the same key win. An empty slice yields nil so
// callers can distinguish "no overrides" from "empty overrides".
func ParseEnvironmentAssignments(assignments []string) (map[string]string, error) {
	if len(assignments) == 0 {
		return nil, nil
	}

	environmentVariables := make(map[string]string, len(assignments))
	for _, assignment := range assignments {
		separatorIndex := strings.Index(assignment, environmentAssignmentSeparatorConstant)
		if separatorIndex < 0 {
			return nil, fmt.Errorf(invalidEnvironmentAssignmentErrorTemplate, assignment)
		}

		environmentKey := strings.TrimSpace(assignment[:separatorIndex])
		if len(environmentKey) == 0 {
			return nil, fmt.Errorf(emptyEnvironmentKeyErrorTemplate, assignment)
		}

		environmentVariables[environmentKey] = assignment[separatorIndex+1:]
	}

	return environmentVariables, nil
}
