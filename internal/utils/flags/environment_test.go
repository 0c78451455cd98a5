package flags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEnvironmentAssignments(t *testing.T) {
	testCases := []struct {
		name            string
		assignments     []string
		expectedResult  map[string]string
		expectError     bool
		expectedMessage string
	}{
		{
			name:           "EmptyInputYieldsNil",
			assignments:    nil,
			expectedResult: nil,
		},
		{
			name:           "SingleAssignment",
			assignments:    []string{"PATH=/usr/bin"},
			expectedResult: map[string]string{"PATH": "/usr/bin"},
		},
		{
			name:           "ValueContainingEquals",
			assignments:    []string{"QUERY=a=b=c"},
			expectedResult: map[string]string{"QUERY": "a=b=c"},
		},
		{
			name:           "EmptyValue",
			assignments:    []string{"EMPTY="},
			expectedResult: map[string]string{"EMPTY": ""},
		},
		{
			name:           "LaterAssignmentWins",
			assignments:    []string{"MODE=first", "MODE=second"},
			expectedResult: map[string]string{"MODE": "second"},
		},
		{
			name:            "MissingSeparator",
			assignments:     []string{"INVALID"},
			expectError:     true,
			expectedMessage: "invalid environment assignment \"INVALID\"; expected KEY=VALUE",
		},
		{
			name:        "EmptyKey",
			assignments: []string{"=value"},
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			parsedAssignments, parseError := ParseEnvironmentAssignments(testCase.assignments)
			if testCase.expectError {
				require.Error(t, parseError)
				if len(testCase.expectedMessage) > 0 {
					require.EqualError(t, parseError, testCase.expectedMessage)
				}
				return
			}

			require.NoError(t, parseError)
			require.Equal(t, testCase.expectedResult, parsedAssignments)
		})
	}
}
