package pathutils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/termrun/internal/utils/path"
)

func TestWorkingDirectoryResolverResolve(t *testing.T) {
	currentWorkingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(t, workingDirectoryError)

	homeDirectoryPath := t.TempDir()
	t.Setenv("HOME", homeDirectoryPath)

	testCases := []struct {
		name          string
		candidatePath string
		expectedPath  string
	}{
		{
			name:          "EmptyInputStaysEmpty",
			candidatePath: "",
			expectedPath:  "",
		},
		{
			name:          "WhitespaceInputStaysEmpty",
			candidatePath: "   ",
			expectedPath:  "",
		},
		{
			name:          "AbsolutePathPassesThrough",
			candidatePath: "/tmp/workspace",
			expectedPath:  "/tmp/workspace",
		},
		{
			name:          "RelativePathBecomesAbsolute",
			candidatePath: "subdirectory",
			expectedPath:  filepath.Join(currentWorkingDirectory, "subdirectory"),
		},
		{
			name:          "TildePrefixExpandsToHome",
			candidatePath: "~/projects",
			expectedPath:  filepath.Join(homeDirectoryPath, "projects"),
		},
		{
			name:          "SurroundingWhitespaceTrimmed",
			candidatePath: "  /tmp/workspace  ",
			expectedPath:  "/tmp/workspace",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			resolver := pathutils.NewWorkingDirectoryResolver()
			resolvedPath := resolver.Resolve(testCase.candidatePath)
			require.Equal(t, testCase.expectedPath, resolvedPath)
		})
	}
}
