package safety_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/termrun/internal/safety"
)

const (
	testRecursiveRootDeletionCaseNameConstant = "recursive_root_deletion"
	testForkBombCaseNameConstant              = "fork_bomb"
	testFilesystemFormatCaseNameConstant      = "filesystem_format"
	testRawDeviceWriteCaseNameConstant        = "raw_device_write"
	testPermissionBlastCaseNameConstant       = "permission_blast"
	testBenignCommandCaseNameConstant         = "benign_command"
	testBenignSubstringCaseNameConstant       = "benign_substring"
)

func TestCommandScannerScan(testInstance *testing.T) {
	testCases := []struct {
		name               string
		command            string
		expectedMatchCount int
	}{
		{
			name:               testRecursiveRootDeletionCaseNameConstant,
			command:            "rm -rf / ",
			expectedMatchCount: 1,
		},
		{
			name:               testForkBombCaseNameConstant,
			command:            ":(){ :|:& };:",
			expectedMatchCount: 1,
		},
		{
			name:               testFilesystemFormatCaseNameConstant,
			command:            "mkfs.ext4 /dev/sdb1",
			expectedMatchCount: 1,
		},
		{
			name:               testRawDeviceWriteCaseNameConstant,
			command:            "dd if=/dev/zero of=/dev/sda bs=1M",
			expectedMatchCount: 1,
		},
		{
			name:               testPermissionBlastCaseNameConstant,
			command:            "chmod -R 777 /",
			expectedMatchCount: 1,
		},
		{
			name:               testBenignCommandCaseNameConstant,
			command:            "echo hello world",
			expectedMatchCount: 0,
		},
		{
			name:               testBenignSubstringCaseNameConstant,
			command:            "rm -rf ./build",
			expectedMatchCount: 0,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observedCore, observedLogs := observer.New(zapcore.WarnLevel)
			scanner := safety.NewCommandScanner(zap.New(observedCore))

			matchedLabels := scanner.Scan(testCase.command)

			require.Len(testInstance, matchedLabels, testCase.expectedMatchCount)
			require.Equal(testInstance, testCase.expectedMatchCount, observedLogs.Len())
		})
	}
}

func TestCommandScannerToleratesNilLogger(testInstance *testing.T) {
	scanner := safety.NewCommandScanner(nil)
	require.Empty(testInstance, scanner.Scan("ls -la"))
}
