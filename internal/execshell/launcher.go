package execshell

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

const (
	defaultShellExecutablePathConstant    = "/bin/sh"
	shellCommandFlagConstant              = "-c"
	environmentAssignmentTemplateConstant = "%s=%s"
)

// LaunchSpecification describes how a subprocess should be spawned.
type LaunchSpecification struct {
	Command              string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	// CapturePipes attaches in-memory pipes to the child's stdout/stderr.
	// When false both streams are discarded.
	CapturePipes bool
	// MergeOutputStreams routes stderr into the stdout pipe so consumers see
	// one interleaved stream. Requires CapturePipes.
	MergeOutputStreams bool
}

// RunningProcess is a live subprocess handle shared by the executor and the
// background process registry.
type RunningProcess interface {
	// ProcessIdentifier reports the OS pid of the direct child.
	ProcessIdentifier() int
	// StandardOutput returns the stdout pipe, or nil when not captured.
	StandardOutput() io.Reader
	// StandardError returns the stderr pipe, or nil when not captured or merged.
	StandardError() io.Reader
	// Wait blocks until the process exits and reports its exit code. Safe to
	// call from multiple goroutines; the outcome is computed once.
	Wait() (int, error)
}

// ProcessLauncher spawns subprocesses in their own process groups.
type ProcessLauncher interface {
	Launch(specification LaunchSpecification) (RunningProcess, error)
}

// OSProcessLauncher launches commands through the operating system shell.
type OSProcessLauncher struct {
	ShellExecutablePath string
}

// NewOSProcessLauncher constructs a launcher using the default shell.
func NewOSProcessLauncher() *OSProcessLauncher {
	return &OSProcessLauncher{ShellExecutablePath: defaultShellExecutablePathConstant}
}

// Launch spawns the command via the shell in a new process group. Pipes are
// created manually so that waiting on the child never closes read ends still
// being drained by a streamer.
func (launcher *OSProcessLauncher) Launch(specification LaunchSpecification) (RunningProcess, error) {
	shellPath := launcher.ShellExecutablePath
	if len(shellPath) == 0 {
		shellPath = defaultShellExecutablePathConstant
	}

	executable := exec.Command(shellPath, shellCommandFlagConstant, specification.Command)

	if len(specification.WorkingDirectory) > 0 {
		executable.Dir = specification.WorkingDirectory
	}

	if len(specification.EnvironmentVariables) > 0 {
		mergedEnvironment := append([]string{}, os.Environ()...)
		for environmentKey, environmentValue := range specification.EnvironmentVariables {
			mergedEnvironment = append(mergedEnvironment, fmt.Sprintf(environmentAssignmentTemplateConstant, environmentKey, environmentValue))
		}
		executable.Env = mergedEnvironment
	}

	configureProcessGroup(executable)

	var standardOutputReader, standardErrorReader io.ReadCloser
	var childWriters []*os.File

	if specification.CapturePipes {
		standardOutputRead, standardOutputWrite, pipeError := os.Pipe()
		if pipeError != nil {
			return nil, pipeError
		}
		executable.Stdout = standardOutputWrite
		standardOutputReader = standardOutputRead
		childWriters = append(childWriters, standardOutputWrite)

		if specification.MergeOutputStreams {
			executable.Stderr = standardOutputWrite
		} else {
			standardErrorRead, standardErrorWrite, stderrPipeError := os.Pipe()
			if stderrPipeError != nil {
				standardOutputRead.Close()
				standardOutputWrite.Close()
				return nil, stderrPipeError
			}
			executable.Stderr = standardErrorWrite
			standardErrorReader = standardErrorRead
			childWriters = append(childWriters, standardErrorWrite)
		}
	}

	startError := executable.Start()

	// The parent's copies of the write ends must close regardless of the start
	// outcome so readers observe EOF once every child writer is gone.
	for _, childWriter := range childWriters {
		childWriter.Close()
	}

	if startError != nil {
		if standardOutputReader != nil {
			standardOutputReader.Close()
		}
		if standardErrorReader != nil {
			standardErrorReader.Close()
		}
		return nil, startError
	}

	return &launchedOSProcess{
		executable:         executable,
		standardOutputPipe: standardOutputReader,
		standardErrorPipe:  standardErrorReader,
	}, nil
}

// launchedOSProcess adapts an exec.Cmd to the RunningProcess interface.
type launchedOSProcess struct {
	executable         *exec.Cmd
	standardOutputPipe io.ReadCloser
	standardErrorPipe  io.ReadCloser
	waitOnce           sync.Once
	waitExitCode       int
	waitError          error
}

func (process *launchedOSProcess) ProcessIdentifier() int {
	if process.executable.Process == nil {
		return 0
	}
	return process.executable.Process.Pid
}

func (process *launchedOSProcess) StandardOutput() io.Reader {
	if process.standardOutputPipe == nil {
		return nil
	}
	return process.standardOutputPipe
}

func (process *launchedOSProcess) StandardError() io.Reader {
	if process.standardErrorPipe == nil {
		return nil
	}
	return process.standardErrorPipe
}

// Wait reaps the child exactly once. An ExitError yields the child's exit
// code without a Go error; any other wait failure surfaces as an error with
// the framework failure sentinel.
func (process *launchedOSProcess) Wait() (int, error) {
	process.waitOnce.Do(func() {
		waitError := process.executable.Wait()
		if waitError == nil {
			process.waitExitCode = 0
			return
		}

		exitError, isExitError := waitError.(*exec.ExitError)
		if isExitError {
			process.waitExitCode = exitError.ExitCode()
			return
		}

		process.waitExitCode = FrameworkFailureExitCode
		process.waitError = waitError
	})

	return process.waitExitCode, process.waitError
}
