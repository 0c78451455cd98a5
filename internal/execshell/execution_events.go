package execshell

// ExecutionEventObserver receives lifecycle notifications for command execution.
type ExecutionEventObserver interface {
	// ExecutionStarted notifies observers that a command is about to spawn.
	ExecutionStarted(request CommandRequest)
	// ExecutionCompleted notifies observers that execution finished and supplies the result.
	ExecutionCompleted(request CommandRequest, result CommandResult)
}

// noopExecutionEventObserver discards all execution events.
type noopExecutionEventObserver struct{}

// ExecutionStarted implements ExecutionEventObserver for the no-op observer.
func (noopExecutionEventObserver) ExecutionStarted(CommandRequest) {}

// ExecutionCompleted implements ExecutionEventObserver for the no-op observer.
func (noopExecutionEventObserver) ExecutionCompleted(CommandRequest, CommandResult) {}
