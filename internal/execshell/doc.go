// Package execshell runs shell commands end to end: spawning in isolated
// process groups, draining output through bounded streamers, racing completion
// against timeouts, and folding every execution failure into a populated
// CommandResult rather than an escaping error.
//
// ShellExecutor offers blocking Execute, merged-stream ExecuteWithStreaming,
// and ExecuteWithSeparatedStreaming, plus the ProcessLauncher and
// ProcessTerminator primitives shared with the background process registry.
package execshell
