// Package transport defines the narrow capability boundary used to reach
// remote workers, plus a typed command builder for the fixed set of remote
// operations. The coordinator only ever talks to the Transport interface,
// so tests run against a mock without a real remote endpoint.
package transport

import (
	"context"
)

// Target identifies the remote endpoint for one worker.
type Target struct {
	Name    string
	Project string
	Zone    string
	User    string
}

// ExecResult carries the outcome of a remote command.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Transport is the consumed capability set. All calls are synchronous and
// must honor the deadline carried by ctx; none are fire-and-forget.
type Transport interface {
	// Connect verifies the target is reachable.
	Connect(ctx context.Context, t Target) error
	// UploadArtifacts copies local files to the target's home directory.
	UploadArtifacts(ctx context.Context, t Target, files []string) error
	// StartProcess launches the command's script detached on the target.
	StartProcess(ctx context.Context, t Target, cmd Command) error
	// StopProcess terminates the named remote process.
	StopProcess(ctx context.Context, t Target, process string) error
	// ExecCommand runs the command's script and returns its output.
	ExecCommand(ctx context.Context, t Target, cmd Command) (ExecResult, error)
}
