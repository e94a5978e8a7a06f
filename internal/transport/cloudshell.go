package transport

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// CloudShell reaches workers through the gcloud cloud-shell CLI. Each call
// shells out synchronously; the supplied context's deadline bounds the
// subprocess, matching the per-operation timeout model.
type CloudShell struct {
	// GcloudPath overrides the gcloud binary location (default "gcloud").
	GcloudPath string
}

// NewCloudShell creates a transport using the gcloud binary on PATH.
func NewCloudShell() *CloudShell {
	return &CloudShell{GcloudPath: "gcloud"}
}

var _ Transport = (*CloudShell)(nil)

func (c *CloudShell) run(ctx context.Context, args ...string) (ExecResult, error) {
	cmd := exec.CommandContext(ctx, c.GcloudPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("gcloud command timed out: %w", ctx.Err())
	}
	if err != nil {
		return res, fmt.Errorf("gcloud command failed: %w (stderr: %s)", err, stderr.String())
	}
	return res, nil
}

func (c *CloudShell) ssh(ctx context.Context, t Target, script string) (ExecResult, error) {
	return c.run(ctx, "cloud-shell", "ssh", "--project", t.Project, "--command", script)
}

// Connect verifies the Cloud Shell environment is reachable.
func (c *CloudShell) Connect(ctx context.Context, t Target) error {
	res, err := c.ssh(ctx, t, ConnectTest().Script)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("connection test exited %d: %s", res.ExitCode, res.Stderr)
	}
	return nil
}

// UploadArtifacts copies each file to the target's home via cloud-shell scp.
func (c *CloudShell) UploadArtifacts(ctx context.Context, t Target, files []string) error {
	for _, f := range files {
		if _, err := c.run(ctx, "cloud-shell", "scp",
			"localhost:"+f, fmt.Sprintf("cloudshell:~/%s", f),
			"--project", t.Project); err != nil {
			return fmt.Errorf("upload %s: %w", f, err)
		}
	}
	return nil
}

// StartProcess launches the command detached on the target.
func (c *CloudShell) StartProcess(ctx context.Context, t Target, cmd Command) error {
	res, err := c.ssh(ctx, t, cmd.Script)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("start exited %d: %s", res.ExitCode, res.Stderr)
	}
	return nil
}

// StopProcess kills the named process on the target. pkill exits 1 when no
// process matched, which counts as already stopped.
func (c *CloudShell) StopProcess(ctx context.Context, t Target, process string) error {
	res, err := c.ssh(ctx, t, StopSolver(process).Script)
	if err != nil && res.ExitCode != 1 {
		return err
	}
	return nil
}

// ExecCommand runs the command and returns its full output.
func (c *CloudShell) ExecCommand(ctx context.Context, t Target, cmd Command) (ExecResult, error) {
	return c.ssh(ctx, t, cmd.Script)
}
