package prover

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"time"
)

// runResult carries the raw outcome of one backend invocation. The runner
// never interprets backend output; classification stays in the engine.
type runResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Elapsed   time.Duration
	TimedOut  bool
	Truncated bool
}

// runner executes backend binaries with a hard wall-clock timeout and
// bounded output capture.
type runner struct {
	timeout   time.Duration
	maxOutput int64
}

// run spawns the binary and waits for it under the timeout. A non-zero exit
// is a result, not an error; errors mean the process could not run at all.
func (r *runner) run(ctx context.Context, binary string, args ...string) (runResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, binary, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: r.maxOutput}
	stderr := &limitedWriter{w: &stderrBuf, max: r.maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	started := time.Now()
	err := cmd.Run()
	res := runResult{
		Stdout:    stdoutBuf.String(),
		Stderr:    stderrBuf.String(),
		Elapsed:   time.Since(started),
		Truncated: stdout.truncated || stderr.truncated,
	}

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			res.TimedOut = true
			res.ExitCode = -1
			return res, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	res.ExitCode = 0
	return res, nil
}

// limitedWriter caps total bytes written, silently discarding the overflow
// so a chatty backend cannot exhaust memory.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		return n, nil
	}
	if remaining := lw.max - lw.written; int64(n) > remaining {
		lw.truncated = true
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
