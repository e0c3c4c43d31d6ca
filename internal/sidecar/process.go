package sidecar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const (
	// readChunkBytes is the pipe read size for stdout and stderr.
	readChunkBytes = 32 * 1024

	// outputQueue bounds chunks waiting for the router.
	outputQueue = 64

	// defaultStopGrace is the time we wait after SIGTERM before sending SIGKILL.
	defaultStopGrace = 5 * time.Second
)

var (
	// ErrSpawn marks failures to launch the worker. No process exists afterwards.
	ErrSpawn = errors.New("sidecar spawn failed")
	// ErrStdinClosed is returned by Write after Stop closed the worker's stdin.
	ErrStdinClosed = errors.New("sidecar stdin closed")
)

// OutputKind classifies an item on the process output channel.
type OutputKind int

const (
	OutputStdout OutputKind = iota
	OutputStderr
	// OutputTerminated is the last item when the process exited.
	OutputTerminated
	// OutputError is the last item when waiting on the process failed.
	OutputError
)

func (k OutputKind) String() string {
	switch k {
	case OutputStdout:
		return "stdout"
	case OutputStderr:
		return "stderr"
	case OutputTerminated:
		return "terminated"
	case OutputError:
		return "error"
	default:
		return "unknown"
	}
}

// Output is one item from a running worker.
type Output struct {
	Kind OutputKind
	Data []byte
	// Code is the exit code for OutputTerminated, -1 when killed by a signal.
	Code   int
	Signal string
	Err    error
}

// Process is a running worker with piped stdio.
type Process struct {
	cmd    *exec.Cmd
	logger *slog.Logger
	grace  time.Duration

	writeMu sync.Mutex
	stdin   io.WriteCloser
	closed  bool

	out  chan Output
	done chan struct{}

	stopOnce sync.Once
}

func startProcess(inv Invocation, grace time.Duration, logger *slog.Logger) (*Process, error) {
	// Don't use CommandContext - termination is managed by Stop.
	cmd := exec.Command(inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: create stdin pipe: %v", ErrSpawn, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: create stdout pipe: %v", ErrSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: create stderr pipe: %v", ErrSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSpawn, inv.Path, err)
	}

	if grace <= 0 {
		grace = defaultStopGrace
	}
	p := &Process{
		cmd:    cmd,
		logger: logger.With("pid", cmd.Process.Pid),
		grace:  grace,
		stdin:  stdin,
		out:    make(chan Output, outputQueue),
		done:   make(chan struct{}),
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go p.pump(&readers, stdout, OutputStdout)
	go p.pump(&readers, stderr, OutputStderr)
	go p.wait(&readers)

	p.logger.Info("sidecar started", "path", inv.Path, "args", inv.Args)
	return p, nil
}

func (p *Process) pump(wg *sync.WaitGroup, r io.Reader, kind OutputKind) {
	defer wg.Done()
	buf := make([]byte, readChunkBytes)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.out <- Output{Kind: kind, Data: chunk}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				p.logger.Debug("sidecar pipe read ended", "stream", kind, "error", err)
			}
			return
		}
	}
}

// wait reaps the process once both readers hit EOF, as exec.Cmd requires.
func (p *Process) wait(readers *sync.WaitGroup) {
	readers.Wait()
	err := p.cmd.Wait()

	final := Output{Kind: OutputTerminated}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		final.Code = 0
	case errors.As(err, &exitErr):
		final.Code = exitErr.ExitCode()
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			final.Signal = ws.Signal().String()
		}
	default:
		final = Output{Kind: OutputError, Err: fmt.Errorf("wait for sidecar: %w", err)}
	}

	p.writeMu.Lock()
	p.closed = true
	p.writeMu.Unlock()

	p.logger.Info("sidecar exited", "code", final.Code, "signal", final.Signal, "error", final.Err)
	p.out <- final
	close(p.out)
	close(p.done)
}

// Output returns the process event stream. It yields stdout and stderr
// chunks in read order and ends with one OutputTerminated or OutputError
// item before being closed. It must be drained.
func (p *Process) Output() <-chan Output { return p.out }

// Done is closed after the process has been reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

// PID returns the operating system process id.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Write sends p to the worker's stdin. Concurrent writers are serialized so
// lines never interleave.
func (p *Process) Write(b []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.closed {
		return ErrStdinClosed
	}
	if _, err := p.stdin.Write(b); err != nil {
		return fmt.Errorf("write sidecar stdin: %w", err)
	}
	return nil
}

// Kill sends SIGKILL without waiting.
func (p *Process) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, syscall.ESRCH) && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill sidecar: %w", err)
	}
	return nil
}

// Stop closes stdin, sends SIGTERM and escalates to SIGKILL after the grace
// period. It returns once the process is reaped or ctx is done.
func (p *Process) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.writeMu.Lock()
		if !p.closed {
			p.closed = true
			_ = p.stdin.Close()
		}
		p.writeMu.Unlock()

		select {
		case <-p.done:
			return
		default:
		}

		p.logger.Info("stopping sidecar, sending SIGTERM")
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			p.logger.Debug("failed to send SIGTERM", "error", err)
		}

		grace := time.NewTimer(p.grace)
		defer grace.Stop()

		select {
		case <-p.done:
			p.logger.Info("sidecar exited after SIGTERM")
		case <-grace.C:
			p.logger.Warn("sidecar did not exit after SIGTERM, sending SIGKILL")
			if err := p.Kill(); err != nil {
				p.logger.Error("failed to send SIGKILL", "error", err)
			}
		case <-ctx.Done():
			_ = p.Kill()
		}
	})

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop sidecar: %w", ctx.Err())
	}
}
