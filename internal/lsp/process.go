package lsp

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// termGracePeriod is how long Stop waits after a termination signal before
// killing the process outright.
const termGracePeriod = 5 * time.Second

// ServerProcess supervises a spawned language server: it owns the three
// pipes, observes exit, and guarantees the child is never left running
// once Stop returns.
type ServerProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	logger *slog.Logger

	exitCh   chan struct{}
	exitErr  error
	stopOnce sync.Once
}

// ProcessOption configures a ServerProcess.
type ProcessOption func(*ServerProcess)

// WithProcessLogger sets the logger used by the supervisor.
func WithProcessLogger(logger *slog.Logger) ProcessOption {
	return func(p *ServerProcess) {
		p.logger = logger
	}
}

// StartServerProcess spawns the language server with all three standard
// streams piped. dir becomes the child's working directory when non-empty.
func StartServerProcess(path string, args []string, dir string, options ...ProcessOption) (*ServerProcess, error) {
	cmd := exec.Command(path, args...)
	cmd.Dir = dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	p := &ServerProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		logger: slog.Default(),
		exitCh: make(chan struct{}),
	}
	for _, opt := range options {
		opt(p)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("start %s: %w", path, err)
	}

	p.logger.Debug("language server started", "path", path, "pid", cmd.Process.Pid)
	go p.monitor()

	return p, nil
}

// Stdin returns the child's input stream.
func (p *ServerProcess) Stdin() io.WriteCloser { return p.stdin }

// Stdout returns the child's output stream.
func (p *ServerProcess) Stdout() io.Reader { return p.stdout }

// Stderr returns the child's diagnostic stream.
func (p *ServerProcess) Stderr() io.Reader { return p.stderr }

// Exited is closed once the child process has been reaped.
func (p *ServerProcess) Exited() <-chan struct{} { return p.exitCh }

// ExitErr reports how the process ended. Valid after Exited is closed.
func (p *ServerProcess) ExitErr() error { return p.exitErr }

// monitor reaps the child and records its exit status.
func (p *ServerProcess) monitor() {
	p.exitErr = p.cmd.Wait()
	if p.exitErr != nil {
		p.logger.Debug("language server process ended", "err", p.exitErr)
	}
	close(p.exitCh)
}

// Stop terminates the child with escalation: close stdin, signal
// termination, and kill after a bounded grace period. Safe to call more
// than once and after the process has already exited.
func (p *ServerProcess) Stop() {
	p.stopOnce.Do(p.stop)
}

func (p *ServerProcess) stop() {
	p.stdin.Close()

	select {
	case <-p.exitCh:
		return
	default:
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Signal delivery can fail on platforms without SIGTERM support or
		// when the process is already gone; fall through to kill.
		p.logger.Debug("terminate signal failed", "err", err)
	}

	select {
	case <-p.exitCh:
		return
	case <-time.After(termGracePeriod):
	}

	p.logger.Warn("language server did not terminate, killing", "pid", p.cmd.Process.Pid)
	if err := p.cmd.Process.Kill(); err != nil {
		p.logger.Error("kill language server", "err", err)
	}
	<-p.exitCh
}
