package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const stdioCloseGrace = 2 * time.Second

// Stdio represents an MCP server spawned as a child process
type Stdio struct {
	*protocol
	correlator *Correlator
	command    string
	args       []string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	writeMux   sync.Mutex
	closed     atomic.Bool
	exited     chan struct{}
	options    *Options
}

// Kind returns transport kind
func (s *Stdio) Kind() Kind {
	return KindStdio
}

// IsAlive returns true while the process runs and the client is not closed
func (s *Stdio) IsAlive() bool {
	if s.closed.Load() {
		return false
	}
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// Close stops the process; pending calls fail with ErrClosed
func (s *Stdio) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.correlator.Close(ErrClosed)
	_ = s.stdin.Close()
	select {
	case <-s.exited:
		return nil
	case <-time.After(stdioCloseGrace):
	}
	if err := s.cmd.Process.Kill(); err != nil {
		s.logger.Debug("failed to kill process", "error", err)
	}
	select {
	case <-s.exited:
	case <-time.After(stdioCloseGrace):
		return fmt.Errorf("process %v did not exit", s.command)
	}
	return nil
}

func (s *Stdio) write(_ context.Context, data []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.writeMux.Lock()
	defer s.writeMux.Unlock()
	if _, err := s.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write to %v stdin: %w", s.command, err)
	}
	return nil
}

func (s *Stdio) readStdout(stdout io.Reader, done chan struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			s.logger.Debug("ignoring non JSON output", "line", truncate(line))
			continue
		}
		s.correlator.Deliver(line)
	}
	if err := scanner.Err(); err != nil && !s.closed.Load() {
		s.logger.Warn("stdout reader failed", "error", err)
	}
}

func (s *Stdio) readStderr(stderr io.Reader, done chan struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	for scanner.Scan() {
		s.logger.Debug("stderr", "line", scanner.Text())
	}
}

func (s *Stdio) wait(stdoutDone, stderrDone chan struct{}) {
	<-stdoutDone
	<-stderrDone
	err := s.cmd.Wait()
	if !s.closed.Load() {
		s.logger.Warn("process exited", "error", err)
	}
	close(s.exited)
	s.correlator.Close(ErrProcessExited)
}

// NewStdio spawns command; commands rejected by the allowlist are never started
func NewStdio(command string, args []string, options ...Option) (*Stdio, error) {
	opts := newOptions(KindStdio, options)
	if err := opts.Allowlist.Check(command); err != nil {
		return nil, err
	}
	cmd := exec.Command(command, args...)
	cmd.Env = append(os.Environ(), opts.Env...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr: %w", err)
	}
	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %v %v: %w", command, strings.Join(args, " "), err)
	}
	ret := &Stdio{
		command: command,
		args:    args,
		cmd:     cmd,
		stdin:   stdin,
		exited:  make(chan struct{}),
		options: opts,
	}
	ret.correlator = NewCorrelator(ret.write, opts.Logger)
	ret.protocol = newProtocol(ret.correlator, opts)
	stdoutDone, stderrDone := make(chan struct{}), make(chan struct{})
	go ret.readStdout(stdout, stdoutDone)
	go ret.readStderr(stderr, stderrDone)
	go ret.wait(stdoutDone, stderrDone)
	return ret, nil
}
