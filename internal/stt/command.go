package stt

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// exitNoPerm is EX_NOPERM from sysexits.h.
const exitNoPerm = 77

// DefaultListenTimeout bounds a single recognizer run.
const DefaultListenTimeout = 30 * time.Second

// CommandConfig configures a CommandRecognizer.
type CommandConfig struct {
	// Command is the recognizer executable (required)
	Command string

	// Args are passed to Command; "{lang}" is replaced with Language
	Args []string

	// Language is the recognition language, e.g. "en"
	Language string

	// Timeout bounds a run (defaults to DefaultListenTimeout)
	Timeout time.Duration

	// Logger overrides the default logger (optional)
	Logger *log.Logger
}

// CommandRecognizer records and transcribes with an external program, for
// example a whisper.cpp wrapper script. Every non-empty line the program
// prints is a candidate, best first.
//
// A program that exits with status 77 (EX_NOPERM), or that cannot be
// started for lack of permission, is reported as ErrPermissionDenied.
type CommandRecognizer struct {
	command string
	args    []string
	timeout time.Duration
	logger  *log.Logger
}

// NewCommandRecognizer creates a recognizer for config.
func NewCommandRecognizer(config CommandConfig) (*CommandRecognizer, error) {
	if config.Command == "" {
		return nil, errors.New("recognizer command is required")
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultListenTimeout
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	args := make([]string, len(config.Args))
	for i, a := range config.Args {
		args[i] = strings.ReplaceAll(a, "{lang}", config.Language)
	}

	return &CommandRecognizer{
		command: config.Command,
		args:    args,
		timeout: config.Timeout,
		logger:  config.Logger,
	}, nil
}

// Args returns the arguments the command is run with.
func (c *CommandRecognizer) Args() []string {
	return c.args
}

// Recognize runs the command once and returns its output lines.
func (c *CommandRecognizer) Recognize(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.Command(c.command, c.args...) //nolint:gosec

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	c.logger.Debug("running recognizer", "command", c.command, "args", c.args)

	if err := cmd.Start(); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("unable to start recognizer: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && exitErr.ExitCode() == exitNoPerm {
				return nil, ErrPermissionDenied
			}
			return nil, fmt.Errorf("recognizer failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
		}

	case <-ctx.Done():
		// Let the recorder finalize its files before killing it.
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(200 * time.Millisecond):
			_ = cmd.Process.Kill()
			<-done
		}
		return nil, ctx.Err()
	}

	var candidates []string
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			candidates = append(candidates, line)
		}
	}

	c.logger.Debug("recognizer finished", "candidates", len(candidates))
	return candidates, nil
}

var (
	_ Recognizer = (*CommandRecognizer)(nil)
	_ Recognizer = (*LineRecognizer)(nil)
)
