package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/koeck/voicegpt/internal/tts"
)

// stopGrace is how long a process gets to exit after an interrupt before it
// is killed.
const stopGrace = 100 * time.Millisecond

// maxOutputSize caps the audio a single synthesis may produce.
const maxOutputSize = 20 * 1024 * 1024

// run executes name with args, feeding stdin, and returns its stdout. When ctx
// is done the process is interrupted, then killed after stopGrace.
func run(ctx context.Context, timeout time.Duration, stdin io.Reader, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = stopGrace

	// stdin is set before start so the process never sees an empty pipe
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, tts.NewTTSError(tts.ErrorCodeEngineTimeout, name+" did not finish", ctxErr)
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, tts.NewTTSError(tts.ErrorCodeEngineUnavailable, name+" not found", errors.Join(tts.ErrEngineNotAvailable, err))
		}
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, strings.TrimSpace(stderr.String()))
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%s produced no output, stderr: %s", name, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() > maxOutputSize {
		return nil, fmt.Errorf("%s output too large: %d bytes (max %d)", name, stdout.Len(), maxOutputSize)
	}
	return stdout.Bytes(), nil
}

// lookPath reports whether name can be executed.
func lookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return tts.NewTTSError(tts.ErrorCodeEngineUnavailable, name+" not found in PATH", errors.Join(tts.ErrEngineNotAvailable, err))
	}
	return nil
}

func checkText(text string, limit int) error {
	if strings.TrimSpace(text) == "" {
		return tts.NewTTSError(tts.ErrorCodeInvalidInput, "text cannot be empty", nil)
	}
	if n := len([]rune(text)); n > limit {
		return tts.NewTTSError(tts.ErrorCodeTextTooLong, fmt.Sprintf("%d characters (max %d)", n, limit), nil)
	}
	return nil
}
