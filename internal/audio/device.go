package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// waitDelay bounds how long a killed device command may hold its pipes open.
const waitDelay = time.Second

// Source is a microphone. Open acquires the device; the caller must Close
// the returned stream on every path, which releases the device.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Player plays a WAV file and blocks until playback finishes or ctx is done.
type Player interface {
	Play(ctx context.Context, wav []byte) error
}

// CommandSource captures raw PCM from the stdout of an external recorder,
// e.g. "arecord -q -t raw -f S16_LE -r 16000 -c 1".
type CommandSource struct {
	Args []string
}

// NewCommandSource creates a Source running args.
func NewCommandSource(args []string) *CommandSource {
	return &CommandSource{Args: args}
}

// Open starts the recorder process.
func (s *CommandSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if len(s.Args) == 0 {
		return nil, errors.New("capture command not configured")
	}

	cmd := exec.CommandContext(ctx, s.Args[0], s.Args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout: %w", err)
	}
	cmd.WaitDelay = waitDelay
	stream := &commandStream{cmd: cmd, stdout: stdout}
	cmd.Stderr = &stream.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", s.Args[0], err)
	}
	slog.Debug("microphone opened", "command", strings.Join(s.Args, " "), "pid", cmd.Process.Pid)
	return stream, nil
}

type commandStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer

	once sync.Once
	err  error
}

func (c *commandStream) Read(p []byte) (int, error) {
	return c.stdout.Read(p)
}

// Close stops the recorder and reaps it. The recorder is killed rather than
// drained; its exit status is only reported if it failed on its own.
func (c *commandStream) Close() error {
	c.once.Do(func() {
		_ = c.cmd.Process.Kill()
		err := c.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			c.err = fmt.Errorf("stopping recorder: %w", err)
		}
		slog.Debug("microphone released", "stderr", strings.TrimSpace(c.stderr.String()))
	})
	return c.err
}

// CommandPlayer pipes WAV data into an external player, e.g. "aplay -q".
type CommandPlayer struct {
	Args []string
}

// NewCommandPlayer creates a Player running args.
func NewCommandPlayer(args []string) *CommandPlayer {
	return &CommandPlayer{Args: args}
}

// Available reports whether the player binary can be found.
func (p *CommandPlayer) Available() error {
	if len(p.Args) == 0 {
		return errors.New("playback command not configured")
	}
	if _, err := exec.LookPath(p.Args[0]); err != nil {
		return fmt.Errorf("playback command: %w", err)
	}
	return nil
}

// Play runs the player with wav on stdin. Cancelling ctx kills the player,
// which is how in-flight speech is stopped.
func (p *CommandPlayer) Play(ctx context.Context, wav []byte) error {
	if len(p.Args) == 0 {
		return errors.New("playback command not configured")
	}

	cmd := exec.CommandContext(ctx, p.Args[0], p.Args[1:]...)
	cmd.Stdin = bytes.NewReader(wav)
	cmd.WaitDelay = waitDelay
	out, err := cmd.CombinedOutput()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", p.Args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
