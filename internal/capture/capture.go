package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/voxkeep/voxkeep/internal/models"
	"github.com/voxkeep/voxkeep/internal/wav"
)

// chunkSize is the read granularity of the stdout pump
const chunkSize = 4096

// openGrace is how long Start watches for an immediate process exit so
// busy/permission failures surface to the caller instead of a dead stream.
const openGrace = 200 * time.Millisecond

// Chunk is one captured slice of raw PCM. Data is owned by the receiver;
// the pump copies out of its read buffer before delivery, and that copy is
// the only point where bytes cross out of the capture domain.
type Chunk struct {
	Data []byte
	Time time.Time
}

// ChunkFunc receives captured chunks. Called from the pump goroutine.
type ChunkFunc func(Chunk)

// Device is the hardware capture collaborator. Exactly one component owns
// a Device for its lifetime.
type Device interface {
	// Start opens the stream and begins delivering chunks to fn
	Start(fn ChunkFunc) error
	// Stop closes the stream and waits for delivery to end
	Stop() error
}

// execDevice records by spawning a capture process that writes raw PCM to
// stdout (pw-record on Linux, ffmpeg elsewhere), mirroring how the rest of
// the tool shells out for audio work.
type execDevice struct {
	name string
	args []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stderr bytes.Buffer
	done   chan struct{}
}

// NewDevice creates a capture device for the named source. An empty device
// selects the platform default input.
func NewDevice(device string, f wav.Format) Device {
	name, args := captureCommand(device, f)
	return &execDevice{name: name, args: args}
}

// Start spawns the capture process and the stdout pump. If the process
// exits within the open grace period the failure is classified as
// permission-denied or start-failed from its stderr.
func (d *execDevice) Start(fn ChunkFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd != nil {
		return fmt.Errorf("%w: device already open", models.ErrStartFailed)
	}

	cmd := exec.Command(d.name, d.args...)
	cmd.Stderr = &d.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStartFailed, err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %s not installed", models.ErrStartFailed, d.name)
		}
		return fmt.Errorf("%w: %v", models.ErrStartFailed, err)
	}

	d.cmd = cmd
	d.done = make(chan struct{})

	go d.pump(stdout, fn)

	select {
	case <-d.done:
		err := d.classifyExit()
		d.cmd = nil
		return err
	case <-time.After(openGrace):
		return nil
	}
}

// pump reads the raw PCM stream and hands owned copies to fn
func (d *execDevice) pump(r io.Reader, fn ChunkFunc) {
	defer close(d.done)

	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			owned := make([]byte, n)
			copy(owned, buf[:n])
			fn(Chunk{Data: owned, Time: time.Now()})
		}
		if err != nil {
			return
		}
	}
}

// Stop interrupts the capture process and waits for the pump to drain
func (d *execDevice) Stop() error {
	d.mu.Lock()
	cmd := d.cmd
	done := d.done
	d.cmd = nil
	d.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if err := interruptProcess(cmd.Process); err != nil {
		cmd.Process.Kill()
	}

	// Wait for the stream to close, then reap; force-kill if the
	// process ignores the interrupt.
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		cmd.Process.Kill()
		<-done
	}
	cmd.Wait()
	return nil
}

func (d *execDevice) classifyExit() error {
	d.cmd.Wait()
	msg := strings.ToLower(d.stderr.String())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "denied") ||
		strings.Contains(msg, "not authorized") {
		return fmt.Errorf("%w: %s", models.ErrPermissionDenied, firstLine(d.stderr.String()))
	}
	return fmt.Errorf("%w: %s exited: %s", models.ErrStartFailed, d.name, firstLine(d.stderr.String()))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if s == "" {
		return "no diagnostic output"
	}
	return s
}
