package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	// HeaderSize is the size of the canonical 16-bit PCM WAV header
	HeaderSize = 44

	bytesPerSample = 2 // LINEAR16
	bitsPerSample  = 16
	pcmFormatTag   = 1
)

// Format describes the PCM stream inside the container
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond returns the raw PCM data rate for the format
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * bytesPerSample
}

// Duration converts a PCM payload size to playback time
func (f Format) Duration(dataBytes int64) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(float64(dataBytes) / float64(bps) * float64(time.Second))
}

// WriteHeader emits a PCM WAV header for dataLen payload bytes. Written
// with dataLen 0 when the file is opened; PatchSizes fixes it up at commit.
func WriteHeader(w io.Writer, f Format, dataLen uint32) error {
	bps := uint32(f.BytesPerSecond())
	blockAlign := uint16(f.Channels * bytesPerSample)

	if _, err := w.Write([]byte("RIFF")); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(36+dataLen)); err != nil {
		return err
	}
	if _, err := w.Write([]byte("WAVE")); err != nil {
		return err
	}

	if _, err := w.Write([]byte("fmt ")); err != nil {
		return err
	}
	for _, v := range []interface{}{
		uint32(16),
		uint16(pcmFormatTag),
		uint16(f.Channels),
		uint32(f.SampleRate),
		bps,
		blockAlign,
		uint16(bitsPerSample),
	} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	if _, err := w.Write([]byte("data")); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, dataLen)
}

// PatchSizes rewrites the RIFF and data chunk sizes of an open WAV file to
// match its current length. Called once before the atomic rename.
func PatchSizes(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if fi.Size() < HeaderSize {
		return 0, fmt.Errorf("file too short for a WAV header: %d bytes", fi.Size())
	}
	dataLen := uint32(fi.Size() - HeaderSize)

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], 36+dataLen)
	if _, err := f.WriteAt(buf[:], 4); err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(buf[:], dataLen)
	if _, err := f.WriteAt(buf[:], 40); err != nil {
		return 0, err
	}

	return int64(dataLen), nil
}

// PatchFile opens path and runs PatchSizes, syncing before close. Used by
// the recovery scanner on temp files from a previous process.
func PatchFile(path string) (int64, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := PatchSizes(f)
	if err != nil {
		return 0, err
	}
	return n, f.Sync()
}
