// Package sessionlog records a coordinator run's aggregated output to
// a zstd-compressed file on disk, so a long run can be replayed
// without re-solving. It is purely additive: a coordinator that never
// configures a session log behaves exactly as if this package didn't
// exist.
package sessionlog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Writer appends aggregated lines to a zstd-compressed file. The zero
// value is not usable; construct with Open.
type Writer struct {
	f   *os.File
	enc *zstd.Encoder
}

// Open creates (or truncates) the file at path and wraps it in a
// streaming zstd encoder. Call Close when the run ends to flush the
// final frame.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sessionlog: open %s: %w", path, err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sessionlog: new encoder: %w", err)
	}
	return &Writer{f: f, enc: enc}, nil
}

// WriteLine appends one line (a newline is added) to the log.
func (w *Writer) WriteLine(line string) error {
	if _, err := w.enc.Write([]byte(line)); err != nil {
		return fmt.Errorf("sessionlog: write: %w", err)
	}
	if _, err := w.enc.Write([]byte("\n")); err != nil {
		return fmt.Errorf("sessionlog: write: %w", err)
	}
	return nil
}

// Close flushes the zstd trailer and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.enc.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("sessionlog: close encoder: %w", err)
	}
	return w.f.Close()
}

// Replay decompresses the file at path and returns its lines, for
// tooling or tests that need to read a session log back.
func Replay(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sessionlog: open %s: %w", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("sessionlog: new decoder: %w", err)
	}
	defer dec.Close()

	var lines []string
	var cur []byte
	buf := make([]byte, 4096)
	for {
		n, rerr := dec.Read(buf)
		for i := 0; i < n; i++ {
			if buf[i] == '\n' {
				lines = append(lines, string(cur))
				cur = nil
				continue
			}
			cur = append(cur, buf[i])
		}
		if rerr != nil {
			if len(cur) > 0 {
				lines = append(lines, string(cur))
			}
			if errors.Is(rerr, io.EOF) {
				return lines, nil
			}
			return lines, fmt.Errorf("sessionlog: read: %w", rerr)
		}
	}
}
