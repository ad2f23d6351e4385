// Package fingerprint spools an upload to disk while hashing it.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ChunkSize bounds how much of the upload is held in memory at once.
const ChunkSize = 1 << 20

// File is a spooled upload.
type File struct {
	Path string
	Hash string // hex SHA-256 of the bytes written to Path
	Size int64
}

// Stream copies r into a new file in dir (name pattern "upload-*"+suffix)
// while computing its SHA-256. On error the returned File still carries the
// path of any partially written file; removing it is the caller's job.
func Stream(ctx context.Context, r io.Reader, dir, suffix string) (File, error) {
	if r == nil {
		return File{}, errors.New("fingerprint: nil reader")
	}

	f, err := os.CreateTemp(dir, "upload-*"+suffix)
	if err != nil {
		return File{}, fmt.Errorf("fingerprint: create temp file: %w", err)
	}
	out := File{Path: f.Name()}

	hasher := sha256.New()
	w := io.MultiWriter(f, hasher)
	buf := make([]byte, ChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			_ = f.Close()
			return out, err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				_ = f.Close()
				return out, fmt.Errorf("fingerprint: write temp file: %w", err)
			}
			out.Size += int64(n)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			_ = f.Close()
			return out, fmt.Errorf("fingerprint: read upload: %w", readErr)
		}
	}

	if err := f.Close(); err != nil {
		return out, fmt.Errorf("fingerprint: close temp file: %w", err)
	}

	out.Hash = hex.EncodeToString(hasher.Sum(nil))
	return out, nil
}
