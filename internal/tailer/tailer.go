// Package tailer produces a restartable stream of raw lines from an
// append-only log file.
//
// DESIGN: Thin wrapper around nxadm/tail (the Go equivalent of tail -F):
//   - Follow+ReOpen survives rotation and truncation without re-emitting
//     consumed lines
//   - MustExist=false waits for the file to appear instead of failing
//   - First open seeks to the end: only lines appended after startup count
//
// Retry/backoff and cancellation live here so the parser never sees them.
package tailer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nxadm/tail"
	"github.com/rs/zerolog/log"
)

// reopenDelay bounds how fast we re-arm the tail after it dies.
const reopenDelay = 2 * time.Second

// Tailer follows a single append-only log file.
type Tailer struct {
	path string
}

// New creates a tailer for the given file path. The file does not need to
// exist yet.
func New(path string) *Tailer {
	return &Tailer{path: path}
}

// Path returns the followed file path.
func (t *Tailer) Path() string { return t.path }

// Run follows the file and calls emit for every complete line until ctx is
// cancelled. Transient failures (file missing, rotation, truncation) are
// absorbed by re-arming the tail; Run returns nil on cancellation and a
// non-nil error only when the stream is permanently inaccessible.
func (t *Tailer) Run(ctx context.Context, emit func(line string)) error {
	for {
		fatal, err := t.follow(ctx, emit)
		if ctx.Err() != nil {
			return nil
		}
		if fatal {
			return fmt.Errorf("tail %s: %w", t.path, err)
		}
		if err != nil {
			log.Warn().Err(err).Str("path", t.path).Msg("tail interrupted, re-arming")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reopenDelay):
		}
	}
}

// follow runs one tail session. It returns when the session ends; fatal
// reports whether the failure is unrecoverable.
func (t *Tailer) follow(ctx context.Context, emit func(line string)) (fatal bool, err error) {
	tf, err := tail.TailFile(t.path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		// TailFile with MustExist=false only fails on structural problems
		// (bad path, permissions), which retrying will not fix.
		return true, err
	}
	defer tf.Cleanup()

	log.Info().Str("path", t.path).Msg("following access log")

	for {
		select {
		case <-ctx.Done():
			_ = tf.Stop()
			return false, nil
		case line, ok := <-tf.Lines:
			if !ok {
				return false, tf.Err()
			}
			if line.Err != nil {
				log.Warn().Err(line.Err).Str("path", t.path).Msg("read error on log line")
				continue
			}
			emit(line.Text)
		}
	}
}
