package timeline

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/brennhill/soulbrowser-agent/internal/eventstore"
	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
)

// ArtifactSink is the write-only contract for artifact delivery; the
// storage layout behind it belongs to the delivery service, so no concrete
// implementation ships with this package.
type ArtifactSink interface {
	Put(kind, id string) (WriteCloser, error)
}

// WriteCloser mirrors io.WriteCloser without importing io for this single
// use, keeping ArtifactSink's contract self-contained.
type WriteCloser interface {
	Write(p []byte) (int, error)
	Close() error
}

// ExportJSONL serializes envelopes one per line to path, creating parent
// directories as needed. A line whose JSON encoding exceeds
// maxPayloadBytes aborts the export with Oversize; any other I/O failure is
// reported as Io.
func ExportJSONL(envelopes []eventstore.Envelope, path string, maxPayloadBytes int) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return soulerr.Wrap(soulerr.Io, "failed to create export directory", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return soulerr.Wrap(soulerr.Io, "failed to create export file", err)
	}
	defer f.Close()

	for _, env := range envelopes {
		line, err := json.Marshal(env)
		if err != nil {
			return soulerr.Wrap(soulerr.Io, "failed to marshal event envelope", err)
		}
		if maxPayloadBytes > 0 && len(line) > maxPayloadBytes {
			return soulerr.New(soulerr.Oversize, "event envelope exceeds max_payload_bytes")
		}
		line = append(line, '\n')
		if _, err := f.Write(line); err != nil {
			return soulerr.Wrap(soulerr.Io, "failed to write export line", err)
		}
	}
	return nil
}
