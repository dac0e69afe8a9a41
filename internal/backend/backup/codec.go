// Package backup turns the entry collection into a single portable artifact and back,
// and reconciles an imported artifact with the live collection.
//
// An artifact is a pretty-printed JSON array of TransportEntry, compressed with zstd or
// gzip. Images travel inline as base64 so the artifact does not depend on the blob store
// it was exported from.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MabzGamesStudio/StorageLogger/internal/models"
)

// ErrCorruptArtifact is returned by Decode when the artifact cannot be decompressed or
// parsed. Nothing has been changed when it is returned.
var ErrCorruptArtifact = errors.New("corrupt backup artifact")

const artifactBaseName = "entries_backup.json"

// BlobReader is the part of a blob store Export needs.
type BlobReader interface {
	Read(ctx context.Context, name string) ([]byte, error)
}

type Config struct {
	Compression Compression `yaml:"compression"`
}

func DefaultConfig() Config {
	return Config{Compression: CompressionZstd}
}

func (c Config) WithDefaults() Config {
	if c.Compression == "" {
		c.Compression = CompressionZstd
	}
	return c
}

type Codec struct {
	compression Compression
}

func NewCodec(config Config) (*Codec, error) {
	config = config.WithDefaults()
	if err := config.Compression.Validate(); err != nil {
		return nil, err
	}
	return &Codec{compression: config.Compression}, nil
}

// Filename is the suggested name for an exported artifact.
func (c *Codec) Filename() string {
	if c.compression == CompressionGzip {
		return artifactBaseName + ".gz"
	}
	return artifactBaseName + ".zst"
}

// Export builds the artifact for entries. An image that cannot be read is left out of
// its entry; the export itself only fails if serialization does.
func (c *Codec) Export(ctx context.Context, entries []models.Entry, blobs BlobReader) ([]byte, error) {
	transport := make([]TransportEntry, 0, len(entries))
	for _, e := range entries {
		var image []byte
		if e.HasImage() {
			data, err := blobs.Read(ctx, *e.ImageFilename)
			if err != nil {
				slog.Warn("exporting entry without image", "id", e.ID, "filename", *e.ImageFilename, "error", err)
			} else {
				image = data
			}
		}
		transport = append(transport, NewTransportEntry(e, image))
	}

	data, err := MarshalTransport(transport)
	if err != nil {
		return nil, err
	}
	artifact, err := compress(c.compression, data)
	if err != nil {
		return nil, err
	}
	slog.Info("exported backup", "entries", len(entries), "compression", c.compression, "bytes", len(artifact))
	return artifact, nil
}

// Decode decompresses and parses an artifact. Either failure yields ErrCorruptArtifact
// and no entries.
func (c *Codec) Decode(artifact []byte) ([]TransportEntry, error) {
	if len(artifact) == 0 {
		return nil, fmt.Errorf("%w: empty artifact", ErrCorruptArtifact)
	}
	data, err := decompress(artifact)
	if err != nil {
		slog.Error("failed to decompress backup", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCorruptArtifact, err)
	}
	var entries []TransportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Error("failed to parse backup", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCorruptArtifact, err)
	}
	return entries, nil
}

// MarshalTransport renders entries as the artifact's JSON payload, two-space indented.
func MarshalTransport(entries []TransportEntry) ([]byte, error) {
	if entries == nil {
		entries = []TransportEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backup entries: %w", err)
	}
	return data, nil
}
