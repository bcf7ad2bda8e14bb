package main

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tutorvox/tutorvox/pkg/core/live"
)

// fileSnapshotProvider reads the work surface from a file on each tick. A
// PNG becomes an image snapshot, anything else is treated as editor text.
// Unchanged content is skipped so the model only sees real edits.
type fileSnapshotProvider struct {
	path string

	mu       sync.Mutex
	lastHash [sha256.Size]byte
}

func newFileSnapshotProvider(path string) *fileSnapshotProvider {
	return &fileSnapshotProvider{path: path}
}

func (p *fileSnapshotProvider) Snapshot(_ context.Context) (live.Snapshot, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return live.Snapshot{}, err
	}

	hash := sha256.Sum256(data)
	p.mu.Lock()
	unchanged := hash == p.lastHash
	p.lastHash = hash
	p.mu.Unlock()
	if unchanged {
		// Empty data tells the multiplexer to skip this tick.
		return live.Snapshot{Kind: live.SnapshotText}, nil
	}

	kind := live.SnapshotText
	if strings.EqualFold(filepath.Ext(p.path), ".png") {
		kind = live.SnapshotImage
	}
	return live.Snapshot{Kind: kind, Data: data}, nil
}
