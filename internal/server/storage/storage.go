// Package storage persists chunks and world metadata and serves persisted
// chunks to the streaming scheduler.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	getter "github.com/hashicorp/go-getter"

	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

// Store kinds accepted by Open.
const (
	KindRegion = "region"
	KindSQLite = "sqlite"
)

// ErrChunkNotFound is returned by Store.Load for positions with no stored chunk.
var ErrChunkNotFound = errors.New("chunk not found")

// Store is a chunk persistence backend. Implementations are safe for
// concurrent use.
type Store interface {
	Load(pos gen.ChunkPos) (*gen.ChunkData, error)
	Save(pos gen.ChunkPos, c *gen.ChunkData) error
	Positions() ([]gen.ChunkPos, error)
	Close() error
}

// Open opens the store of the given kind rooted at dir, creating it if needed.
func Open(kind, dir string, height int) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create world directory %s: %w", dir, err)
	}

	switch kind {
	case KindRegion, "":
		return OpenRegionStore(filepath.Join(dir, "region"), height)
	case KindSQLite:
		return OpenSQLiteStore(filepath.Join(dir, "chunks.db"), height)
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}

// Level is the world metadata written next to the chunk store.
type Level struct {
	Seed      uint64 `json:"seed"`
	Height    int    `json:"height"`
	Generator string `json:"generator"`
	Noise     string `json:"noise"`
	Store     string `json:"store"`
}

const levelFile = "level.json"

// LoadLevel reads level.json from dir. It returns nil, nil if the file does not exist.
func LoadLevel(dir string) (*Level, error) {
	path := filepath.Join(dir, levelFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read level: %w", err)
	}

	var lvl Level
	if err := json.Unmarshal(data, &lvl); err != nil {
		return nil, fmt.Errorf("parse level: %w", err)
	}
	return &lvl, nil
}

// SaveLevel writes level.json to dir atomically.
func SaveLevel(dir string, lvl *Level) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create world directory %s: %w", dir, err)
	}
	return atomicWriteJSON(filepath.Join(dir, levelFile), lvl)
}

// atomicWriteJSON marshals v to JSON and writes it atomically using a temp file + rename.
func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Fetch downloads or unpacks a world from src into dst. src is any
// go-getter address: a local path, an archive URL, git::, s3:: and so on.
func Fetch(ctx context.Context, src, dst string) error {
	if err := getter.Get(dst, src, getter.WithContext(ctx)); err != nil {
		return fmt.Errorf("fetch world %s: %w", src, err)
	}
	return nil
}

// Exists reports whether a world directory is present at dir.
func Exists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
