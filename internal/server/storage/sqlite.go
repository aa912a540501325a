package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/OCharnyshevich/voxel-stream/internal/server/world/anvil"
	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

// SQLiteStore keeps zstd-compressed chunk NBT in a single SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	height int

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// OpenSQLiteStore opens or creates the database at path.
func OpenSQLiteStore(path string, height int) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open chunk database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS chunks (
			x INTEGER NOT NULL,
			z INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (x, z)
		);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init chunk database: %w", err)
		}
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &SQLiteStore{db: db, height: height, enc: enc, dec: dec}, nil
}

// Load reads the chunk at pos.
func (s *SQLiteStore) Load(pos gen.ChunkPos) (*gen.ChunkData, error) {
	var blob []byte
	err := s.db.QueryRow("SELECT data FROM chunks WHERE x = ? AND z = ?", pos.X, pos.Z).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChunkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query chunk (%d, %d): %w", pos.X, pos.Z, err)
	}

	raw, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress chunk (%d, %d): %w", pos.X, pos.Z, err)
	}
	stored, c, err := anvil.DecodeChunk(raw, s.height)
	if err != nil {
		return nil, err
	}
	if stored != pos {
		return nil, fmt.Errorf("chunk (%d, %d): row holds chunk (%d, %d)", pos.X, pos.Z, stored.X, stored.Z)
	}
	return c, nil
}

// Save inserts or replaces the chunk at pos.
func (s *SQLiteStore) Save(pos gen.ChunkPos, c *gen.ChunkData) error {
	raw, err := anvil.EncodeChunk(pos, c)
	if err != nil {
		return err
	}
	blob := s.enc.EncodeAll(raw, nil)

	if _, err := s.db.Exec(
		"INSERT OR REPLACE INTO chunks (x, z, data) VALUES (?, ?, ?)",
		pos.X, pos.Z, blob,
	); err != nil {
		return fmt.Errorf("save chunk (%d, %d): %w", pos.X, pos.Z, err)
	}
	return nil
}

// Positions lists every stored chunk, sorted by x then z.
func (s *SQLiteStore) Positions() ([]gen.ChunkPos, error) {
	rows, err := s.db.Query("SELECT x, z FROM chunks ORDER BY x, z")
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var out []gen.ChunkPos
	for rows.Next() {
		var pos gen.ChunkPos
		if err := rows.Scan(&pos.X, &pos.Z); err != nil {
			return nil, fmt.Errorf("scan chunk position: %w", err)
		}
		out = append(out, pos)
	}
	return out, rows.Err()
}

// Close releases the database and codecs.
func (s *SQLiteStore) Close() error {
	s.dec.Close()
	if err := s.enc.Close(); err != nil {
		_ = s.db.Close()
		return fmt.Errorf("close zstd encoder: %w", err)
	}
	return s.db.Close()
}
