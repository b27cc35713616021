// Package checkpoint persists the full record set to disk for crash-safe,
// resumable indexing.
package checkpoint

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/hyperjump/styleseek/internal/models"
)

// File layout: 4-byte magic, 1-byte version, then a zstd stream of record
// frames. Each frame is length-prefixed fields in little-endian order so the
// format stays stable across in-memory representation changes.
var magic = [4]byte{'S', 'S', 'C', 'K'}

const version = 1

// Manager saves and loads record-set snapshots at a fixed path.
type Manager struct {
	path string
}

// NewManager creates a manager writing to path. Parent directories are created on save.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the checkpoint location.
func (m *Manager) Path() string {
	return m.path
}

// Save serializes records to the checkpoint path atomically: the snapshot is
// written to a temp file in the same directory and renamed over the target, so
// a crash mid-write never leaves a half-written checkpoint.
func (m *Manager) Save(records []*models.Record) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".ckpt-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpPath)
	}()

	if err := writeSnapshot(tmp, records); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint. A missing file is a normal state, reported as
// ok=false with no error.
func (m *Manager) Load() (records []*models.Record, ok bool, err error) {
	f, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	records, err = readSnapshot(f)
	if err != nil {
		return nil, false, err
	}
	return records, true, nil
}

func writeSnapshot(f *os.File, records []*models.Record) error {
	if _, err := f.Write(magic[:]); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if _, err := f.Write([]byte{version}); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("create compressor: %w", err)
	}
	w := bufio.NewWriter(enc)

	if err := binary.Write(w, binary.LittleEndian, uint32(len(records))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, rec := range records {
		if err := writeRecord(w, rec); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush checkpoint: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close compressor: %w", err)
	}
	return nil
}

func writeRecord(w io.Writer, rec *models.Record) error {
	if err := writeString(w, rec.ID); err != nil {
		return fmt.Errorf("write id: %w", err)
	}
	if err := writeString(w, rec.Content); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(rec.Metadata))); err != nil {
		return fmt.Errorf("write metadata count: %w", err)
	}
	for _, k := range sortedKeys(rec.Metadata) {
		if err := writeString(w, k); err != nil {
			return fmt.Errorf("write metadata key: %w", err)
		}
		if err := writeString(w, rec.Metadata[k]); err != nil {
			return fmt.Errorf("write metadata value: %w", err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, rec.IndexedAt.UnixNano()); err != nil {
		return fmt.Errorf("write indexed_at: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(rec.Embedding))); err != nil {
		return fmt.Errorf("write embedding len: %w", err)
	}
	for _, v := range rec.Embedding {
		if err := binary.Write(w, binary.LittleEndian, math.Float32bits(v)); err != nil {
			return fmt.Errorf("write embedding: %w", err)
		}
	}
	return nil
}

func readSnapshot(f *os.File) ([]*models.Record, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(header[:4]) != string(magic[:]) {
		return nil, fmt.Errorf("not a checkpoint file")
	}
	if header[4] != version {
		return nil, fmt.Errorf("unsupported checkpoint version %d", header[4])
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create decompressor: %w", err)
	}
	defer dec.Close()
	r := bufio.NewReader(dec)

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	records := make([]*models.Record, 0, count)
	for i := uint32(0); i < count; i++ {
		rec, err := readRecord(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readRecord(r io.Reader) (*models.Record, error) {
	id, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("read id: %w", err)
	}
	content, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	var metaCount uint32
	if err := binary.Read(r, binary.LittleEndian, &metaCount); err != nil {
		return nil, fmt.Errorf("read metadata count: %w", err)
	}
	meta := make(map[string]string, metaCount)
	for i := uint32(0); i < metaCount; i++ {
		k, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("read metadata key: %w", err)
		}
		v, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("read metadata value: %w", err)
		}
		meta[k] = v
	}
	var indexedAt int64
	if err := binary.Read(r, binary.LittleEndian, &indexedAt); err != nil {
		return nil, fmt.Errorf("read indexed_at: %w", err)
	}
	var dim uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read embedding len: %w", err)
	}
	emb := make([]float32, dim)
	for i := range emb {
		var bits uint32
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return nil, fmt.Errorf("read embedding: %w", err)
		}
		emb[i] = math.Float32frombits(bits)
	}
	return &models.Record{
		ID:        id,
		Content:   content,
		Metadata:  meta,
		IndexedAt: time.Unix(0, indexedAt),
		Embedding: emb,
	}, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
