package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hupe1980/annex/blobstore"
	"github.com/hupe1980/annex/engine"
	"github.com/hupe1980/annex/resource"
)

// Info describes one saved or loaded index file.
type Info struct {
	Name string
	// Bytes is the size of the file including the header.
	Bytes int64
	// PayloadBytes is the size of the uncompressed engine blob.
	PayloadBytes int64
	Compression  Compression
}

// Option configures a Manager.
type Option func(*Manager)

// WithCompression sets the compression used by Save.
func WithCompression(c Compression) Option {
	return func(m *Manager) {
		m.compression = c
	}
}

// WithResourceController bounds memory and IO throughput with rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(m *Manager) {
		m.rc = rc
	}
}

// WithIOLimit throttles blob reads and writes to bytesPerSec.
func WithIOLimit(bytesPerSec int64) Option {
	return func(m *Manager) {
		cfg := m.rc.Config()
		cfg.IOLimitBytesPerSec = bytesPerSec
		m.rc = resource.NewController(cfg)
	}
}

// WithMemoryLimit bounds the buffers held while loading.
func WithMemoryLimit(bytes int64) Option {
	return func(m *Manager) {
		cfg := m.rc.Config()
		cfg.MemoryLimitBytes = bytes
		m.rc = resource.NewController(cfg)
	}
}

// Manager reads and writes whole index trees as single blobs.
//
// A file is a FileHeader followed by the (optionally compressed) output of
// engine.WriteIndex. Writes go through WritableBlob, so a failed Save leaves
// any previous file untouched.
//
// The Manager is safe for concurrent use.
type Manager struct {
	store       blobstore.BlobStore
	compression Compression
	rc          *resource.Controller

	mu     sync.RWMutex
	closed bool
}

// NewManager creates a manager on store. A nil store means local files
// addressed by path.
func NewManager(store blobstore.BlobStore, opts ...Option) *Manager {
	if store == nil {
		store = blobstore.NewLocalStore("")
	}

	m := &Manager{store: store}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying blob store.
func (m *Manager) Store() blobstore.BlobStore { return m.store }

// Compression returns the compression used by Save.
func (m *Manager) Compression() Compression { return m.compression }

func (m *Manager) check(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrManagerClosed
	}
	return ctx.Err()
}

// Exists reports whether a blob is stored under name. Names that resolve to
// something other than a blob return blobstore.ErrNotRegular.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	if err := m.check(ctx); err != nil {
		return false, err
	}

	_, err := m.store.Stat(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, blobstore.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Save serializes idx and stores it under name, replacing any previous content.
func (m *Manager) Save(ctx context.Context, name string, idx engine.Index) (Info, error) {
	if err := m.check(ctx); err != nil {
		return Info{}, err
	}

	data, hdr, err := Marshal(idx, m.compression)
	if err != nil {
		return Info{}, err
	}

	wb, err := m.store.Create(ctx, name)
	if err != nil {
		return Info{}, fmt.Errorf("persistence: create %s: %w", name, err)
	}

	var w io.Writer = wb
	if m.rc.Config().IOLimitBytesPerSec > 0 {
		w = resource.NewRateLimitedWriter(ctx, wb, m.rc)
	}

	if _, err := w.Write(data); err != nil {
		_ = wb.Abort()
		return Info{}, fmt.Errorf("persistence: write %s: %w", name, err)
	}
	if err := wb.Sync(); err != nil {
		_ = wb.Abort()
		return Info{}, fmt.Errorf("persistence: sync %s: %w", name, err)
	}
	if err := wb.Close(); err != nil {
		return Info{}, fmt.Errorf("persistence: commit %s: %w", name, err)
	}

	return Info{
		Name:         name,
		Bytes:        int64(len(data)),
		PayloadBytes: int64(hdr.PayloadLen),
		Compression:  hdr.Compression,
	}, nil
}

// Load reads the index tree stored under name.
func (m *Manager) Load(ctx context.Context, name string) (engine.Index, Info, error) {
	if err := m.check(ctx); err != nil {
		return nil, Info{}, err
	}

	blob, err := m.store.Open(ctx, name)
	if err != nil {
		return nil, Info{}, fmt.Errorf("persistence: open %s: %w", name, err)
	}
	defer blob.Close()

	size := blob.Size()
	if size < HeaderSize {
		return nil, Info{}, fmt.Errorf("%w: %s is %d bytes", ErrTruncated, name, size)
	}

	head := make([]byte, HeaderSize)
	if _, err := blob.ReadAt(ctx, head, 0); err != nil {
		return nil, Info{}, fmt.Errorf("persistence: read header of %s: %w", name, err)
	}

	var hdr FileHeader
	if err := hdr.UnmarshalBinary(head); err != nil {
		return nil, Info{}, err
	}
	if hdr.StoredLen != uint64(size-HeaderSize) {
		return nil, Info{}, fmt.Errorf("%w: %s holds %d payload bytes, header says %d", ErrTruncated, name, size-HeaderSize, hdr.StoredLen)
	}

	reserve := int64(hdr.StoredLen)
	if hdr.Compression != CompressionNone {
		reserve += int64(hdr.PayloadLen)
	}
	if hdr.PayloadLen > 1<<62 || reserve < 0 {
		return nil, Info{}, fmt.Errorf("%w: implausible payload length %d", ErrCorrupt, hdr.PayloadLen)
	}
	if err := m.rc.AcquireMemory(ctx, reserve); err != nil {
		return nil, Info{}, fmt.Errorf("persistence: load %s: %w", name, err)
	}
	defer m.rc.ReleaseMemory(reserve)

	data, err := m.readAll(ctx, blob)
	if err != nil {
		return nil, Info{}, fmt.Errorf("persistence: read %s: %w", name, err)
	}

	idx, err := unmarshalBody(hdr, data[HeaderSize:])
	if err != nil {
		return nil, Info{}, err
	}

	return idx, Info{
		Name:         name,
		Bytes:        size,
		PayloadBytes: int64(hdr.PayloadLen),
		Compression:  hdr.Compression,
	}, nil
}

// LoadIDMap is Load for files whose root must be an id map.
func (m *Manager) LoadIDMap(ctx context.Context, name string) (*engine.IDMap, Info, error) {
	idx, info, err := m.Load(ctx, name)
	if err != nil {
		return nil, Info{}, err
	}

	idmap, ok := idx.(*engine.IDMap)
	if !ok {
		return nil, Info{}, fmt.Errorf("%w: found %s", ErrWrongRoot, engine.Family(idx))
	}
	return idmap, info, nil
}

func (m *Manager) readAll(ctx context.Context, blob blobstore.Blob) ([]byte, error) {
	if m.rc.Config().IOLimitBytesPerSec <= 0 {
		return blobstore.ReadAll(ctx, blob)
	}

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	buf := make([]byte, blob.Size())
	if _, err := io.ReadFull(resource.NewRateLimitedReader(ctx, rc, m.rc), buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close marks the manager closed. The store is not closed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Marshal encodes idx into a complete index file.
func Marshal(idx engine.Index, c Compression) ([]byte, FileHeader, error) {
	var payload bytes.Buffer
	cw := NewChecksumWriter(&payload)
	if err := engine.WriteIndex(cw, idx); err != nil {
		return nil, FileHeader{}, fmt.Errorf("persistence: encode: %w", err)
	}

	stored, used, err := compress(payload.Bytes(), c)
	if err != nil {
		return nil, FileHeader{}, fmt.Errorf("persistence: compress: %w", err)
	}

	hdr := FileHeader{
		Magic:       MagicNumber,
		Version:     Version,
		Compression: used,
		PayloadLen:  uint64(cw.Len()),
		StoredLen:   uint64(len(stored)),
		Checksum:    cw.Sum(),
	}
	head, _ := hdr.MarshalBinary()

	out := make([]byte, 0, len(head)+len(stored))
	out = append(out, head...)
	out = append(out, stored...)
	return out, hdr, nil
}

// Unmarshal decodes a complete index file produced by Marshal.
func Unmarshal(data []byte) (engine.Index, error) {
	var hdr FileHeader
	if err := hdr.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	if hdr.StoredLen != uint64(len(data)-HeaderSize) {
		return nil, fmt.Errorf("%w: %d payload bytes, header says %d", ErrTruncated, len(data)-HeaderSize, hdr.StoredLen)
	}
	return unmarshalBody(hdr, data[HeaderSize:])
}

func unmarshalBody(hdr FileHeader, stored []byte) (engine.Index, error) {
	payload, err := decompress(stored, hdr.Compression, hdr.PayloadLen)
	if err != nil {
		return nil, err
	}
	if err := verifyChecksum(payload, hdr.Checksum); err != nil {
		return nil, err
	}

	idx, err := engine.ReadIndex(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return idx, nil
}
