package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/hupe1980/annex/internal/mmap"
)

const (
	lockSuffix     = ".lock"
	tempPattern    = ".tmp-*"
	lockRetryDelay = 10 * time.Millisecond
)

// LocalStore implements BlobStore using the local file system.
//
// Writers hold an exclusive advisory lock on "<name>.lock" until they commit
// or abort; readers take a shared lock while mapping the file. Commits are a
// write to a temporary sibling, fsync, and rename.
type LocalStore struct {
	root string
}

// NewLocalStore creates a new LocalStore rooted at the given directory.
// An empty root resolves names against the working directory.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open maps the blob read-only.
func (s *LocalStore) Open(ctx context.Context, name string) (Blob, error) {
	path := s.path(name)

	if _, err := s.stat(path); err != nil {
		return nil, err
	}

	lock := flock.New(path + lockSuffix)
	if err := acquire(ctx, lock.TryRLockContext); err != nil {
		return nil, err
	}
	defer lock.Unlock() //nolint:errcheck

	// The mapping stays valid after a later rename replaces the file.
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	_ = m.Advise(mmap.AccessSequential)

	return &localBlob{m: m}, nil
}

// Create starts an atomic write of the blob.
func (s *LocalStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	path := s.path(name)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if fi, err := os.Stat(path); err == nil && !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}

	lock := flock.New(path + lockSuffix)
	if err := acquire(ctx, lock.TryLockContext); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+tempPattern)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	return &localWritableBlob{f: f, path: path, lock: lock}, nil
}

// Stat describes the blob at name.
func (s *LocalStore) Stat(_ context.Context, name string) (Info, error) {
	fi, err := s.stat(s.path(name))
	if err != nil {
		return Info{}, err
	}
	return Info{Name: name, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (s *LocalStore) stat(path string) (fs.FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}
	return fi, nil
}

// Delete removes the blob and its lock file.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	path := s.path(name)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	_ = os.Remove(path + lockSuffix)
	return nil
}

// List returns the blobs under root whose slash-separated name has prefix.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	root := s.root
	if root == "" {
		root = "."
	}

	var names []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || strings.HasSuffix(p, lockSuffix) || strings.Contains(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if name := filepath.ToSlash(rel); strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(names)
	return names, nil
}

func acquire(ctx context.Context, try func(context.Context, time.Duration) (bool, error)) error {
	ok, err := try(ctx, lockRetryDelay)
	if err != nil {
		return err
	}
	if !ok {
		return ctx.Err()
	}
	return nil
}

type localBlob struct {
	m *mmap.Mapping
}

func (b *localBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return b.m.ReadAt(p, off)
}

func (b *localBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	data := b.m.Bytes()
	if off < 0 || off >= int64(len(data)) {
		return nil, io.EOF
	}
	end := min(off+length, int64(len(data)))
	return io.NopCloser(io.NewSectionReader(b.m, off, end-off)), nil
}

func (b *localBlob) Close() error {
	return b.m.Close()
}

func (b *localBlob) Size() int64 {
	return int64(b.m.Size())
}

func (b *localBlob) Bytes() ([]byte, error) {
	data := b.m.Bytes()
	if data == nil && b.m.Size() > 0 {
		return nil, mmap.ErrClosed
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

type localWritableBlob struct {
	f    *os.File
	path string
	lock *flock.Flock
	done bool
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	if w.done {
		return 0, os.ErrClosed
	}
	return w.f.Write(p)
}

func (w *localWritableBlob) Sync() error {
	if w.done {
		return os.ErrClosed
	}
	return w.f.Sync()
}

// Close fsyncs the temporary file and renames it over the target.
func (w *localWritableBlob) Close() error {
	if w.done {
		return os.ErrClosed
	}
	w.done = true
	defer w.lock.Unlock() //nolint:errcheck

	tmp := w.f.Name()
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	syncDir(filepath.Dir(w.path))
	return nil
}

func (w *localWritableBlob) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	defer w.lock.Unlock() //nolint:errcheck

	_ = w.f.Close()
	return os.Remove(w.f.Name())
}

// syncDir persists the rename. Not every platform can fsync a directory.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
