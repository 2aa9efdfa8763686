// Package mmap maps index files read-only into memory.
//
//	m, err := mmap.Open("vectors.anx")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// Unix uses mmap(2) and madvise(2). Windows uses CreateFileMapping and
// MapViewOfFile; Advise is a no-op there.
//
// Close is idempotent. Callers must not touch the slice returned by Bytes
// after Close returns.
package mmap
