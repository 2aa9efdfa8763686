package annex

// Close releases the engine. Later calls return nil; every other operation
// returns ErrClosed.
func (ix *Index) Close() error {
	if ix == nil {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return nil
	}
	ix.closed = true
	ix.idx = nil

	return ix.pm.Close()
}
