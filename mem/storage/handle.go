package storage

// A Handle gives direct access to the bytes of a Storage for as long as the
// storage has not been revoked since the handle was issued.
type Handle struct {
	storage    *Storage
	generation uint64
}

// Handle issues a handle for the current generation.
func (s *Storage) Handle() *Handle {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return &Handle{storage: s, generation: s.generation}
}

// Revoke invalidates every handle issued so far.
func (s *Storage) Revoke() {
	s.lock.Lock()
	s.generation++
	s.lock.Unlock()
}

// Generation returns the current handle generation.
func (s *Storage) Generation() uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.generation
}

// Valid tells if the handle may still be used.
func (h *Handle) Valid() bool {
	if h == nil || h.storage == nil {
		return false
	}

	return h.generation == h.storage.Generation()
}

// Generation returns the generation the handle was issued in.
func (h *Handle) Generation() uint64 {
	return h.generation
}

// Bytes returns the backing array of the storage. The slice aliases the
// storage, so writes through it are visible to every other access path. It
// returns nil once the handle has been revoked.
func (h *Handle) Bytes() []byte {
	if !h.Valid() {
		return nil
	}

	return h.storage.data
}
