package storage

// PrefixDB wraps a DB and prepends a fixed prefix to all keys. This carves
// one underlying database into the non-overlapping per-store namespaces
// the chainstate layout requires.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB creates a new PrefixDB wrapping inner with the given prefix.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	p := make([]byte, len(prefix))
	copy(p, prefix)
	return &PrefixDB{inner: inner, prefix: p}
}

// prefixed returns key with the prefix prepended.
func (p *PrefixDB) prefixed(key []byte) []byte {
	out := make([]byte, len(p.prefix)+len(key))
	copy(out, p.prefix)
	copy(out[len(p.prefix):], key)
	return out
}

// Get retrieves a value by key.
func (p *PrefixDB) Get(key []byte) ([]byte, error) {
	return p.inner.Get(p.prefixed(key))
}

// Put stores a key-value pair.
func (p *PrefixDB) Put(key, value []byte) error {
	return p.inner.Put(p.prefixed(key), value)
}

// Delete removes a key.
func (p *PrefixDB) Delete(key []byte) error {
	return p.inner.Delete(p.prefixed(key))
}

// Has checks if a key exists.
func (p *PrefixDB) Has(key []byte) (bool, error) {
	return p.inner.Has(p.prefixed(key))
}

// ForEach iterates over all keys with the given prefix within this
// PrefixDB's namespace. The callback receives keys with the namespace
// prefix stripped, so callers see only their logical keyspace.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	fullPrefix := p.prefixed(prefix)
	return p.inner.ForEach(fullPrefix, func(key, value []byte) error {
		stripped := key[len(p.prefix):]
		return fn(stripped, value)
	})
}

// NewBatch creates a batch that prepends the prefix to all keys, delegating
// to the inner DB's batch for atomic commits.
func (p *PrefixDB) NewBatch() Batch {
	return &prefixBatch{inner: p.inner.NewBatch(), prefix: p.prefix}
}

type prefixBatch struct {
	inner  Batch
	prefix []byte
}

func (pb *prefixBatch) Put(key, value []byte) error {
	out := make([]byte, len(pb.prefix)+len(key))
	copy(out, pb.prefix)
	copy(out[len(pb.prefix):], key)
	return pb.inner.Put(out, value)
}

func (pb *prefixBatch) Delete(key []byte) error {
	out := make([]byte, len(pb.prefix)+len(key))
	copy(out, pb.prefix)
	copy(out[len(pb.prefix):], key)
	return pb.inner.Delete(out)
}

func (pb *prefixBatch) Commit() error {
	return pb.inner.Commit()
}

// NewIterator returns a snapshot iterator scoped to this namespace, with
// the namespace prefix stripped from returned keys.
func (p *PrefixDB) NewIterator(prefix []byte) (Iterator, error) {
	it, err := p.inner.NewIterator(p.prefixed(prefix))
	if err != nil {
		return nil, err
	}
	return &prefixIterator{inner: it, strip: len(p.prefix)}, nil
}

type prefixIterator struct {
	inner Iterator
	strip int
}

func (pi *prefixIterator) Valid() bool { return pi.inner.Valid() }

func (pi *prefixIterator) Next() { pi.inner.Next() }

func (pi *prefixIterator) Key() []byte {
	return pi.inner.Key()[pi.strip:]
}

func (pi *prefixIterator) Value() ([]byte, error) { return pi.inner.Value() }

func (pi *prefixIterator) ValueSize() int { return pi.inner.ValueSize() }

func (pi *prefixIterator) Close() { pi.inner.Close() }

// DeleteAll removes all keys under this PrefixDB's namespace, as one batch.
func (p *PrefixDB) DeleteAll() error {
	batch := p.inner.NewBatch()
	err := p.inner.ForEach(p.prefix, func(key, _ []byte) error {
		return batch.Delete(key)
	})
	if err != nil {
		return err
	}
	return batch.Commit()
}

// Close is a no-op — the outer DB manages its own lifecycle.
func (p *PrefixDB) Close() error {
	return nil
}
