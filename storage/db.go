// Package storage implements the node's byte-prefixed persistent KV layer
// on top of goleveldb, the same on-disk engine lineage the teacher uses.
package storage

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var ErrNotFound = leveldb.ErrNotFound

// Database is the minimal KV surface the rest of the node depends on.
// Keeping it an interface lets tests substitute an in-memory map.
type Database interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	NewBatch() Batch
	NewIteratorWithPrefix(prefix []byte) Iterator
	Close() error
}

// Batch groups writes for atomic commit.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	Write() error
	Reset()
}

// Iterator walks keys sharing a prefix in lexicographic order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
}

type levelDB struct {
	db *leveldb.DB
}

// Open opens (or creates) a goleveldb database at path. path == "" opens an
// in-memory store, convenient for tests and genesis-only dry runs.
func Open(path string) (Database, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(lvlstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, &opt.Options{
			OpenFilesCacheCapacity: 256,
			BlockCacheCapacity:     8 * opt.MiB,
			WriteBuffer:            4 * opt.MiB,
		})
	}
	if err != nil {
		return nil, err
	}
	return &levelDB{db: db}, nil
}

func (l *levelDB) Get(key []byte) ([]byte, error) { return l.db.Get(key, nil) }
func (l *levelDB) Has(key []byte) (bool, error)    { return l.db.Has(key, nil) }
func (l *levelDB) Put(key, value []byte) error     { return l.db.Put(key, value, nil) }
func (l *levelDB) Delete(key []byte) error          { return l.db.Delete(key, nil) }
func (l *levelDB) Close() error                    { return l.db.Close() }

func (l *levelDB) NewBatch() Batch {
	return &levelBatch{db: l.db, b: new(leveldb.Batch)}
}

func (l *levelDB) NewIteratorWithPrefix(prefix []byte) Iterator {
	it := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	return &levelIterator{it: it}
}

type levelBatch struct {
	db *leveldb.DB
	b  *leveldb.Batch
}

func (b *levelBatch) Put(key, value []byte) { b.b.Put(key, value) }
func (b *levelBatch) Delete(key []byte)     { b.b.Delete(key) }
func (b *levelBatch) Write() error          { return b.db.Write(b.b, nil) }
func (b *levelBatch) Reset()                { b.b.Reset() }

type levelIterator struct {
	it interface {
		Next() bool
		Key() []byte
		Value() []byte
		Release()
	}
}

func (it *levelIterator) Next() bool    { return it.it.Next() }
func (it *levelIterator) Key() []byte   { return it.it.Key() }
func (it *levelIterator) Value() []byte { return it.it.Value() }
func (it *levelIterator) Release()      { it.it.Release() }

// IsNotFound reports whether err indicates a missing key, matching
// go-ethereum's style of a package-level predicate rather than errors.Is
// boilerplate at every call site.
func IsNotFound(err error) bool {
	return errors.Is(err, leveldb.ErrNotFound)
}
