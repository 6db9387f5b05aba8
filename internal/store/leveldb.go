package store

import (
	"fmt"

	"community-energy/internal/ledger"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type LevelDBStore struct {
	db *leveldb.DB
}

func OpenLevelDB(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Append(b ledger.Block) error {
	raw, err := encodeBlock(b)
	if err != nil {
		return err
	}
	return s.db.Put(blockKey(b.Index), raw, nil)
}

func (s *LevelDBStore) Load() ([]ledger.Block, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(keyPrefix)), nil)
	defer iter.Release()

	var blocks []ledger.Block
	for iter.Next() {
		b, err := decodeBlock(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		blocks = append(blocks, b)
	}
	return blocks, iter.Error()
}

func (s *LevelDBStore) Close() error { return s.db.Close() }
