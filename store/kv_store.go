package store

import (
	"encoding/binary"

	tmjson "github.com/tendermint/tendermint/libs/json"
	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"
	leveldb "github.com/tendermint/tm-db/goleveldb"
)

var (
	roundKeyPrefix     = []byte("round/")
	violationKeyPrefix = []byte("violation/")
	latestKey          = []byte("latest")
	stateKey           = []byte("state")
)

// KVStore persists rounds as canonical JSON in a tm-db backend.
type KVStore struct {
	kvDB tmdb.DB

	logger log.Logger
}

var _ Store = (*KVStore)(nil)

// NewKVStore opens (or creates) the goleveldb-backed store under dir.
func NewKVStore(name, dir string, logger log.Logger) (*KVStore, error) {
	levelDB, err := leveldb.NewDB(name, dir)
	if err != nil {
		return nil, err
	}
	return NewKVStoreWithDB(levelDB, logger), nil
}

func NewKVStoreWithDB(kvdb tmdb.DB, logger log.Logger) *KVStore {
	return &KVStore{kvDB: kvdb, logger: logger}
}

func roundKey(height uint64) []byte {
	return append(roundKeyPrefix, be64(height)...)
}

func violationKey(height uint64) []byte {
	return append(violationKeyPrefix, be64(height)...)
}

func be64(v uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, v)
	return bz
}

func (kv *KVStore) SaveRound(record *RoundRecord) error {
	bz, err := tmjson.Marshal(record)
	if err != nil {
		return err
	}

	batch := kv.kvDB.NewBatch()
	defer batch.Close()
	if err := batch.Set(roundKey(record.Height), bz); err != nil {
		return err
	}
	if err := batch.Set(latestKey, be64(record.Height)); err != nil {
		return err
	}
	if err := batch.WriteSync(); err != nil {
		return err
	}

	kv.logger.Debug("saved round", "height", record.Height, "proposal", record.ProposalHash)
	return nil
}

func (kv *KVStore) LoadRound(height uint64) (*RoundRecord, error) {
	bz, err := kv.kvDB.Get(roundKey(height))
	if err != nil {
		return nil, err
	}
	if len(bz) == 0 {
		return nil, ErrRoundNotFound
	}
	record := &RoundRecord{}
	if err := tmjson.Unmarshal(bz, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (kv *KVStore) LatestHeight() (uint64, bool, error) {
	bz, err := kv.kvDB.Get(latestKey)
	if err != nil {
		return 0, false, err
	}
	if len(bz) != 8 {
		return 0, false, nil
	}
	return binary.BigEndian.Uint64(bz), true, nil
}

func (kv *KVStore) SaveState(record *StateRecord) error {
	bz, err := tmjson.Marshal(record)
	if err != nil {
		return err
	}
	return kv.kvDB.SetSync(stateKey, bz)
}

func (kv *KVStore) LoadState() (*StateRecord, error) {
	bz, err := kv.kvDB.Get(stateKey)
	if err != nil {
		return nil, err
	}
	if len(bz) == 0 {
		return nil, ErrStateNotFound
	}
	record := &StateRecord{}
	if err := tmjson.Unmarshal(bz, record); err != nil {
		return nil, err
	}
	return record, nil
}

// SaveViolation appends the record to the height's violation list.
func (kv *KVStore) SaveViolation(record *ViolationRecord) error {
	existing, err := kv.LoadViolations(record.Height)
	if err != nil {
		return err
	}
	existing = append(existing, *record)
	bz, err := tmjson.Marshal(existing)
	if err != nil {
		return err
	}
	return kv.kvDB.SetSync(violationKey(record.Height), bz)
}

func (kv *KVStore) LoadViolations(height uint64) ([]ViolationRecord, error) {
	bz, err := kv.kvDB.Get(violationKey(height))
	if err != nil {
		return nil, err
	}
	if len(bz) == 0 {
		return nil, nil
	}
	var records []ViolationRecord
	if err := tmjson.Unmarshal(bz, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (kv *KVStore) Close() error {
	return kv.kvDB.Close()
}
