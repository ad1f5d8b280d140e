package uploader

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var ErrStateNotFound = errors.New("upload state not found")

const stateBucket = "uploads"

// State 一次未完成上传的本地进度，按文件指纹保存
type State struct {
	Fingerprint   string         `json:"fingerprint"`
	UploadToken   string         `json:"uploadToken"`
	UploadID      string         `json:"uploadId"`
	Key           string         `json:"key"`
	PartSize      int64          `json:"partSize"`
	PartCount     int            `json:"partCount"`
	UploadedParts map[int]string `json:"uploadedParts"` // 分片号 -> ETag
}

// MissingParts 返回尚未上传的分片号，升序
func (s *State) MissingParts() []int {
	var missing []int
	for n := 1; n <= s.PartCount; n++ {
		if _, ok := s.UploadedParts[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

type StateStore interface {
	Load(fingerprint string) (*State, error)
	Save(state *State) error
	Delete(fingerprint string) error
}

// BoltStore 用 bbolt 文件保存上传进度，进程重启后可以继续上传
type BoltStore struct {
	db *bbolt.DB
}

var _ StateStore = (*BoltStore)(nil)

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(stateBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Load(fingerprint string) (*State, error) {
	var state *State
	err := b.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(stateBucket)).Get([]byte(fingerprint))
		if raw == nil {
			return ErrStateNotFound
		}
		state = &State{}
		return json.Unmarshal(raw, state)
	})
	if err != nil {
		return nil, err
	}
	if state.UploadedParts == nil {
		state.UploadedParts = make(map[int]string)
	}
	return state, nil
}

func (b *BoltStore) Save(state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(stateBucket)).Put([]byte(state.Fingerprint), raw)
	})
}

func (b *BoltStore) Delete(fingerprint string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(stateBucket)).Delete([]byte(fingerprint))
	})
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}
