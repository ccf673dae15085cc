package database

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// TransfersBucket 按远程路径保存 TransferRecord
	TransfersBucket = "Transfers"
	// PassesBucket 按开始时间保存 PassRecord，Key 为 8 字节大端时间戳 + ID
	PassesBucket = "Passes"
)

// DB 封装 BoltDB 实例
type DB struct {
	conn *bbolt.DB
}

// NewBoltDB 初始化并打开数据库
func NewBoltDB(dbPath string) (*DB, error) {
	// Timeout 选项防止两个进程同时打开同一个数据库导致死锁
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w", dbPath, err)
	}

	// 确保 Bucket 存在
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{TransfersBucket, PassesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &DB{conn: db}, nil
}

// OpenReadOnly 以只读方式打开 (history 命令使用)
// 同步进程持有写锁时会在超时后返回错误
func OpenReadOnly(dbPath string) (*DB, error) {
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w", dbPath, err)
	}
	return &DB{conn: db}, nil
}

// Close 关闭数据库连接
func (d *DB) Close() error {
	return d.conn.Close()
}

// RecordTransfer 保存或更新文件的处理结果
func (d *DB) RecordTransfer(rec TransferRecord) error {
	if rec.UpdatedAt == 0 {
		rec.UpdatedAt = time.Now().UnixNano()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal transfer record: %w", err)
	}
	return d.conn.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(TransfersBucket)).Put([]byte(rec.RemotePath), data)
	})
}

// GetTransfer 获取单个文件的记录，不存在时返回 nil, nil
func (d *DB) GetTransfer(remotePath string) (*TransferRecord, error) {
	var rec *TransferRecord
	err := d.conn.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(TransfersBucket))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(remotePath))
		if v == nil {
			return nil
		}
		rec = &TransferRecord{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListTransfers 按远程路径顺序返回所有记录
func (d *DB) ListTransfers() ([]TransferRecord, error) {
	var result []TransferRecord
	err := d.conn.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(TransfersBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec TransferRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode transfer record %s: %w", string(k), err)
			}
			result = append(result, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordPass 保存一轮扫描的汇总
func (d *DB) RecordPass(rec PassRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal pass record: %w", err)
	}
	return d.conn.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(PassesBucket)).Put(passKey(rec), data)
	})
}

// LastPass 返回最近一轮扫描，没有记录时返回 nil, nil
func (d *DB) LastPass() (*PassRecord, error) {
	var rec *PassRecord
	err := d.conn.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(PassesBucket))
		if b == nil {
			return nil
		}
		_, v := b.Cursor().Last()
		if v == nil {
			return nil
		}
		rec = &PassRecord{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func passKey(rec PassRecord) []byte {
	key := make([]byte, 8, 8+len(rec.ID))
	binary.BigEndian.PutUint64(key, uint64(rec.StartedAt))
	return append(key, rec.ID...)
}
