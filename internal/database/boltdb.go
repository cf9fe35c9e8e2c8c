package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"
)

const (
	// BucketName 运行记录表
	BucketName = "Runs"
)

// DB 封装 BoltDB 实例
type DB struct {
	conn *bbolt.DB
}

// NewBoltDB 初始化并打开数据库
func NewBoltDB(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	// Timeout 防止两个进程同时打开同一个数据库时一直阻塞
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("打开 BoltDB 失败: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("创建 Bucket 失败: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close 关闭数据库连接
func (d *DB) Close() error {
	return d.conn.Close()
}

// key 以开始时间排序: 纳秒时间戳补零到 20 位
func key(r *RunRecord) []byte {
	return []byte(fmt.Sprintf("%020d-%s", r.Started.UnixNano(), r.ID))
}

// Put 保存一次运行记录
func (d *DB) Put(r *RunRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("序列化失败: %w", err)
	}
	return d.conn.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketName)).Put(key(r), data)
	})
}

// Get 按运行 ID 查找, 不存在返回 (nil, nil)
func (d *DB) Get(id string) (*RunRecord, error) {
	var found *RunRecord
	err := d.conn.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketName)).ForEach(func(k, v []byte) error {
			var r RunRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("解析数据失败 key=%s: %w", string(k), err)
			}
			if r.ID == id {
				found = &r
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// List 返回最近的 limit 条记录, 新的在前; limit <= 0 返回全部
func (d *DB) List(limit int) ([]*RunRecord, error) {
	var out []*RunRecord
	err := d.conn.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(BucketName)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var r RunRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("解析数据失败 key=%s: %w", string(k), err)
			}
			out = append(out, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete 删除一条记录
func (d *DB) Delete(id string) error {
	r, err := d.Get(id)
	if err != nil || r == nil {
		return err
	}
	return d.conn.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketName)).Delete(key(r))
	})
}
