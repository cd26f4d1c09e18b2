package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileDiscussionStore 每条讨论一个 JSON 文件，保存在 <BaseDir>/discussions/ 下。
// 适合单节点部署.
type FileDiscussionStore struct {
	baseDir string
	mu      sync.RWMutex
	closed  bool
	now     func() time.Time
}

// NewFileDiscussionStore 创建文件讨论存储
func NewFileDiscussionStore(config StoreConfig) (*FileDiscussionStore, error) {
	baseDir := filepath.Join(config.BaseDir, "discussions")
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create discussion store directory: %w", err)
	}
	return &FileDiscussionStore{baseDir: baseDir, now: time.Now}, nil
}

// Close 关闭存储
func (s *FileDiscussionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping 检查目录是否可访问
func (s *FileDiscussionStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	_, err := os.Stat(s.baseDir)
	return err
}

func (s *FileDiscussionStore) path(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

// Create 创建讨论
func (s *FileDiscussionStore) Create(ctx context.Context, d *Discussion) (string, error) {
	c, err := prepareCreate(d, s.now())
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrStoreClosed
	}
	if _, err := os.Stat(s.path(c.ID)); err == nil {
		return "", ErrInvalidInput
	}
	if err := s.write(c); err != nil {
		return "", err
	}
	commit(d, c)
	return c.ID, nil
}

// Update 覆盖已有讨论
func (s *FileDiscussionStore) Update(ctx context.Context, d *Discussion) error {
	c, err := prepareUpdate(d, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	old, err := s.read(c.ID)
	if err != nil {
		return err
	}
	if err := checkTransition(old.Status, c.Status); err != nil {
		return err
	}

	c.CreatedAt = old.CreatedAt
	if err := s.write(c); err != nil {
		return err
	}
	commit(d, c)
	return nil
}

// Get 按 ID 读取讨论
func (s *FileDiscussionStore) Get(ctx context.Context, id string) (*Discussion, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.read(id)
}

// ListByRoom 扫描目录并按创建时间倒序返回房间内的讨论
func (s *FileDiscussionStore) ListByRoom(ctx context.Context, roomID string, limit int) ([]*Discussion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	result := make([]*Discussion, 0)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		d, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		if d.RoomID == roomID {
			result = append(result, d)
		}
	}
	sortNewestFirst(result)

	if limit = normalizeLimit(limit); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *FileDiscussionStore) read(id string) (*Discussion, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var d Discussion
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal discussion %s: %w", id, err)
	}
	return &d, nil
}

// write 原子写: 写入临时文件后重命名
func (s *FileDiscussionStore) write(d *Discussion) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	path := s.path(d.ID)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}
