package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileTokenStore 把全部 token 保存在一个 JSON 文档中，以提供方名称为键。
// 文件权限为 0600，写入采用临时文件 + 重命名的原子方式。
//
// 文件格式:
//
//	{"anthropic": {"type": "oauth", "access": "...", "refresh": "...", "expires": 1735689600000}}
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

// NewFileTokenStore 创建文件 token 存储，目录不存在时自动创建
func NewFileTokenStore(path string) (*FileTokenStore, error) {
	if path == "" {
		return nil, fmt.Errorf("token file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}
	return &FileTokenStore{path: path}, nil
}

// Path 返回 token 文件路径
func (s *FileTokenStore) Path() string { return s.path }

func (s *FileTokenStore) Get(_ context.Context, provider string) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return Token{}, err
	}
	tok, ok := all[provider]
	if !ok {
		return Token{}, ErrTokenNotFound
	}
	tok.Provider = provider
	return tok, nil
}

func (s *FileTokenStore) Save(_ context.Context, provider string, tok Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	if tok.Type == "" {
		tok.Type = TokenTypeOAuth
	}
	all[provider] = tok
	return s.write(all)
}

func (s *FileTokenStore) Delete(_ context.Context, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := all[provider]; !ok {
		return nil
	}
	delete(all, provider)
	return s.write(all)
}

func (s *FileTokenStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	return sortedKeys(all), nil
}

// load 读取整个文档，文件不存在时返回空 map
func (s *FileTokenStore) load() (map[string]Token, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]Token), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	all := make(map[string]Token)
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return all, nil
}

func (s *FileTokenStore) write(all map[string]Token) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return os.Rename(tmp, s.path)
}
