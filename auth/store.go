package auth

import (
	"context"
	"sort"
	"sync"
)

// TokenStore 持久化各提供方的 OAuth token。
type TokenStore interface {
	// Get 返回 provider 的 token，不存在时返回 ErrTokenNotFound
	Get(ctx context.Context, provider string) (Token, error)
	// Save 覆盖 provider 的 token
	Save(ctx context.Context, provider string, tok Token) error
	// Delete 删除 provider 的 token，不存在时不报错
	Delete(ctx context.Context, provider string) error
	// List 返回已保存 token 的提供方名称，按字母序
	List(ctx context.Context) ([]string, error)
}

// MemoryTokenStore 基于内存的 TokenStore，重启后丢失。
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

// NewMemoryTokenStore 创建内存 token 存储
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]Token)}
}

func (s *MemoryTokenStore) Get(_ context.Context, provider string) (Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[provider]
	if !ok {
		return Token{}, ErrTokenNotFound
	}
	tok.Provider = provider
	return tok, nil
}

func (s *MemoryTokenStore) Save(_ context.Context, provider string, tok Token) error {
	if tok.Type == "" {
		tok.Type = TokenTypeOAuth
	}
	tok.Provider = provider
	s.mu.Lock()
	s.tokens[provider] = tok
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, provider string) error {
	s.mu.Lock()
	delete(s.tokens, provider)
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.tokens), nil
}

func sortedKeys(m map[string]Token) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
