package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore 把 token 保存在一个 Redis Hash 中，字段为提供方名称。
// 适合多实例部署共享凭据。
type RedisTokenStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisTokenStore 创建 Redis token 存储。keyPrefix 为空时使用 "chika:tokens:"。
func NewRedisTokenStore(client redis.UniversalClient, keyPrefix string) *RedisTokenStore {
	if keyPrefix == "" {
		keyPrefix = "chika:tokens:"
	}
	return &RedisTokenStore{client: client, key: keyPrefix + "oauth"}
}

func (s *RedisTokenStore) Get(ctx context.Context, provider string) (Token, error) {
	data, err := s.client.HGet(ctx, s.key, provider).Bytes()
	if errors.Is(err, redis.Nil) {
		return Token{}, ErrTokenNotFound
	}
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	tok.Provider = provider
	return tok, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, provider string, tok Token) error {
	if tok.Type == "" {
		tok.Type = TokenTypeOAuth
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, provider, data).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisTokenStore) Delete(ctx context.Context, provider string) error {
	if err := s.client.HDel(ctx, s.key, provider).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisTokenStore) List(ctx context.Context) ([]string, error) {
	names, err := s.client.HKeys(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	sort.Strings(names)
	return names, nil
}
