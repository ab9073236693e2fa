package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	clienterrors "github.com/Joelisking/projectx-client/internal/errors"
	"github.com/Joelisking/projectx-client/session"
	"github.com/redis/go-redis/v9"
)

var (
	_ session.Repo       = (*RedisSessionRepo)(nil)
	_ session.TokenStore = (*RedisSessionRepo)(nil)
)

// RedisSessionRepo keeps the session and its companion token under a key prefix
// so several clients on one machine can share a Redis instance.
type RedisSessionRepo struct {
	client *redis.Client
	prefix string
}

// NewClient connects to addr and pings it.
func NewClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[redisrepo NewClient] ping %s: %w", addr, err)
	}
	return client, nil
}

func New(client *redis.Client, prefix string) *RedisSessionRepo {
	return &RedisSessionRepo{client: client, prefix: prefix}
}

func (r *RedisSessionRepo) sessionKey() string {
	return fmt.Sprintf("%s:session", r.prefix)
}

func (r *RedisSessionRepo) tokenKey() string {
	return fmt.Sprintf("%s:token", r.prefix)
}

func (r *RedisSessionRepo) Load(ctx context.Context) (*session.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, clienterrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[redisrepo Load] %w", err)
	}

	s := &session.Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("[redisrepo Load] decoding session: %w", err)
	}
	return s, nil
}

func (r *RedisSessionRepo) Save(ctx context.Context, s *session.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("[redisrepo Save] encoding session: %w", err)
	}
	if err := r.client.Set(ctx, r.sessionKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("[redisrepo Save] %w", err)
	}
	return nil
}

func (r *RedisSessionRepo) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.sessionKey()).Err(); err != nil {
		return fmt.Errorf("[redisrepo Delete] %w", err)
	}
	return nil
}

func (r *RedisSessionRepo) GetToken(ctx context.Context) (string, error) {
	token, err := r.client.Get(ctx, r.tokenKey()).Result()
	if errors.Is(err, redis.Nil) || (err == nil && token == "") {
		return "", clienterrors.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("[redisrepo GetToken] %w", err)
	}
	return token, nil
}

func (r *RedisSessionRepo) SetToken(ctx context.Context, token string) error {
	if err := r.client.Set(ctx, r.tokenKey(), token, 0).Err(); err != nil {
		return fmt.Errorf("[redisrepo SetToken] %w", err)
	}
	return nil
}

func (r *RedisSessionRepo) DeleteToken(ctx context.Context) error {
	if err := r.client.Del(ctx, r.tokenKey()).Err(); err != nil {
		return fmt.Errorf("[redisrepo DeleteToken] %w", err)
	}
	return nil
}
