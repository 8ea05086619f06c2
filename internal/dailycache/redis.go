package dailycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/tarot-miniapp/internal/config"
	"github.com/magabrotheeeer/tarot-miniapp/internal/models"
)

// RedisStore хранит записи в redis без TTL: смена дня сама даёт новый ключ.
type RedisStore struct {
	Db *redis.Client
}

// InitRedis подключается к redis и проверяет соединение.
func InitRedis(ctx context.Context, cfg config.RedisConnection) (*RedisStore, error) {
	const op = "dailycache.InitRedis"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &RedisStore{Db: db}, nil
}

// Lookup реализует Store.
func (s *RedisStore) Lookup(ctx context.Context, userID int, day string) (*models.DailyCardRecord, error) {
	const op = "dailycache.RedisStore.Lookup"

	var rec models.DailyCardRecord
	found, err := s.get(ctx, Key(NamespaceCard, userID, day), &rec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, nil
	}

	var it models.Interpretation
	found, err = s.get(ctx, Key(NamespaceInterpretation, userID, day), &it)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if found {
		rec.Interpretation = &it
	}
	return &rec, nil
}

// Create реализует Store через SETNX.
func (s *RedisStore) Create(ctx context.Context, rec models.DailyCardRecord) (bool, error) {
	const op = "dailycache.RedisStore.Create"

	jsonData, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	created, err := s.Db.SetNX(ctx, Key(NamespaceCard, rec.UserID, rec.Date), jsonData, 0).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// SaveInterpretation реализует Store.
func (s *RedisStore) SaveInterpretation(ctx context.Context, userID int, day string, it models.Interpretation) error {
	const op = "dailycache.RedisStore.SaveInterpretation"

	n, err := s.Db.Exists(ctx, Key(NamespaceCard, userID, day)).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrRecordMissing)
	}

	jsonData, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.Db.Set(ctx, Key(NamespaceInterpretation, userID, day), jsonData, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает соединение с redis.
func (s *RedisStore) Close() error {
	return s.Db.Close()
}

func (s *RedisStore) get(ctx context.Context, key string, result any) (bool, error) {
	val, err := s.Db.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), result); err != nil {
		return false, err
	}
	return true, nil
}
