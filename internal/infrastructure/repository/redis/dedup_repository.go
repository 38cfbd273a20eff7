package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// DedupRepository keeps the duplicate cache in Redis. Each document is a
// hash under <prefix>:record:<id>; <prefix>:hash:<sha> points at the first
// document seen with that content and <prefix>:order lists ids in insertion
// order.
type DedupRepository struct {
	client *redis.Client
	prefix string
}

func Open(ctx context.Context, cfg Config) (*DedupRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewDedupRepository(client, cfg.Prefix), nil
}

func NewDedupRepository(client *redis.Client, prefix string) *DedupRepository {
	if prefix == "" {
		prefix = "triage:dedup"
	}
	return &DedupRepository{client: client, prefix: prefix}
}

func (r *DedupRepository) FindByHash(ctx context.Context, hash string) (*domain.DedupRecord, error) {
	id, err := r.client.Get(ctx, r.hashKey(hash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "redis get hash index", err)
	}

	rec, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec != nil && rec.ContentHash == hash {
		return rec, nil
	}
	// Index points at a record that was since overwritten with new content.
	return r.scanOrder(ctx, hash)
}

func (r *DedupRepository) Insert(ctx context.Context, record domain.DedupRecord) error {
	prevHash, err := r.client.HGet(ctx, r.recordKey(record.DocumentID), "hash").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.WrapError(domain.ErrTemporary, "redis read record", err)
	}
	isNew := errors.Is(err, redis.Nil)

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.recordKey(record.DocumentID),
			"hash", record.ContentHash,
			"request_type", record.RequestType,
			"date", record.Date,
		)
		if isNew {
			pipe.RPush(ctx, r.orderKey(), record.DocumentID)
		}
		pipe.SetNX(ctx, r.hashKey(record.ContentHash), record.DocumentID, 0)
		return nil
	})
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "redis insert record", err)
	}

	if !isNew && prevHash != record.ContentHash {
		owner, err := r.client.Get(ctx, r.hashKey(prevHash)).Result()
		if err == nil && owner == record.DocumentID {
			if err := r.client.Del(ctx, r.hashKey(prevHash)).Err(); err != nil {
				return domain.WrapError(domain.ErrTemporary, "redis drop stale index", err)
			}
		}
	}
	return nil
}

func (r *DedupRepository) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+":*", 200).Result()
		if err != nil {
			return domain.WrapError(domain.ErrTemporary, "redis scan", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return domain.WrapError(domain.ErrTemporary, "redis delete", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (r *DedupRepository) Close() error {
	return r.client.Close()
}

func (r *DedupRepository) load(ctx context.Context, id string) (*domain.DedupRecord, error) {
	fields, err := r.client.HGetAll(ctx, r.recordKey(id)).Result()
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "redis read record", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return &domain.DedupRecord{
		DocumentID:  id,
		ContentHash: fields["hash"],
		RequestType: fields["request_type"],
		Date:        fields["date"],
	}, nil
}

func (r *DedupRepository) scanOrder(ctx context.Context, hash string) (*domain.DedupRecord, error) {
	ids, err := r.client.LRange(ctx, r.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "redis read order", err)
	}
	for _, id := range ids {
		rec, err := r.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec != nil && rec.ContentHash == hash {
			if err := r.client.Set(ctx, r.hashKey(hash), id, 0).Err(); err != nil {
				return nil, domain.WrapError(domain.ErrTemporary, "redis repair index", err)
			}
			return rec, nil
		}
	}
	return nil, nil
}

func (r *DedupRepository) recordKey(id string) string { return r.prefix + ":record:" + id }
func (r *DedupRepository) hashKey(hash string) string { return r.prefix + ":hash:" + hash }
func (r *DedupRepository) orderKey() string          { return r.prefix + ":order" }
