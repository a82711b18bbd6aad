package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tenacademy/onboarding-api/internal/strapi"
)

type batchReader interface {
	ReadBatch(ctx context.Context, label string) (string, error)
}

// BatchDirectory resolves human batch labels to CMS batch records, caching
// resolutions in Redis when a client is configured. A nil Redis client
// disables caching.
type BatchDirectory struct {
	cms    batchReader
	cache  *redis.Client
	ttl    time.Duration
	stage  string
	logger *zap.Logger
}

// NewBatchDirectory builds a directory for one run stage.
func NewBatchDirectory(cms batchReader, cache *redis.Client, stage string, ttl time.Duration, logger *zap.Logger) *BatchDirectory {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchDirectory{cms: cms, cache: cache, ttl: ttl, stage: stage, logger: logger}
}

// Resolve maps a batch label to its numeric value and CMS record id.
func (d *BatchDirectory) Resolve(ctx context.Context, label string) (BatchRef, error) {
	number, err := strapi.ParseBatchNumber(label)
	if err != nil {
		return BatchRef{}, err
	}

	key := fmt.Sprintf("onboarding:batch:%s:%d", d.stage, number)
	if d.cache != nil {
		if raw, err := d.cache.Get(ctx, key).Result(); err == nil {
			var cached BatchRef
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	recordID, err := d.cms.ReadBatch(ctx, label)
	if err != nil {
		return BatchRef{}, err
	}
	ref := BatchRef{Number: number, RecordID: recordID}

	if d.cache != nil {
		if encoded, err := json.Marshal(ref); err == nil {
			if err := d.cache.Set(ctx, key, encoded, d.ttl).Err(); err != nil {
				d.logger.Debug("batch cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}

	return ref, nil
}
