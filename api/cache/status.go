package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"slideConverter/api/database"
	"slideConverter/api/models"
)

const statusKeyPrefix = "task:status:"

// StatusCache mirrors task snapshots so status survives a restart for as long
// as the TTL allows.
type StatusCache struct {
	cache *database.Cache
	ttl   time.Duration
}

func NewStatusCache(cache *database.Cache, ttl time.Duration) *StatusCache {
	return &StatusCache{cache: cache, ttl: ttl}
}

func (sc *StatusCache) Get(ctx context.Context, taskID string) (*models.Task, error) {
	data, err := sc.cache.Get(ctx, key(taskID))
	if err != nil {
		return nil, err
	}

	var task models.Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return nil, fmt.Errorf("decode status snapshot: %w", err)
	}
	return &task, nil
}

func (sc *StatusCache) Set(ctx context.Context, task *models.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return sc.cache.Set(ctx, key(task.ID), data, sc.ttl)
}

func key(taskID string) string {
	return fmt.Sprintf("%s%s", statusKeyPrefix, taskID)
}
