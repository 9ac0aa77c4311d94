package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"drone-gateway/models"
)

// RedisClient publishes observability snapshots for the visualization side:
// the current drone state and the latest aggregate per sensor. Values are
// JSON with a TTL so a stopped gateway ages out of the dashboard.
type RedisClient struct {
	client *redis.Client
	ctx    context.Context
	ttl    time.Duration
}

func NewRedisClient(addr string, ttl time.Duration) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     "",
		DB:           0,
		PoolSize:     50,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	ctx := context.Background()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisClient{
		client: rdb,
		ctx:    ctx,
		ttl:    ttl,
	}, nil
}

func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

func (rc *RedisClient) SaveAggregate(sensorID string, record models.AggregatedRecord) error {
	key := "aggregate:" + sensorID

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return rc.client.Set(rc.ctx, key, data, rc.ttl).Err()
}

func (rc *RedisClient) SaveDroneState(state interface{}) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	return rc.client.Set(rc.ctx, "drone:state", data, rc.ttl).Err()
}

func (rc *RedisClient) GetAggregate(sensorID string) (*models.AggregatedRecord, error) {
	key := "aggregate:" + sensorID

	val, err := rc.client.Get(rc.ctx, key).Result()
	if err == redis.Nil {
		return nil, nil // no aggregate published yet
	}
	if err != nil {
		return nil, err
	}

	var record models.AggregatedRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, err
	}

	return &record, nil
}
