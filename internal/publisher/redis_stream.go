package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/iplstats/internal/store"
)

// DefaultStream receives one entry per dataset (re)load
const DefaultStream = "iplstats.dataset.loaded"

// DatasetLoaded describes a freshly derived match table
type DatasetLoaded struct {
	Fingerprint string    `json:"fingerprint"`
	Source      string    `json:"source"`
	Deliveries  int       `json:"deliveries"`
	Matches     int       `json:"matches"`
	Teams       int       `json:"teams"`
	Dropped     int       `json:"dropped"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// NewDatasetLoaded summarises a snapshot for publishing
func NewDatasetLoaded(snap *store.Snapshot) DatasetLoaded {
	return DatasetLoaded{
		Fingerprint: snap.Fingerprint,
		Source:      snap.Source,
		Deliveries:  snap.Deliveries,
		Matches:     len(snap.Matches),
		Teams:       len(snap.Teams),
		Dropped:     snap.Stats.Dropped(),
		LoadedAt:    snap.LoadedAt,
	}
}

// RedisStreamPublisher publishes events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamPublisher{
		client: client,
		stream: stream,
	}
}

// Stream returns the stream name entries are added to
func (rsp *RedisStreamPublisher) Stream() string {
	return rsp.stream
}

// PublishDatasetLoaded adds a reload event to the stream
func (rsp *RedisStreamPublisher) PublishDatasetLoaded(ctx context.Context, snap *store.Snapshot) error {
	return rsp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: rsp.stream,
		Values: streamValues(NewDatasetLoaded(snap)),
	}).Err()
}

func streamValues(event DatasetLoaded) map[string]interface{} {
	data, _ := json.Marshal(event)
	return map[string]interface{}{
		"fingerprint": event.Fingerprint,
		"data":        string(data),
		"timestamp":   event.LoadedAt.Unix(),
	}
}
