package queue

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Options selects and configures a queue backend.
type Options struct {
	Backend      string // memory, redis or kafka
	Key          string // redis list key or kafka topic
	Redis        *redis.Client
	KafkaBrokers []string
	KafkaGroupID string
	MemorySize   int
}

// Open builds the configured backend.
func Open(o Options) (Queue, error) {
	switch o.Backend {
	case "", "memory":
		size := o.MemorySize
		if size <= 0 {
			size = 64
		}
		return NewInMemory(size), nil
	case "redis":
		if o.Redis == nil {
			return nil, errors.New("redis queue needs REDIS_ADDR")
		}
		return NewRedisQueue(o.Redis, o.Key), nil
	case "kafka":
		q, err := NewKafkaQueue(o.KafkaBrokers, o.Key, o.KafkaGroupID)
		if err != nil {
			return nil, err
		}
		return q, nil
	}
	return nil, fmt.Errorf("unknown queue backend %q", o.Backend)
}
