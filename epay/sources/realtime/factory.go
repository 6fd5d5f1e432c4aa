package realtime

import (
	"time"

	"epay/epay/config"
)

// NewBus builds the bus selected by cfg.BusDriver ("memory" or "redis").
func NewBus(cfg config.Config) (Bus, error) {
	switch cfg.BusDriver {
	case "redis":
		return NewRedisBus(RedisConfig{
			Address:      cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			PoolSize:     10,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			Buffer:       cfg.Chat.BusBuffer,
		})
	default:
		return NewMemoryBus(cfg.Chat.BusBuffer), nil
	}
}
