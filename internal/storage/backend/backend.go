// Package backend selects the configured store implementation at startup.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/config"
	"github.com/hongminglow/ekonzims-be/internal/storage"
	"github.com/hongminglow/ekonzims-be/internal/storage/memory"
	"github.com/hongminglow/ekonzims-be/internal/storage/mongodb"
	"github.com/hongminglow/ekonzims-be/internal/storage/postgres"
)

// Stores groups the stores of one backend.
type Stores struct {
	Users    storage.UserStore
	Orders   storage.OrderStore
	Bookings storage.BookingStore
	close    func()
}

// Close releases backend connections. Safe to call on the memory backend.
func (s Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// Memory returns fresh in-process stores.
func Memory() Stores {
	return Stores{
		Users:    memory.NewUserStore(nil),
		Orders:   memory.NewOrderStore(),
		Bookings: memory.NewBookingStore(),
	}
}

// Open connects to the backend named by cfg.StoreBackend.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (Stores, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return Memory(), nil
	case config.BackendPostgres:
		store, err := postgres.NewStore(ctx, cfg.DatabaseURL, cfg.StoreTimeout)
		if err != nil {
			return Stores{}, fmt.Errorf("open postgres: %w", err)
		}
		logger.Info("connected to postgres")
		return Stores{Users: store, Orders: store, Bookings: store, close: store.Close}, nil
	case config.BackendMongo:
		store, err := mongodb.NewStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.StoreTimeout)
		if err != nil {
			return Stores{}, fmt.Errorf("open mongo: %w", err)
		}
		logger.Info("connected to mongo", zap.String("database", cfg.MongoDatabase))
		return Stores{Users: store, Orders: store, Bookings: store, close: store.Close}, nil
	default:
		return Stores{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
