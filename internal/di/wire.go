//go:build wireinject
// +build wireinject

package di

import (
	"EconCast/pkg/config"
	"EconCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,

		// Repositories
		ProvideDataset,
		ProvideUsageTracker,
		ProvideUsageQueue,
		ProvideEventPublisher,

		// Forecasting
		ProvideEngine,
		ProvideForecastCache,
		ProvideForecastService,

		// Transport
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
