package handlers

import (
	"context"
	"fmt"

	datafeed "github.com/fazecat/triggerdesk/Internal/database"
	"github.com/fazecat/triggerdesk/Internal/handlers/monitoring"
	"github.com/fazecat/triggerdesk/Internal/strategy/triggers"
	"github.com/fazecat/triggerdesk/Internal/utils/config"
	"github.com/fazecat/triggerdesk/Internal/utils/logger"
	"github.com/fazecat/triggerdesk/Internal/utils/metrics"
	"github.com/fazecat/triggerdesk/Internal/utils/scanner"
)

// Services is everything the menu and the API share. Both entry points build
// it the same way.
type Services struct {
	Store    *datafeed.Store
	Gateway  *datafeed.Gateway
	Prices   datafeed.HistorySource
	Metrics  *metrics.Recorder
	Monitor  *monitoring.TriggerMonitor
	Scanner  *scanner.Scanner
	Executor *TradeExecutor

	cache *datafeed.BarCache
	log   *logger.Logger
}

// BuildServices connects the store and broker. A broker that cannot connect
// is logged and left disconnected; the monitor skips ticks until it is.
func BuildServices(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Services, error) {
	store, err := datafeed.Connect(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	gw := datafeed.NewGateway(cfg.Broker, cfg.Triggers.SettleDelay, log)
	if err := gw.Connect(ctx); err != nil {
		log.Warn("broker not connected, trigger ticks will be skipped", logger.Error(err))
	}

	s := &Services{Store: store, Gateway: gw, Metrics: metrics.New(), log: log}

	var prices datafeed.HistorySource = datafeed.NewMarketData(cfg.Broker, cfg.MarketData, log)
	if cfg.Redis.Enabled {
		cache, err := datafeed.NewBarCache(ctx, cfg.Redis, cfg.MarketData.Timeframe, prices, log)
		if err != nil {
			log.Warn("bar cache disabled", logger.Error(err))
		} else {
			s.cache = cache
			prices = cache
		}
	}
	s.Prices = prices

	window, err := cfg.SellOffWindow()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("sell-off window: %w", err)
	}

	s.Monitor = monitoring.NewTriggerMonitor(triggers.NewEngine(window), store, gw, prices,
		s.Metrics, cfg.Triggers.PollInterval, log)
	s.Scanner = scanner.New(prices, store, s.Metrics, cfg.Scan.HistoryDays, log)
	s.Executor = NewTradeExecutor(store, gw, log)
	return s, nil
}

// Close stops the monitor and releases connections.
func (s *Services) Close() {
	if s.Monitor != nil {
		s.Monitor.Stop()
	}
	s.Gateway.Disconnect()
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.log.Warn("closing bar cache", logger.Error(err))
		}
	}
	if err := s.Store.Close(); err != nil {
		s.log.Warn("closing store", logger.Error(err))
	}
}
