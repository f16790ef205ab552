package md

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
	"github.com/shopspring/decimal"
)

type BarHandler func(symbol string, c Candle)

type StreamConfig struct {
	APIKey    string
	APISecret string
	Feed      string
	Symbol    string
}

// StartStream subscribes to minute bars of cfg.Symbol and blocks until ctx is
// done or the connection terminates.
func StartStream(ctx context.Context, cfg StreamConfig, handler BarHandler) error {
	client := stream.NewStocksClient(
		ParseFeed(cfg.Feed),
		stream.WithCredentials(cfg.APIKey, cfg.APISecret),
	)

	// Connect must be called before subscribing in this SDK version.
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect market data stream: %w", err)
	}
	slog.Debug("connected to stream", "symbol", cfg.Symbol, "feed", cfg.Feed)

	if err := client.SubscribeToBars(func(bar stream.Bar) {
		slog.Debug("received bar", "symbol", bar.Symbol, "timestamp", bar.Timestamp, "close", bar.Close)
		handler(bar.Symbol, Candle{
			Timestamp: bar.Timestamp.UnixMilli(),
			Open:      decimal.NewFromFloat(bar.Open),
			High:      decimal.NewFromFloat(bar.High),
			Low:       decimal.NewFromFloat(bar.Low),
			Close:     decimal.NewFromFloat(bar.Close),
			Volume:    decimal.NewFromInt(int64(bar.Volume)),
		})
	}, cfg.Symbol); err != nil {
		return fmt.Errorf("subscribe to bars: %w", err)
	}
	slog.Info("subscribed to bars", "symbol", cfg.Symbol)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-client.Terminated():
		if err != nil {
			return fmt.Errorf("market data stream terminated: %w", err)
		}
		return nil
	}
}

func ParseFeed(feed string) marketdata.Feed {
	switch feed {
	case "iex":
		return marketdata.IEX
	case "sip":
		return marketdata.SIP
	default:
		return marketdata.IEX
	}
}
