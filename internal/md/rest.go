package md

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// BarsClient is the subset of *marketdata.Client used by RESTSource.
type BarsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
}

type RESTConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

func NewClient(cfg RESTConfig) *marketdata.Client {
	return marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})
}

// RESTSource fetches candles and the latest trade price over the alpaca data API.
type RESTSource struct {
	client BarsClient
	feed   marketdata.Feed
	clock  func() time.Time
	// lookback multiplies the requested span so market closures still leave
	// enough bars in the window.
	lookback int
}

type RESTOption func(*RESTSource)

func WithRESTClock(clock func() time.Time) RESTOption {
	return func(s *RESTSource) {
		s.clock = clock
	}
}

func NewRESTSource(client BarsClient, feed string, opts ...RESTOption) *RESTSource {
	s := &RESTSource{
		client:   client,
		feed:     ParseFeed(feed),
		clock:    time.Now,
		lookback: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RESTSource) Candles(ctx context.Context, symbol, interval string, limit, offset int) ([]Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeframe, step, err := ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []Candle{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	end := s.clock().UTC()
	span := time.Duration((limit+offset)*s.lookback) * step
	if span < 72*time.Hour {
		span = 72 * time.Hour
	}
	bars, err := s.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: timeframe,
		Start:     end.Add(-span),
		End:       end,
		Feed:      s.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("get bars %s %s: %w", symbol, interval, err)
	}

	candles := make([]Candle, 0, len(bars))
	for _, bar := range bars {
		candles = append(candles, Candle{
			Timestamp: bar.Timestamp.UnixMilli(),
			Open:      decimal.NewFromFloat(bar.Open),
			High:      decimal.NewFromFloat(bar.High),
			Low:       decimal.NewFromFloat(bar.Low),
			Close:     decimal.NewFromFloat(bar.Close),
			Volume:    decimal.NewFromInt(int64(bar.Volume)),
		})
	}
	return window(candles, limit, offset), nil
}

func (s *RESTSource) HistoricalCloses(ctx context.Context, symbol, interval string, limit, offset int) ([]decimal.Decimal, error) {
	candles, err := s.Candles(ctx, symbol, interval, limit, offset)
	if err != nil {
		return nil, err
	}
	return Closes(candles), nil
}

func (s *RESTSource) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, false, err
	}
	trade, err := s.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{Feed: s.feed})
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get latest trade %s: %w", symbol, err)
	}
	if trade == nil || trade.Price <= 0 {
		return decimal.Zero, false, nil
	}
	return decimal.NewFromFloat(trade.Price), true, nil
}
