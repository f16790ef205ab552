package risk

import (
	"fmt"
	"log/slog"
	"time"

	"papertrade/internal/strategy"
)

type RiskContext struct {
	Now           time.Time
	LastTradeTime time.Time // zero when the stream has never traded
	Cooldown      time.Duration
	HasPosition   bool
}

type Approved struct {
	Signal strategy.Signal
	Reason string
}

const (
	ReasonCooldown      = "cooldown_active"
	ReasonPositionOpen  = "position_open"
	ReasonNoPosition    = "no_position_to_sell"
	ReasonApproved      = "approved"
	ReasonHold          = "hold"
	reasonUnknownSignal = "unknown_signal"
)

// Gate enforces cooldown and position gating for the live stream. It never
// touches the ledger; callers pass in the state to judge.
type Gate struct{}

// CooldownOver reports whether enough time has passed since the last trade.
func (g Gate) CooldownOver(ctx RiskContext) bool {
	if ctx.LastTradeTime.IsZero() {
		return true
	}
	return ctx.Now.Sub(ctx.LastTradeTime) >= ctx.Cooldown
}

func (g Gate) Evaluate(signal strategy.Signal, ctx RiskContext) (Approved, error) {
	if signal == strategy.Hold {
		return Approved{Signal: signal, Reason: ReasonHold}, nil
	}

	slog.Debug("risk evaluation", "signal", signal, "has_position", ctx.HasPosition, "last_trade", ctx.LastTradeTime)

	if !g.CooldownOver(ctx) {
		remaining := ctx.Cooldown - ctx.Now.Sub(ctx.LastTradeTime)
		slog.Info("risk rejected", "reason", ReasonCooldown, "remaining", remaining)
		return Approved{}, fmt.Errorf(ReasonCooldown)
	}

	switch signal {
	case strategy.Buy:
		if ctx.HasPosition {
			slog.Info("risk rejected", "reason", ReasonPositionOpen)
			return Approved{}, fmt.Errorf(ReasonPositionOpen)
		}
	case strategy.Sell:
		if !ctx.HasPosition {
			slog.Info("risk rejected", "reason", ReasonNoPosition)
			return Approved{}, fmt.Errorf(ReasonNoPosition)
		}
	default:
		return Approved{}, fmt.Errorf("%s: %q", reasonUnknownSignal, signal)
	}

	slog.Info("risk approved", "signal", signal)
	return Approved{Signal: signal, Reason: ReasonApproved}, nil
}
