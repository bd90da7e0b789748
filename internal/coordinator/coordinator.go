// Package coordinator manages the game coordinator channel and wraps every
// coordinator operation in a mandatory pacing delay and a timeout.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/tradeup/internal/core/domain"
	"github.com/vietddude/tradeup/internal/core/pacing"
	"github.com/vietddude/tradeup/internal/infra/steam"
	"github.com/vietddude/tradeup/internal/metrics"
)

// Defaults.
const (
	DefaultConnectionTimeout = 30 * time.Second
	DefaultOperationDelayMin = 30 * time.Second
	DefaultOperationDelayMax = 60 * time.Second
	DefaultTradeUpTimeout    = 30 * time.Second
	DefaultDisconnectTimeout = 5 * time.Second
)

// Config configures the coordinator.
type Config struct {
	ConnectionTimeout time.Duration
	OperationDelayMin time.Duration
	OperationDelayMax time.Duration
	TradeUpTimeout    time.Duration
	DisconnectTimeout time.Duration
	AppID             uint32
}

func (c *Config) applyDefaults() {
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = DefaultConnectionTimeout
	}
	if c.OperationDelayMin <= 0 {
		c.OperationDelayMin = DefaultOperationDelayMin
	}
	if c.OperationDelayMax <= 0 {
		c.OperationDelayMax = DefaultOperationDelayMax
	}
	if c.OperationDelayMax < c.OperationDelayMin {
		c.OperationDelayMax = c.OperationDelayMin
	}
	if c.TradeUpTimeout <= 0 {
		c.TradeUpTimeout = DefaultTradeUpTimeout
	}
	if c.DisconnectTimeout <= 0 {
		c.DisconnectTimeout = DefaultDisconnectTimeout
	}
	if c.AppID == 0 {
		c.AppID = steam.DefaultAppID
	}
}

// TradeUpRecorder receives every trade-up outcome.
type TradeUpRecorder interface {
	RecordTradeUp(ctx context.Context, result domain.TradeUpResult, tradeErr error) error
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithSleeper replaces the pacing sleeper.
func WithSleeper(s pacing.Sleeper) Option {
	return func(c *Coordinator) { c.sleep = s }
}

// WithRand replaces the delay source.
func WithRand(r pacing.Rand) Option {
	return func(c *Coordinator) { c.rand = r }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithRecorder journals every trade-up.
func WithRecorder(r TradeUpRecorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// Coordinator is the coordinator operation orchestrator. Operations must be
// serialized by the caller.
type Coordinator struct {
	client   steam.Client
	gc       steam.GameCoordinator
	cfg      Config
	sleep    pacing.Sleeper
	rand     pacing.Rand
	now      func() time.Time
	recorder TradeUpRecorder
	log      *slog.Logger

	mu       sync.Mutex
	state    domain.CoordinatorState
	watchSub *steam.Subscription
}

// New creates a coordinator over an authenticated client.
func New(client steam.Client, gc steam.GameCoordinator, cfg Config, opts ...Option) *Coordinator {
	cfg.applyDefaults()
	c := &Coordinator{
		client: client,
		gc:     gc,
		cfg:    cfg,
		sleep:  pacing.DefaultSleeper,
		rand:   pacing.DefaultRand,
		now:    time.Now,
		log:    slog.With("component", "coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the coordinator channel. It is a no-op when already connected.
func (c *Coordinator) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state.IsConnected {
		c.mu.Unlock()
		return nil
	}
	c.state.ConnectionAttempts++
	attempt := c.state.ConnectionAttempts
	c.mu.Unlock()

	sub := c.gc.Subscribe(steam.EventConnectedToGC)
	defer sub.Close()

	timer := time.NewTimer(c.cfg.ConnectionTimeout)
	defer timer.Stop()

	c.log.Info("Connecting to game coordinator", "app_id", c.cfg.AppID, "attempt", attempt)
	c.client.GamesPlayed([]uint32{c.cfg.AppID})

	select {
	case <-sub.C:
	case <-timer.C:
		err := fmt.Errorf("%w after %s", ErrConnectionTimeout, c.cfg.ConnectionTimeout)
		c.mu.Lock()
		c.state.LastError = err
		c.mu.Unlock()
		c.log.Error("Game coordinator did not confirm connection", "timeout", c.cfg.ConnectionTimeout)
		return err
	case <-ctx.Done():
		c.mu.Lock()
		c.state.LastError = ctx.Err()
		c.mu.Unlock()
		return ctx.Err()
	}

	now := c.now()
	c.mu.Lock()
	c.state.IsConnected = true
	c.state.LastConnectTime = &now
	c.state.ConnectionAttempts = 0
	c.state.LastError = nil
	c.mu.Unlock()

	metrics.CoordinatorConnected.Set(1)
	c.log.Info("Connected to game coordinator")
	c.watch()
	return nil
}

// Disconnect closes the channel. It never waits longer than the disconnect
// timeout; after that the channel is marked closed regardless.
func (c *Coordinator) Disconnect(ctx context.Context) {
	c.mu.Lock()
	connected := c.state.IsConnected
	c.mu.Unlock()
	if !connected {
		return
	}

	c.stopWatch()

	sub := c.gc.Subscribe(steam.EventDisconnectedFromGC)
	defer sub.Close()

	timer := time.NewTimer(c.cfg.DisconnectTimeout)
	defer timer.Stop()

	c.client.GamesPlayed([]uint32{})

	select {
	case <-sub.C:
		c.log.Info("Disconnected from game coordinator")
	case <-timer.C:
		c.log.Warn("Game coordinator disconnect not confirmed, forcing", "timeout", c.cfg.DisconnectTimeout)
	case <-ctx.Done():
	}

	c.markDisconnected(nil)
}

// GetInventory lists the account inventory after the mandatory delay.
// Handles without inventory support yield an empty list.
func (c *Coordinator) GetInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	c.pace("inventory")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, ok := c.gc.(steam.InventorySource)
	if !ok {
		c.log.Warn("Inventory retrieval not supported by this coordinator handle")
		return []domain.InventoryItem{}, nil
	}

	items, err := src.Inventory(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch inventory: %w", err)
	}
	c.log.Info("Fetched inventory", "items", len(items))
	return items, nil
}

// ExecuteTradeUp crafts the ten given items into one. A zero timeout uses
// the configured default. A timed-out trade-up is never retried here.
func (c *Coordinator) ExecuteTradeUp(ctx context.Context, assetIDs []string, timeout time.Duration) (*domain.TradeUpResult, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}
	if err := ValidateTradeUpInput(assetIDs); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = c.cfg.TradeUpTimeout
	}

	inputs := append([]string(nil), assetIDs...)

	c.pace("trade_up")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := c.gc.Subscribe(steam.EventCraftingComplete)
	defer sub.Close()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	c.log.Info("Executing trade-up", "inputs", len(inputs))
	c.gc.Craft(inputs)

	result := domain.TradeUpResult{
		ID:            uuid.NewString(),
		InputAssetIDs: inputs,
	}

	select {
	case ev, ok := <-sub.C:
		if !ok {
			return nil, c.finish(ctx, result, fmt.Errorf("%w: event stream closed", ErrTradeUpTimeout))
		}
		if item, ok := ev.Payload.(domain.ItemDescriptor); ok {
			result.OutputItem = &item
		} else if item, ok := ev.Payload.(*domain.ItemDescriptor); ok && item != nil {
			cp := *item
			result.OutputItem = &cp
		}
		result.Success = true
		result.Timestamp = c.now()

	case <-timer.C:
		result.Timestamp = c.now()
		c.log.Error("Trade-up did not complete, not retrying", "timeout", timeout)
		return nil, c.finish(ctx, result, fmt.Errorf("%w after %s", ErrTradeUpTimeout, timeout))

	case <-ctx.Done():
		result.Timestamp = c.now()
		return nil, c.finish(ctx, result, ctx.Err())
	}

	c.log.Info("Trade-up complete", "id", result.ID, "output", outputID(result.OutputItem))
	if err := c.finish(ctx, result, nil); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Coordinator) finish(ctx context.Context, result domain.TradeUpResult, tradeErr error) error {
	outcome := "success"
	if tradeErr != nil {
		outcome = "failure"
	}
	metrics.TradeUpsTotal.WithLabelValues(outcome).Inc()

	if c.recorder != nil {
		if err := c.recorder.RecordTradeUp(context.WithoutCancel(ctx), result, tradeErr); err != nil {
			c.log.Warn("Failed to journal trade-up", "id", result.ID, "error", err)
		}
	}
	return tradeErr
}

// pace sleeps for the full operation delay. The delay is a floor and is not
// shortened by cancellation.
func (c *Coordinator) pace(operation string) {
	delay := pacing.Uniform(c.cfg.OperationDelayMin, c.cfg.OperationDelayMax, c.rand())
	c.log.Info("Waiting before coordinator operation", "operation", operation, "delay", delay.Round(time.Millisecond))
	metrics.PacingDelay.WithLabelValues(operation).Observe(delay.Seconds())
	c.sleep(delay)
}

func (c *Coordinator) watch() {
	sub := c.gc.Subscribe(steam.EventDisconnectedFromGC)

	c.mu.Lock()
	if c.watchSub != nil {
		c.watchSub.Close()
	}
	c.watchSub = sub
	c.mu.Unlock()

	go func() {
		for ev := range sub.C {
			c.mu.Lock()
			current := c.watchSub == sub
			c.mu.Unlock()
			if !current {
				return
			}

			var cause error
			if info, ok := ev.Payload.(steam.DisconnectInfo); ok {
				cause = fmt.Errorf("game coordinator disconnected: %s", info.Message)
			}
			c.log.Warn("Game coordinator connection lost", "error", cause)
			c.markDisconnected(cause)
		}
	}()
}

func (c *Coordinator) stopWatch() {
	c.mu.Lock()
	sub := c.watchSub
	c.watchSub = nil
	c.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

func (c *Coordinator) markDisconnected(cause error) {
	now := c.now()
	c.mu.Lock()
	c.state.IsConnected = false
	c.state.LastDisconnectTime = &now
	if cause != nil {
		c.state.LastError = cause
	}
	c.mu.Unlock()
	metrics.CoordinatorConnected.Set(0)
}

// State returns a snapshot of the coordinator state.
func (c *Coordinator) State() domain.CoordinatorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the channel is open.
func (c *Coordinator) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IsConnected
}

func outputID(item *domain.ItemDescriptor) string {
	if item == nil {
		return ""
	}
	return item.ItemID
}
