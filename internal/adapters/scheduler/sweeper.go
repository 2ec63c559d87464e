package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"paddock-auction-engine/internal/config"
	"paddock-auction-engine/internal/domain/shared"
	"paddock-auction-engine/internal/ports/inbound"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	activationIndex = "auction:activations"
	expirationIndex = "auction:expirations"
)

// Sweeper drives the time-based lifecycle transitions: activating scheduled
// auctions, ending expired ones and flagging overdue payments. Due auctions
// are tracked in Redis sorted sets scored by their transition instant, so a
// sweep pass is one ZRANGEBYSCORE instead of a table scan. Every job is
// idempotent; overlapping passes and multiple sweeper processes are safe.
type Sweeper struct {
	redis      *redis.Client
	auctions   inbound.AuctionService
	settlement inbound.SettlementService
	pool       *pond.WorkerPool
	interval   time.Duration
	overdue    time.Duration
	batchSize  int
	logger     zerolog.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

type SweeperParams struct {
	RedisClient *redis.Client
	Auctions    inbound.AuctionService
	Settlement  inbound.SettlementService
	Config      *config.Config
	Logger      zerolog.Logger
}

func NewSweeper(params SweeperParams) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())

	pool := pond.New(
		config.SweepMaxWorkers,
		config.SweepMaxCapacity,
		pond.Context(ctx),
		pond.Strategy(pond.Balanced()),
	)

	return &Sweeper{
		redis:      params.RedisClient,
		auctions:   params.Auctions,
		settlement: params.Settlement,
		pool:       pool,
		interval:   params.Config.Sweeps.Interval,
		overdue:    params.Config.Sweeps.OverdueInterval,
		batchSize:  params.Config.Sweeps.BatchSize,
		logger:     params.Logger.With().Str("component", "sweeper").Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// RegisterActivation adds an auction to the activation index
func (s *Sweeper) RegisterActivation(auctionID uuid.UUID, at time.Time) error {
	return s.register(activationIndex, auctionID, at)
}

// RegisterExpiration adds or re-scores an auction in the expiration index.
// Anti-sniping extensions re-register with the pushed-out end time.
func (s *Sweeper) RegisterExpiration(auctionID uuid.UUID, at time.Time) error {
	return s.register(expirationIndex, auctionID, at)
}

func (s *Sweeper) register(index string, auctionID uuid.UUID, at time.Time) error {
	err := s.redis.ZAdd(s.ctx, index, redis.Z{
		Score:  float64(at.Unix()),
		Member: auctionID.String(),
	}).Err()
	if err != nil {
		s.logger.Error().Err(err).
			Str("index", index).
			Str("auction_id", auctionID.String()).
			Msg("Failed to register auction in sweep index")
		return fmt.Errorf("failed to register auction in %s: %w", index, err)
	}

	s.logger.Debug().
		Str("index", index).
		Str("auction_id", auctionID.String()).
		Time("at", at).
		Msg("Auction registered in sweep index")

	return nil
}

// Start begins the sweep loops
func (s *Sweeper) Start() {
	s.logger.Info().
		Dur("interval", s.interval).
		Dur("overdue_interval", s.overdue).
		Msg("Starting sweeper")

	s.wg.Add(2)
	go s.lifecycleLoop()
	go s.overdueLoop()
}

// Stop gracefully stops the sweeper and drains in-flight jobs
func (s *Sweeper) Stop() {
	s.logger.Info().Msg("Stopping sweeper")
	s.cancel()
	s.wg.Wait()
	s.pool.StopAndWait()
}

func (s *Sweeper) lifecycleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepDue(activationIndex, s.activate)
			s.sweepDue(expirationIndex, s.end)
		case <-s.ctx.Done():
			s.logger.Info().Msg("Lifecycle sweep loop stopped")
			return
		}
	}
}

func (s *Sweeper) overdueLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.overdue)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkOverdue()
		case <-s.ctx.Done():
			s.logger.Info().Msg("Overdue sweep loop stopped")
			return
		}
	}
}

// sweepDue pulls members whose score has passed and hands each to the worker
// pool. Members are only removed after their job ran, so a crash mid-sweep
// replays them on the next pass.
func (s *Sweeper) sweepDue(index string, process func(uuid.UUID)) {
	now := time.Now().Unix()

	due, err := s.redis.ZRangeByScore(s.ctx, index, &redis.ZRangeBy{
		Min:   "0",
		Max:   strconv.FormatInt(now, 10),
		Count: int64(s.batchSize),
	}).Result()
	if err != nil {
		s.logger.Error().Err(err).Str("index", index).Msg("Failed to query sweep index")
		return
	}

	if len(due) > 0 {
		s.logger.Debug().Str("index", index).Int("count", len(due)).Msg("Found due auctions")
	}

	for _, member := range due {
		auctionID, err := uuid.Parse(member)
		if err != nil {
			s.logger.Error().Err(err).Str("member", member).Msg("Invalid auction ID in sweep index, removing")
			s.redis.ZRem(s.ctx, index, member)
			continue
		}

		s.pool.Submit(func() {
			process(auctionID)
		})
	}
}

func (s *Sweeper) activate(auctionID uuid.UUID) {
	err := s.auctions.Activate(s.ctx, auctionID)
	switch {
	case err == nil, errors.Is(err, shared.ErrAuctionNotFound):
		s.redis.ZRem(s.ctx, activationIndex, auctionID.String())
		if err == nil {
			s.logger.Info().Str("auction_id", auctionID.String()).Msg("Auction activated by sweep")
		}
	case errors.Is(err, shared.ErrAuctionNotStarted):
		// clock skew between the index score and the engine clock; retry next pass
	case errors.Is(err, shared.ErrAuctionQuarantined):
		s.redis.ZRem(s.ctx, activationIndex, auctionID.String())
		s.logger.Warn().Str("auction_id", auctionID.String()).Msg("Skipping quarantined auction")
	default:
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to activate auction")
	}
}

func (s *Sweeper) end(auctionID uuid.UUID) {
	result, err := s.auctions.End(s.ctx, auctionID)
	switch {
	case err == nil:
		s.redis.ZRem(s.ctx, expirationIndex, auctionID.String())
		logger := s.logger.Info().Str("auction_id", auctionID.String()).Bool("reserve_met", result.ReserveMet)
		if result.WinnerID != nil {
			logger = logger.Str("winner_id", result.WinnerID.String())
		}
		if result.FinalPrice != nil {
			logger = logger.Str("final_price", result.FinalPrice.String())
		}
		logger.Msg("Auction ended by sweep")
	case errors.Is(err, shared.ErrAuctionNotFound):
		s.redis.ZRem(s.ctx, expirationIndex, auctionID.String())
	case errors.Is(err, shared.ErrAuctionStillRunning):
		// extended past the indexed score; the new end time was re-registered
	case errors.Is(err, shared.ErrAuctionQuarantined):
		s.redis.ZRem(s.ctx, expirationIndex, auctionID.String())
		s.logger.Warn().Str("auction_id", auctionID.String()).Msg("Skipping quarantined auction")
	default:
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to end auction")
	}
}

func (s *Sweeper) checkOverdue() {
	flagged, err := s.settlement.CheckOverduePayments(s.ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Overdue payment sweep failed")
		return
	}
	if len(flagged) > 0 {
		s.logger.Warn().Int("count", len(flagged)).Msg("Payments flagged overdue")
	}
}
