package farming

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"coverline/internal/ledger"
)

var (
	// ErrStaleOracle is returned when the TWAP source lacks observation
	// history over the requested interval.
	ErrStaleOracle = errors.New("OLD")
	// ErrNonexistentOption is returned for unknown or exercised options.
	ErrNonexistentOption = errors.New("query for nonexistent option")
	// ErrNotOptionOwner rejects exercise by anyone but the owner or an
	// approved operator.
	ErrNotOptionOwner = errors.New("!owner")
	// ErrOptionExpired rejects exercise past the option's expiry.
	ErrOptionExpired = errors.New("expired")
	// ErrInsufficientPayment rejects exercise below the strike price.
	ErrInsufficientPayment = errors.New("insufficient payment")
)

// TWAPSource reports a time-weighted average price of the reward token in
// wei of the quote asset per 1e18 of reward token, plus the number of
// oracle observations backing the figure.
type TWAPSource interface {
	Consult(ctx context.Context, interval time.Duration) (price *big.Int, observations int, err error)
}

// Option is a reward redemption right: pay the strike, receive the reward.
// The strike is fixed from the TWAP at creation time and never recomputed.
type Option struct {
	ID           uint64
	Owner        common.Address
	RewardAmount *big.Int
	StrikePrice  *big.Int
	Expiry       int64
}

// OptionsOptions configure the options engine.
type OptionsOptions struct {
	// SwapRateBps discounts the TWAP-fair value to produce the strike,
	// e.g. 7500 charges 75% of fair value.
	SwapRateBps uint32
	// TWAPInterval is the averaging window consulted at option creation.
	TWAPInterval time.Duration
	// MinObservations guards against stale or thin oracle history.
	MinObservations int
	// ExpiryDuration is added to the creation timestamp.
	ExpiryDuration time.Duration
	// PriceFloor, if nonzero, is the minimum price per 1e18 reward tokens
	// used when the TWAP dips below it.
	PriceFloor *big.Int
}

// OptionsFarming mints and settles reward options. Reward-token liquidity
// risk follows the same pull-based owed pattern as claim payouts: exercise
// pays what the pool holds and parks the shortfall, retrievable later via
// Withdraw once liquidity returns.
type OptionsFarming struct {
	mu sync.Mutex

	opts       OptionsOptions
	twap       TWAPSource
	clock      ledger.Clock
	controller common.Address
	logger     zerolog.Logger

	options    map[uint64]*Option
	approvals  map[uint64]common.Address
	nextID     uint64
	rewardPool *big.Int
	unpaid     *ledger.OwedLedger
}

// NewOptionsFarming constructs the options engine. Only the controller
// address may mint options.
func NewOptionsFarming(opts OptionsOptions, twap TWAPSource, clock ledger.Clock, controller common.Address, logger zerolog.Logger) *OptionsFarming {
	return &OptionsFarming{
		opts:       opts,
		twap:       twap,
		clock:      clock,
		controller: controller,
		logger:     logger.With().Str("component", "options_farming").Logger(),
		options:    make(map[uint64]*Option),
		approvals:  make(map[uint64]common.Address),
		nextID:     1,
		rewardPool: big.NewInt(0),
		unpaid:     ledger.NewOwedLedger(),
	}
}

// FundRewards adds reward tokens to the payout pool.
func (o *OptionsFarming) FundRewards(amount *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if amount != nil && amount.Sign() > 0 {
		o.rewardPool.Add(o.rewardPool, amount)
	}
}

// RewardPool returns the liquid reward-token balance.
func (o *OptionsFarming) RewardPool() *big.Int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return ledger.Clone(o.rewardPool)
}

// CalculateStrikePrice derives the strike for a reward amount from the TWAP
// with the configured discount and optional floor. Rejects with ErrStaleOracle
// when the oracle history is too thin.
func (o *OptionsFarming) CalculateStrikePrice(ctx context.Context, rewardAmount *big.Int) (*big.Int, error) {
	price, observations, err := o.twap.Consult(ctx, o.opts.TWAPInterval)
	if err != nil {
		return nil, err
	}
	if observations < o.opts.MinObservations {
		return nil, ErrStaleOracle
	}
	if o.opts.PriceFloor != nil && o.opts.PriceFloor.Sign() > 0 && price.Cmp(o.opts.PriceFloor) < 0 {
		price = ledger.Clone(o.opts.PriceFloor)
	}
	fair := new(big.Int).Mul(rewardAmount, price)
	fair.Quo(fair, big.NewInt(1e18))
	strike := fair.Mul(fair, new(big.Int).SetUint64(uint64(o.opts.SwapRateBps)))
	return strike.Quo(strike, big.NewInt(10_000)), nil
}

// CreateOption mints an option for accrued rewards. Controller-only.
func (o *OptionsFarming) CreateOption(ctx context.Context, caller, owner common.Address, rewardAmount *big.Int) (uint64, error) {
	if caller != o.controller {
		return 0, ErrNotController
	}
	strike, err := o.CalculateStrikePrice(ctx, rewardAmount)
	if err != nil {
		return 0, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	o.options[id] = &Option{
		ID:           id,
		Owner:        owner,
		RewardAmount: ledger.Clone(rewardAmount),
		StrikePrice:  strike,
		Expiry:       o.clock.Timestamp() + int64(o.opts.ExpiryDuration/time.Second),
	}
	o.logger.Info().
		Uint64("option_id", id).
		Str("owner", owner.Hex()).
		Str("reward_wei", rewardAmount.String()).
		Str("strike_wei", strike.String()).
		Msg("option created")
	return id, nil
}

// GetOption returns the option record.
func (o *OptionsFarming) GetOption(id uint64) (*Option, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	opt, ok := o.options[id]
	if !ok {
		return nil, ErrNonexistentOption
	}
	clone := *opt
	clone.RewardAmount = ledger.Clone(opt.RewardAmount)
	clone.StrikePrice = ledger.Clone(opt.StrikePrice)
	return &clone, nil
}

// Approve lets an operator exercise the option on the owner's behalf.
func (o *OptionsFarming) Approve(caller common.Address, id uint64, operator common.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	opt, ok := o.options[id]
	if !ok {
		return ErrNonexistentOption
	}
	if opt.Owner != caller {
		return ErrNotOptionOwner
	}
	o.approvals[id] = operator
	return nil
}

// ExerciseOption burns the option and pays the reward. Payment must meet
// the strike; rewards beyond pool liquidity become an unpaid balance for
// the owner, claimable through Withdraw.
func (o *OptionsFarming) ExerciseOption(_ context.Context, caller common.Address, id uint64, payment *big.Int) (*big.Int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	opt, ok := o.options[id]
	if !ok {
		return nil, ErrNonexistentOption
	}
	if opt.Owner != caller && o.approvals[id] != caller {
		return nil, ErrNotOptionOwner
	}
	if o.clock.Timestamp() > opt.Expiry {
		return nil, ErrOptionExpired
	}
	if payment == nil || payment.Cmp(opt.StrikePrice) < 0 {
		return nil, ErrInsufficientPayment
	}

	delete(o.options, id)
	delete(o.approvals, id)

	paid := ledger.Min(o.rewardPool, opt.RewardAmount)
	o.rewardPool.Sub(o.rewardPool, paid)
	shortfall := new(big.Int).Sub(opt.RewardAmount, paid)
	if shortfall.Sign() > 0 {
		o.unpaid.Credit(opt.Owner, shortfall)
		o.logger.Warn().
			Uint64("option_id", id).
			Str("unpaid_wei", shortfall.String()).
			Msg("reward pool short; remainder recorded as unpaid")
	}
	return paid, nil
}

// UnpaidRewards returns the amount owed to an owner from past exercises.
func (o *OptionsFarming) UnpaidRewards(owner common.Address) *big.Int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.unpaid.Owed(owner)
}

// Withdraw sweeps any unpaid rewards that have since become available.
// Idempotent; returns the amount delivered.
func (o *OptionsFarming) Withdraw(caller common.Address) (*big.Int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.unpaid.Settle(caller, func(amount *big.Int) (*big.Int, error) {
		paid := ledger.Min(o.rewardPool, amount)
		o.rewardPool.Sub(o.rewardPool, paid)
		return paid, nil
	})
}
