package chainhead

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"coverline/internal/ledger"
)

// Options parameterise the chain-head follower.
type Options struct {
	RPCURL  string
	Timeout time.Duration
}

// Follower advances a manual ledger clock from the chain head over RPC.
// The engine only ever reads the clock, so a stalled RPC endpoint degrades
// to a stale-but-monotonic view of time rather than an error path inside
// lifecycle operations.
type Follower struct {
	opts      Options
	clock     *ledger.ManualClock
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewFollower wires a follower onto the given clock.
func NewFollower(opts Options, clock *ledger.ManualClock, logger zerolog.Logger) *Follower {
	return &Follower{
		opts:   opts,
		clock:  clock,
		logger: logger.With().Str("component", "chain_head").Logger(),
	}
}

// Refresh reads the latest header and moves the clock forward.
func (f *Follower) Refresh(ctx context.Context) error {
	if f.opts.RPCURL == "" {
		return errors.New("ethereum rpc url not configured")
	}

	timeout := f.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := f.getClient(ctx)
	if err != nil {
		return err
	}
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return err
	}

	f.clock.Set(header.Number.Uint64(), int64(header.Time))
	f.logger.Debug().
		Uint64("block", header.Number.Uint64()).
		Uint64("timestamp", header.Time).
		Msg("clock advanced from chain head")
	return nil
}

func (f *Follower) getClient(ctx context.Context) (*ethclient.Client, error) {
	f.clientMux.Lock()
	defer f.clientMux.Unlock()

	if f.client != nil {
		return f.client, nil
	}
	client, err := ethclient.DialContext(ctx, f.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	f.client = client
	return client, nil
}
