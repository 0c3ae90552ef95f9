package twap

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"coverline/internal/farming"
)

const univ3PoolABIJSON = `[
 {"inputs":[{"internalType":"uint32[]","name":"secondsAgos","type":"uint32[]"}],"name":"observe","outputs":[{"internalType":"int56[]","name":"tickCumulatives","type":"int56[]"},{"internalType":"uint160[]","name":"secondsPerLiquidityCumulativeX128s","type":"uint160[]"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"slot0","outputs":[{"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},{"internalType":"int24","name":"tick","type":"int24"},{"internalType":"uint16","name":"observationIndex","type":"uint16"},{"internalType":"uint16","name":"observationCardinality","type":"uint16"},{"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},{"internalType":"uint8","name":"feeProtocol","type":"uint8"},{"internalType":"bool","name":"unlocked","type":"bool"}],"stateMutability":"view","type":"function"}
]`

var univ3PoolABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(univ3PoolABIJSON))
	if err != nil {
		panic("failed to parse Uniswap V3 pool ABI: " + err.Error())
	}
	univ3PoolABI = parsed
}

// UniV3Options parameterise the on-chain TWAP source.
type UniV3Options struct {
	RPCURL      string
	PoolAddress string
	// Invert flips the price when the reward token is token1 of the pool.
	Invert  bool
	Timeout time.Duration
}

// UniV3 reads a time-weighted average tick from a Uniswap V3 pool's
// observe() and converts it to a price in wei of the quote token per 1e18
// reward tokens.
type UniV3 struct {
	opts      UniV3Options
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewUniV3 builds a new TWAP source.
func NewUniV3(opts UniV3Options, logger zerolog.Logger) *UniV3 {
	return &UniV3{opts: opts, logger: logger.With().Str("component", "univ3_twap").Logger()}
}

// Consult returns the TWAP over the interval and the pool's observation
// cardinality, letting the caller reject thin oracle history.
func (u *UniV3) Consult(ctx context.Context, interval time.Duration) (*big.Int, int, error) {
	if u.opts.RPCURL == "" {
		return nil, 0, errors.New("ethereum rpc url not configured")
	}
	if u.opts.PoolAddress == "" {
		return nil, 0, errors.New("pool address not configured")
	}
	seconds := uint32(interval / time.Second)
	if seconds == 0 {
		return nil, 0, errors.New("interval must be at least one second")
	}

	timeout := u.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := u.getClient(ctx)
	if err != nil {
		return nil, 0, err
	}
	pool := common.HexToAddress(u.opts.PoolAddress)

	cardinality, err := u.observationCardinality(ctx, client, pool)
	if err != nil {
		return nil, 0, err
	}

	payload, err := univ3PoolABI.Pack("observe", []uint32{seconds, 0})
	if err != nil {
		return nil, 0, err
	}
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: payload}, nil)
	if err != nil {
		return nil, 0, err
	}
	outputs, err := univ3PoolABI.Unpack("observe", res)
	if err != nil {
		return nil, 0, err
	}
	if len(outputs) != 2 {
		return nil, 0, errors.New("unexpected observe response")
	}
	tickCumulatives, ok := outputs[0].([]*big.Int)
	if !ok || len(tickCumulatives) != 2 {
		return nil, 0, errors.New("failed to decode tick cumulatives")
	}

	delta := new(big.Int).Sub(tickCumulatives[1], tickCumulatives[0])
	meanTick := new(big.Int).Quo(delta, big.NewInt(int64(seconds)))

	price := tickToPrice(meanTick.Int64(), u.opts.Invert)
	return price, cardinality, nil
}

func (u *UniV3) observationCardinality(ctx context.Context, client *ethclient.Client, pool common.Address) (int, error) {
	payload, err := univ3PoolABI.Pack("slot0")
	if err != nil {
		return 0, err
	}
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: payload}, nil)
	if err != nil {
		return 0, err
	}
	outputs, err := univ3PoolABI.Unpack("slot0", res)
	if err != nil {
		return 0, err
	}
	if len(outputs) != 7 {
		return 0, errors.New("unexpected slot0 response")
	}
	cardinality, ok := outputs[3].(uint16)
	if !ok {
		return 0, errors.New("failed to decode observation cardinality")
	}
	return int(cardinality), nil
}

// tickToPrice converts a mean tick to wei of quote per 1e18 base:
// price = 1.0001^tick, computed in 1e18 fixed point by square-and-multiply
// over the binary expansion of the tick.
func tickToPrice(tick int64, invert bool) *big.Int {
	one := big.NewInt(1e18)
	negative := tick < 0
	if negative {
		tick = -tick
	}

	// base = 1.0001 in 1e18 fixed point.
	base := big.NewInt(1_000_100_000_000_000_000)
	price := new(big.Int).Set(one)
	for exp := tick; exp > 0; exp >>= 1 {
		if exp&1 == 1 {
			price.Mul(price, base)
			price.Quo(price, one)
		}
		base.Mul(base, base)
		base.Quo(base, one)
	}

	if negative != invert {
		if price.Sign() == 0 {
			return big.NewInt(0)
		}
		inverted := new(big.Int).Mul(one, one)
		return inverted.Quo(inverted, price)
	}
	return price
}

var _ farming.TWAPSource = (*UniV3)(nil)

func (u *UniV3) getClient(ctx context.Context) (*ethclient.Client, error) {
	u.clientMux.Lock()
	defer u.clientMux.Unlock()

	if u.client != nil {
		return u.client, nil
	}
	client, err := ethclient.DialContext(ctx, u.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	u.client = client
	return client, nil
}
