package appraisal

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
)

const (
	erc20ABIJSON = `[{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`
)

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("failed to parse ERC-20 ABI: " + err.Error())
	}
	erc20ABI = parsed
}

// ERC20Options parameterise the on-chain appraiser.
type ERC20Options struct {
	RPCURL  string
	Timeout time.Duration
}

// ERC20 values positions described as a concatenation of 20-byte token
// addresses: the appraisal is the sum of the holder's balances across those
// tokens. Lending-market and AMM integrations describe their receipt tokens
// (aTokens, cTokens, LP tokens) this way.
type ERC20 struct {
	opts      ERC20Options
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewERC20 builds a new on-chain appraiser.
func NewERC20(opts ERC20Options, logger zerolog.Logger) *ERC20 {
	return &ERC20{opts: opts, logger: logger.With().Str("component", "erc20_appraiser").Logger()}
}

// AppraisePosition sums the holder's balances over the described tokens.
func (a *ERC20) AppraisePosition(ctx context.Context, holder common.Address, positionDescription []byte) (*big.Int, error) {
	if a.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}
	tokens, err := decodeTokenList(positionDescription)
	if err != nil {
		return nil, err
	}

	timeout := a.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := a.getClient(ctx)
	if err != nil {
		return nil, err
	}

	total := big.NewInt(0)
	for _, token := range tokens {
		payload, err := erc20ABI.Pack("balanceOf", holder)
		if err != nil {
			return nil, err
		}
		token := token
		res, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: payload}, nil)
		if err != nil {
			return nil, err
		}
		outputs, err := erc20ABI.Unpack("balanceOf", res)
		if err != nil {
			return nil, err
		}
		if len(outputs) != 1 {
			return nil, errors.New("unexpected balanceOf response")
		}
		balance, ok := outputs[0].(*big.Int)
		if !ok {
			return nil, errors.New("failed to decode balanceOf output")
		}
		total.Add(total, balance)
	}
	return total, nil
}

func decodeTokenList(description []byte) ([]common.Address, error) {
	if len(description) == 0 || len(description)%common.AddressLength != 0 {
		return nil, errors.New("length mismatch")
	}
	tokens := make([]common.Address, 0, len(description)/common.AddressLength)
	for i := 0; i < len(description); i += common.AddressLength {
		tokens = append(tokens, common.BytesToAddress(description[i:i+common.AddressLength]))
	}
	return tokens, nil
}

func (a *ERC20) getClient(ctx context.Context) (*ethclient.Client, error) {
	a.clientMux.Lock()
	defer a.clientMux.Unlock()

	if a.client != nil {
		return a.client, nil
	}
	client, err := ethclient.DialContext(ctx, a.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}
