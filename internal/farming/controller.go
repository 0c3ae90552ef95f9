package farming

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Controller routes farm reward accruals into options. Harvested rewards
// never pay out directly; they mint an option whose strike reflects the
// TWAP at harvest time.
type Controller struct {
	mu      sync.Mutex
	address common.Address
	farms   map[string]*Farm
	options *OptionsFarming
	logger  zerolog.Logger
}

// NewController constructs a controller identified by the given address;
// the options engine must be created with the same controller address.
func NewController(address common.Address, options *OptionsFarming, logger zerolog.Logger) *Controller {
	return &Controller{
		address: address,
		farms:   make(map[string]*Farm),
		options: options,
		logger:  logger.With().Str("component", "farm_controller").Logger(),
	}
}

// RegisterFarm adds a farm under a name.
func (c *Controller) RegisterFarm(name string, farm *Farm) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.farms[name] = farm
}

// Farm returns a registered farm.
func (c *Controller) Farm(name string) (*Farm, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.farms[name]
	return f, ok
}

// Deposit stakes into a named farm, converting any harvested reward into an
// option. Returns the minted option ID, or zero when nothing was accrued.
func (c *Controller) Deposit(ctx context.Context, farmName string, user common.Address, amount *big.Int) (uint64, error) {
	c.mu.Lock()
	farm, ok := c.farms[farmName]
	c.mu.Unlock()
	if !ok {
		return 0, ErrUnknownFarm
	}
	harvested := farm.Deposit(user, amount)
	return c.mintIfAccrued(ctx, user, harvested)
}

// Withdraw unstakes from a named farm, converting any harvested reward into
// an option.
func (c *Controller) Withdraw(ctx context.Context, farmName string, user common.Address, amount *big.Int) (uint64, error) {
	c.mu.Lock()
	farm, ok := c.farms[farmName]
	c.mu.Unlock()
	if !ok {
		return 0, ErrUnknownFarm
	}
	harvested, err := farm.Withdraw(user, amount)
	if err != nil {
		return 0, err
	}
	return c.mintIfAccrued(ctx, user, harvested)
}

func (c *Controller) mintIfAccrued(ctx context.Context, user common.Address, harvested *big.Int) (uint64, error) {
	if harvested == nil || harvested.Sign() == 0 {
		return 0, nil
	}
	id, err := c.options.CreateOption(ctx, c.address, user, harvested)
	if err != nil {
		return 0, err
	}
	c.logger.Info().
		Uint64("option_id", id).
		Str("user", user.Hex()).
		Str("reward_wei", harvested.String()).
		Msg("harvest converted to option")
	return id, nil
}
