package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PolicyEventRecord is a journaled lifecycle event: creation, extension,
// update, cancellation, expiry, or claim submission. Monetary columns are
// wei carried as decimals.
type PolicyEventRecord struct {
	ID         int64
	OccurredAt time.Time
	Event      string
	PolicyID   int64
	Holder     string
	Strategy   string
	CoverWei   decimal.Decimal
	AmountWei  decimal.Decimal
	Block      int64
	CreatedAt  time.Time
}

// UtilizationSample is a periodic snapshot of risk capacity and vault
// solvency taken by the service loop.
type UtilizationSample struct {
	Bucket         time.Time
	Product        string
	Strategy       string
	ActiveCoverWei decimal.Decimal
	MaxCoverWei    decimal.Decimal
	UtilizationPct decimal.Decimal
	VaultWei       decimal.Decimal
	LiabilityWei   decimal.Decimal
	CreatedAt      time.Time
}
