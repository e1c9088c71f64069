package journal

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Outcome of one executed unit.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// MintAttempt is one row of mint_attempts. Wei amounts are stored as NUMERIC and
// carried as decimal strings.
type MintAttempt struct {
	ID              int64          `gorm:"primaryKey;column:id"`
	RunID           uuid.UUID      `gorm:"column:run_id;type:uuid;not null"`
	WalletID        int            `gorm:"column:wallet_id;not null"`
	WalletAddress   string         `gorm:"column:wallet_address;not null"`
	ContractAddress string         `gorm:"column:contract_address;not null"`
	Unit            int            `gorm:"column:unit;not null"`
	Variant         string         `gorm:"column:variant;not null"`
	VariantsTried   pq.StringArray `gorm:"column:variants_tried;type:text[]"`
	Outcome         Outcome        `gorm:"column:outcome;not null"`

	// Failure
	FailureClass *string `gorm:"column:failure_class"`
	Reason       *string `gorm:"column:reason"`

	// Receipt; TxHash is also set for failures that happened after broadcast.
	TxHash            *string `gorm:"column:tx_hash"`
	BlockNumber       *string `gorm:"column:block_number;type:numeric"`
	GasUsed           *uint64 `gorm:"column:gas_used"`
	EffectiveGasPrice *string `gorm:"column:effective_gas_price;type:numeric"`

	PriceWei     string `gorm:"column:price_wei;type:numeric;not null"`
	MaxFeePerGas string `gorm:"column:max_fee_per_gas;type:numeric;not null"`
	PriorityFee  string `gorm:"column:priority_fee;type:numeric;not null"`
	FeeFallback  bool   `gorm:"column:fee_fallback;not null"`

	AttemptedAt time.Time `gorm:"column:attempted_at;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (MintAttempt) TableName() string {
	return "mint_attempts"
}
