// Package journal writes one row per executed mint unit to Postgres. Runs never read
// it back.
package journal

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/lisanmuaddib/nft-minter/pkg/mint"
)

// Store records mint attempts. It implements mint.Recorder.
type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
}

var _ mint.Recorder = (*Store)(nil)

// Open migrates the journal schema and connects to it.
func Open(logger *logrus.Logger, cfg Config) (*Store, error) {
	logger.Debug("Starting journal database setup")

	if err := RunMigrations(logger, cfg); err != nil {
		return nil, err
	}
	version, dirty, err := MigrationStatus(logger, cfg)
	if err != nil {
		return nil, err
	}
	if err := checkSchema(version, dirty); err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: NewGormLogrusLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"database":       cfg.Name,
		"schema_version": version,
	}).Info("Journal database ready")
	return NewStore(db, logger), nil
}

// NewStore wraps an existing connection.
func NewStore(db *gorm.DB, logger *logrus.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// RecordAttempt inserts attempt.
func (s *Store) RecordAttempt(ctx context.Context, attempt mint.Attempt) error {
	row := newRecord(attempt)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert mint attempt: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":  attempt.RunID.String(),
		"unit":    attempt.Unit,
		"outcome": string(row.Outcome),
		"row_id":  row.ID,
	}).Debug("Recorded mint attempt")
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newRecord(a mint.Attempt) MintAttempt {
	row := MintAttempt{
		RunID:           a.RunID,
		WalletID:        a.WalletID,
		WalletAddress:   a.Wallet.Hex(),
		ContractAddress: a.Contract.Hex(),
		Unit:            a.Unit,
		Variant:         a.Result.Variant.String(),
		PriceWei:        decimal(a.Price),
		MaxFeePerGas:    decimal(a.Fees.MaxFeePerGas),
		PriorityFee:     decimal(a.Fees.MaxPriorityFeePerGas),
		FeeFallback:     a.Fees.Fallback,
		AttemptedAt:     a.At.UTC(),
	}

	row.VariantsTried = make([]string, 0, len(a.Result.Tried))
	for _, v := range a.Result.Tried {
		row.VariantsTried = append(row.VariantsTried, v.String())
	}

	if r := a.Result.Receipt; r != nil {
		row.Outcome = OutcomeSuccess
		row.TxHash = hashPtr(r.TxHash)
		row.BlockNumber = decimalPtr(r.BlockNumber)
		gasUsed := r.GasUsed
		row.GasUsed = &gasUsed
		row.EffectiveGasPrice = decimalPtr(r.EffectiveGasPrice)
		return row
	}

	row.Outcome = OutcomeFailure
	if f := a.Result.Failure; f != nil {
		class := string(f.Class)
		reason := f.Reason
		row.FailureClass = &class
		row.Reason = &reason
		row.TxHash = hashPtr(f.TxHash)
	}
	return row
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func decimalPtr(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func hashPtr(h common.Hash) *string {
	if h == (common.Hash{}) {
		return nil
	}
	s := h.Hex()
	return &s
}
