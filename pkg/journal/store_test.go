package journal

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lisanmuaddib/nft-minter/pkg/fees"
	"github.com/lisanmuaddib/nft-minter/pkg/mint"
)

var _ = Describe("newRecord", func() {
	var attempt mint.Attempt

	BeforeEach(func() {
		attempt = mint.Attempt{
			RunID:    uuid.MustParse("6f1c2a9e-1f0b-4a53-9d1c-2b8f3e4a5c6d"),
			WalletID: 2,
			Wallet:   common.HexToAddress("0x00000000000000000000000000000000000000aa"),
			Contract: common.HexToAddress("0x00000000000000000000000000000000000c0de1"),
			Unit:     1,
			Price:    big.NewInt(1_000_000_000_000_000),
			Fees: fees.FeeQuote{
				MaxFeePerGas:         fees.Gwei(40),
				MaxPriorityFeePerGas: fees.Gwei(2),
			},
			At: time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600)),
		}
	})

	It("stores a success with its receipt", func() {
		hash := common.HexToHash("0xabc")
		attempt.Result = mint.Result{
			Variant: mint.TwoParam,
			Tried:   []mint.Variant{mint.FourParam, mint.TwoParam},
			Receipt: &mint.Receipt{
				TxHash:            hash,
				BlockNumber:       big.NewInt(19_000_000),
				GasUsed:           87_000,
				EffectiveGasPrice: fees.Gwei(21),
			},
		}

		row := newRecord(attempt)

		Expect(row.Outcome).To(Equal(OutcomeSuccess))
		Expect(row.Variant).To(Equal("TwoParam"))
		Expect([]string(row.VariantsTried)).To(Equal([]string{"FourParam", "TwoParam"}))
		Expect(*row.TxHash).To(Equal(hash.Hex()))
		Expect(*row.BlockNumber).To(Equal("19000000"))
		Expect(*row.GasUsed).To(Equal(uint64(87_000)))
		Expect(*row.EffectiveGasPrice).To(Equal("21000000000"))
		Expect(row.PriceWei).To(Equal("1000000000000000"))
		Expect(row.MaxFeePerGas).To(Equal("40000000000"))
		Expect(row.PriorityFee).To(Equal("2000000000"))
		Expect(row.FailureClass).To(BeNil())
		Expect(row.AttemptedAt.Location()).To(Equal(time.UTC))
		Expect(row.WalletAddress).To(Equal(attempt.Wallet.Hex()))
	})

	It("stores a pre-broadcast failure without a hash", func() {
		attempt.Result = mint.Result{
			Variant: mint.FourParam,
			Tried:   []mint.Variant{mint.FourParam},
			Failure: &mint.Failure{Class: mint.InsufficientFunds, Reason: "insufficient funds", Err: errors.New("x")},
		}

		row := newRecord(attempt)

		Expect(row.Outcome).To(Equal(OutcomeFailure))
		Expect(*row.FailureClass).To(Equal("insufficient_funds"))
		Expect(*row.Reason).To(Equal("insufficient funds"))
		Expect(row.TxHash).To(BeNil())
		Expect(row.GasUsed).To(BeNil())
	})

	It("keeps the hash of a transaction that was mined and failed", func() {
		hash := common.HexToHash("0xdef")
		attempt.Result = mint.Result{
			Variant: mint.FourParam,
			Tried:   []mint.Variant{mint.FourParam},
			Failure: &mint.Failure{Class: mint.ExecutionFailed, Reason: "transaction mined but execution failed", TxHash: hash},
		}

		row := newRecord(attempt)

		Expect(*row.TxHash).To(Equal(hash.Hex()))
		Expect(*row.FailureClass).To(Equal("execution_failed"))
	})

	It("writes zero for a missing amount", func() {
		attempt.Price = nil
		attempt.Result = mint.Result{Failure: &mint.Failure{Class: mint.Other}}

		Expect(newRecord(attempt).PriceWei).To(Equal("0"))
	})
})

var _ = Describe("Store", func() {
	It("builds an insert into mint_attempts", func() {
		db, err := gorm.Open(postgres.Open("host=localhost user=u password=p dbname=d port=5432 sslmode=disable"), &gorm.Config{
			DryRun:                 true,
			DisableAutomaticPing:   true,
			SkipDefaultTransaction: true,
			Logger:               logger.Discard,
		})
		Expect(err).NotTo(HaveOccurred())

		row := newRecord(mint.Attempt{
			RunID:  uuid.New(),
			Result: mint.Result{Failure: &mint.Failure{Class: mint.CallReverted, Reason: "execution reverted"}},
		})
		stmt := db.Create(&row).Statement

		Expect(stmt.Table).To(Equal("mint_attempts"))
		Expect(stmt.SQL.String()).To(ContainSubstring(`INSERT INTO "mint_attempts"`))
		Expect(stmt.SQL.String()).To(ContainSubstring(`"variants_tried"`))

		store := NewStore(db, logrus.New())
		Expect(store.RecordAttempt(context.Background(), mint.Attempt{RunID: uuid.New()})).To(Succeed())
	})
})

var _ = Describe("Config", func() {
	cfg := Config{Host: "db", Port: "5432", User: "minter", Password: "p@ss", Name: "mints"}

	It("is enabled only with a host", func() {
		Expect(cfg.Enabled()).To(BeTrue())
		Expect(Config{}.Enabled()).To(BeFalse())
	})

	It("builds the gorm DSN", func() {
		Expect(cfg.DSN()).To(Equal("host=db user=minter password=p@ss dbname=mints port=5432 sslmode=disable"))
	})

	It("escapes credentials in the migrate URL", func() {
		Expect(cfg.URL()).To(Equal("postgres://minter:p%40ss@db:5432/mints?sslmode=disable"))
	})

	It("finds the migrations that ship with the module", func() {
		dir, err := cfg.migrationsDir()
		Expect(err).NotTo(HaveOccurred())

		drv, err := source.Open("file://" + dir)
		Expect(err).NotTo(HaveOccurred())
		defer drv.Close()

		first, err := drv.First()
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal(uint(1)))
	})
})

type fakeVersioner struct {
	version uint
	dirty   bool
	err     error
}

func (f fakeVersioner) Version() (uint, bool, error) {
	return f.version, f.dirty, f.err
}

var _ = Describe("schema version", func() {
	var base *logrus.Logger

	BeforeEach(func() {
		base, _ = logtest.NewNullLogger()
	})

	It("reports version zero on a fresh database", func() {
		version, dirty, err := readVersion(base, fakeVersioner{err: migrate.ErrNilVersion})

		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())
		Expect(checkSchema(version, dirty)).To(Succeed())
	})

	It("accepts a clean schema", func() {
		version, dirty, err := readVersion(base, fakeVersioner{version: 1})

		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
		Expect(checkSchema(version, dirty)).To(Succeed())
	})

	It("refuses a dirty schema", func() {
		version, dirty, err := readVersion(base, fakeVersioner{version: 1, dirty: true})

		Expect(err).NotTo(HaveOccurred())
		Expect(checkSchema(version, dirty)).To(MatchError(ContainSubstring("dirty at version 1")))
	})

	It("wraps version read errors", func() {
		boom := errors.New("relation schema_migrations is locked")

		_, _, err := readVersion(base, fakeVersioner{err: boom})

		Expect(err).To(MatchError(boom))
	})
})

var _ = Describe("GormLogrusLogger", func() {
	var (
		base *logrus.Logger
		hook *logtest.Hook
		gl   *GormLogrusLogger
	)

	BeforeEach(func() {
		base, hook = logtest.NewNullLogger()
		base.SetLevel(logrus.DebugLevel)
		gl = NewGormLogrusLogger(base)
	})

	sql := func() (string, int64) { return "INSERT INTO mint_attempts ...", 1 }

	It("logs failed queries as errors", func() {
		gl.Trace(context.Background(), time.Now(), sql, errors.New("connection refused"))

		Expect(hook.LastEntry().Level).To(Equal(logrus.ErrorLevel))
		Expect(hook.LastEntry().Data).To(HaveKeyWithValue("source", "gorm"))
	})

	It("does not treat a missing record as an error", func() {
		gl.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)

		Expect(hook.LastEntry().Level).To(Equal(logrus.DebugLevel))
	})

	It("warns about slow queries", func() {
		gl.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)

		Expect(hook.LastEntry().Level).To(Equal(logrus.WarnLevel))
		Expect(hook.LastEntry().Message).To(Equal("slow query detected"))
	})

	It("is quiet in silent mode", func() {
		gl.LogMode(logger.Silent).Trace(context.Background(), time.Now(), sql, errors.New("boom"))

		Expect(hook.AllEntries()).To(BeEmpty())
	})
})
