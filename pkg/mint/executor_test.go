package mint_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/lisanmuaddib/nft-minter/pkg/fees"
	"github.com/lisanmuaddib/nft-minter/pkg/logging"
	"github.com/lisanmuaddib/nft-minter/pkg/mint"
	"github.com/lisanmuaddib/nft-minter/pkg/wallet"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Variant", func() {
	It("parses the accepted spellings", func() {
		for _, s := range []string{"four", "4", "FourParam", "four-param"} {
			v, err := mint.ParseVariant(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(mint.FourParam))
		}
		v, err := mint.ParseVariant(" TWO ")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(mint.TwoParam))

		_, err = mint.ParseVariant("three")
		Expect(err).To(HaveOccurred())
	})

	It("alternates between the two shapes", func() {
		Expect(mint.FourParam.Alternate()).To(Equal(mint.TwoParam))
		Expect(mint.TwoParam.Alternate()).To(Equal(mint.FourParam))
	})

	It("packs distinct calldata for each shape", func() {
		to := common.HexToAddress("0x00000000000000000000000000000000000000aa")

		four, err := mint.FourParam.Pack(to, big.NewInt(1))
		Expect(err).NotTo(HaveOccurred())
		two, err := mint.TwoParam.Pack(to, big.NewInt(1))
		Expect(err).NotTo(HaveOccurred())

		Expect(four[:4]).NotTo(Equal(two[:4]))
		// selector + to + tokenId + qty + bytes offset + bytes length
		Expect(four).To(HaveLen(4 + 5*32))
		// selector + to + qty
		Expect(two).To(HaveLen(4 + 2*32))
		Expect(common.BytesToAddress(two[4:36])).To(Equal(to))
		Expect(new(big.Int).SetBytes(two[36:68])).To(Equal(big.NewInt(1)))
	})
})

var _ = Describe("Classify", func() {
	DescribeTable("maps errors to failure classes",
		func(err error, want mint.FailureClass) {
			Expect(mint.Classify(err)).To(Equal(want))
		},
		Entry("wallet revert", revertErr(), mint.CallReverted),
		Entry("wrapped wallet revert", fmt.Errorf("submit: %w", revertErr()), mint.CallReverted),
		Entry("wallet insufficient funds", wallet.NewWalletError(wallet.ErrCodeInsufficientFunds, "x", nil, ""), mint.InsufficientFunds),
		Entry("wallet rpc error", wallet.NewWalletError(wallet.ErrCodeRPCError, "x", errors.New("execution reverted"), ""), mint.Other),
		Entry("bare revert text", errors.New("execution reverted: max supply"), mint.CallReverted),
		Entry("bare funds text", errors.New("insufficient funds for transfer"), mint.InsufficientFunds),
		Entry("cancelled", context.Canceled, mint.Other),
		Entry("anything else", errors.New("EOF"), mint.Other),
	)

	It("returns nothing for nil", func() {
		Expect(mint.Classify(nil)).To(BeEmpty())
	})
})

var _ = Describe("Executor", func() {
	var (
		ctx       context.Context
		submitter *fakeSubmitter
		executor  *mint.Executor
		req       mint.Request
	)

	BeforeEach(func() {
		ctx = context.Background()
		submitter = newFakeSubmitter()
		executor = mint.NewExecutor(submitter, logging.Discard())
		req = mint.Request{
			Contract:             contract,
			Wallet:               newWallet(1),
			GasLimit:             200_000,
			MaxFeePerGas:         fees.Gwei(40),
			MaxPriorityFeePerGas: fees.Gwei(2),
			Variant:              mint.FourParam,
			Price:                big.NewInt(5_000_000_000_000_000),
		}
	})

	It("mints with the requested variant and reports the receipt", func() {
		res := executor.Execute(ctx, req)

		Expect(res.Succeeded()).To(BeTrue())
		Expect(res.Failure).To(BeNil())
		Expect(res.Variant).To(Equal(mint.FourParam))
		Expect(res.Tried).To(Equal([]mint.Variant{mint.FourParam}))
		Expect(res.Receipt.BlockNumber).To(Equal(big.NewInt(1000)))
		Expect(res.Receipt.GasUsed).To(Equal(uint64(90_000)))
		Expect(res.Receipt.EffectiveGasPrice).To(Equal(fees.Gwei(12)))

		Expect(submitter.calls).To(HaveLen(1))
		sent := submitter.calls[0].req
		Expect(sent.To).To(Equal(contract))
		Expect(sent.Value).To(Equal(req.Price))
		Expect(sent.GasLimit).To(Equal(uint64(200_000)))
	})

	Context("when FourParam reverts", func() {
		BeforeEach(func() {
			submitter.onSubmit = func(v mint.Variant, _ common.Address, _ int) error {
				if v == mint.FourParam {
					return revertErr()
				}
				return nil
			}
		})

		It("retries exactly once as TwoParam with identical fees", func() {
			res := executor.Execute(ctx, req)

			Expect(res.Succeeded()).To(BeTrue())
			Expect(res.Variant).To(Equal(mint.TwoParam))
			Expect(res.Tried).To(Equal([]mint.Variant{mint.FourParam, mint.TwoParam}))

			Expect(submitter.calls).To(HaveLen(2))
			first, second := submitter.calls[0], submitter.calls[1]
			Expect(first.variant).To(Equal(mint.FourParam))
			Expect(second.variant).To(Equal(mint.TwoParam))
			Expect(second.req.GasFeeCap).To(Equal(first.req.GasFeeCap))
			Expect(second.req.GasTipCap).To(Equal(first.req.GasTipCap))
			Expect(second.req.GasLimit).To(Equal(first.req.GasLimit))
			Expect(second.req.Value).To(Equal(first.req.Value))
		})

		It("does not retry when fallback is disabled", func() {
			res := executor.WithoutFallback().Execute(ctx, req)

			Expect(res.Succeeded()).To(BeFalse())
			Expect(res.Failure.Class).To(Equal(mint.CallReverted))
			Expect(submitter.calls).To(HaveLen(1))
		})
	})

	It("reports the second revert when both shapes revert", func() {
		submitter.onSubmit = func(mint.Variant, common.Address, int) error { return revertErr() }

		res := executor.Execute(ctx, req)

		Expect(res.Succeeded()).To(BeFalse())
		Expect(res.Variant).To(Equal(mint.TwoParam))
		Expect(res.Failure.Class).To(Equal(mint.CallReverted))
		Expect(res.Failure.Reason).To(Equal("execution reverted: sale not active"))
		Expect(submitter.calls).To(HaveLen(2))
	})

	It("does not fall back from TwoParam", func() {
		req.Variant = mint.TwoParam
		submitter.onSubmit = func(mint.Variant, common.Address, int) error { return revertErr() }

		res := executor.Execute(ctx, req)

		Expect(res.Failure.Class).To(Equal(mint.CallReverted))
		Expect(submitter.calls).To(HaveLen(1))
	})

	It("surfaces insufficient funds without fallback", func() {
		submitter.onSubmit = func(mint.Variant, common.Address, int) error {
			return wallet.NewWalletError(wallet.ErrCodeInsufficientFunds, "insufficient funds for gas * price + value", nil, wallet.ETH)
		}

		res := executor.Execute(ctx, req)

		Expect(res.Failure.Class).To(Equal(mint.InsufficientFunds))
		Expect(res.Failure.Err).To(HaveOccurred())
		Expect(submitter.calls).To(HaveLen(1))
	})

	It("surfaces network errors without fallback", func() {
		submitter.onSubmit = func(mint.Variant, common.Address, int) error { return errors.New("connection reset by peer") }

		res := executor.Execute(ctx, req)

		Expect(res.Failure.Class).To(Equal(mint.Other))
		Expect(res.Failure.Reason).To(Equal("connection reset by peer"))
		Expect(submitter.calls).To(HaveLen(1))
	})

	It("treats a mined receipt with failed status as a failure", func() {
		submitter.status = types.ReceiptStatusFailed

		res := executor.Execute(ctx, req)

		Expect(res.Succeeded()).To(BeFalse())
		Expect(res.Receipt).To(BeNil())
		Expect(res.Failure.Class).To(Equal(mint.ExecutionFailed))
		Expect(res.Failure.TxHash).NotTo(Equal(common.Hash{}))
		Expect(wallet.IsWalletError(res.Failure, wallet.ErrCodeReceiptFailed)).To(BeTrue())
		Expect(submitter.calls).To(HaveLen(1))
	})

	It("fails when the receipt never arrives", func() {
		submitter.waitErr = wallet.NewWalletError(wallet.ErrCodeTimeout, "timeout waiting for receipt", nil, wallet.ETH)

		res := executor.Execute(ctx, req)

		Expect(res.Failure.Class).To(Equal(mint.Other))
		Expect(res.Failure.TxHash).NotTo(Equal(common.Hash{}))
	})
})
