package mint_test

import (
	"context"
	"math/big"

	"github.com/lisanmuaddib/nft-minter/pkg/fees"
	"github.com/lisanmuaddib/nft-minter/pkg/mint"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Preflight", func() {
	var (
		ctx      context.Context
		price    *big.Int
		maxFee   *big.Int
		gasLimit uint64
		required *big.Int
	)

	BeforeEach(func() {
		ctx = context.Background()
		price = big.NewInt(10_000_000_000_000_000)
		maxFee = fees.Gwei(30)
		gasLimit = 150_000

		gas := new(big.Int).Mul(maxFee, new(big.Int).SetUint64(gasLimit))
		required = new(big.Int).Add(price, gas)
	})

	It("reports insufficient one wei below price + max fee * gas limit", func() {
		w := newWallet(1)
		balances := fakeBalances{w.Address(): new(big.Int).Sub(required, big.NewInt(1))}

		check, err := mint.NewPreflight(balances).Check(ctx, w.Address(), price, 1, maxFee, gasLimit)

		Expect(err).NotTo(HaveOccurred())
		Expect(check.Sufficient).To(BeFalse())
		Expect(check.Required).To(Equal(required))
	})

	It("reports sufficient at exactly price + max fee * gas limit", func() {
		w := newWallet(1)
		balances := fakeBalances{w.Address(): new(big.Int).Set(required)}

		check, err := mint.NewPreflight(balances).Check(ctx, w.Address(), price, 1, maxFee, gasLimit)

		Expect(err).NotTo(HaveOccurred())
		Expect(check.Sufficient).To(BeTrue())
		Expect(check.Balance).To(Equal(required))
	})

	It("charges gas once per unit", func() {
		got := mint.RequiredBalance(price, 3, maxFee, gasLimit)
		want := new(big.Int).Mul(required, big.NewInt(3))
		Expect(got).To(Equal(want))
	})

	It("handles a free mint", func() {
		got := mint.RequiredBalance(nil, 2, maxFee, gasLimit)
		Expect(got).To(Equal(new(big.Int).Mul(new(big.Int).Sub(required, price), big.NewInt(2))))
	})

	It("returns the balance read error with the required amount", func() {
		w := newWallet(1)

		check, err := mint.NewPreflight(fakeBalances{}).Check(ctx, w.Address(), price, 1, maxFee, gasLimit)

		Expect(err).To(MatchError(ContainSubstring("balance unavailable")))
		Expect(check.Sufficient).To(BeFalse())
		Expect(check.Required).To(Equal(required))
	})
})
