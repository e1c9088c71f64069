package main

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lisanmuaddib/nft-minter/pkg/mint"
)

var _ = Describe("minter run", func() {
	var (
		a       *app
		envFile string
	)

	BeforeEach(func() {
		a = &app{}
		envFile = filepath.Join(GinkgoT().TempDir(), "absent.env")
	})

	execute := func(args ...string) error {
		root := newRootCmdFor(a)
		root.SetArgs(append(args, "--env-file", envFile))
		return root.ExecuteContext(context.Background())
	}

	It("rejects an unknown mode before touching the network", func() {
		err := execute("run", "--mode", "later")

		Expect(err).To(MatchError(ContainSubstring(`--mode must be "immediate" or "monitor"`)))
	})

	It("lets flags override the environment", func() {
		err := execute("run", "--mode", "later",
			"--amount", "4",
			"--variant", "two",
			"--gas-limit", "123456",
			"--log-level", "error",
		)

		Expect(err).To(HaveOccurred())
		Expect(a.cfg).NotTo(BeNil())
		Expect(a.cfg.MintAmount).To(Equal(4))
		Expect(a.cfg.Variant).To(Equal(mint.TwoParam))
		Expect(a.cfg.GasLimit).To(Equal(uint64(123456)))
		Expect(a.base.GetLevel().String()).To(Equal("error"))
	})

	It("fails on a malformed contract flag", func() {
		err := execute("run", "--contract", "0x1234")

		Expect(err).To(HaveOccurred())
		Expect(a.cfg).To(BeNil())
	})
})
