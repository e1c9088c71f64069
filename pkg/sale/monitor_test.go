package sale_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/lisanmuaddib/nft-minter/pkg/logging"
	"github.com/lisanmuaddib/nft-minter/pkg/sale"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type readResult struct {
	cfg *sale.SaleConfig
	err error
}

// sequenceReader replays results in order and repeats the last one.
type sequenceReader struct {
	mu      sync.Mutex
	results []readResult
	reads   int
}

func (r *sequenceReader) Read(ctx context.Context) (*sale.SaleConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.reads
	if i >= len(r.results) {
		i = len(r.results) - 1
	}
	r.reads++
	return r.results[i].cfg, r.results[i].err
}

func (r *sequenceReader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

var _ = Describe("SaleConfig", func() {
	start := time.Unix(1_700_000_000, 0)
	end := start.Add(time.Hour)
	cfg := &sale.SaleConfig{StartTime: start, EndTime: end}

	DescribeTable("IsOpen",
		func(now time.Time, want bool) {
			Expect(cfg.IsOpen(now)).To(Equal(want))
		},
		Entry("before start", start.Add(-time.Second), false),
		Entry("at start", start, true),
		Entry("inside", start.Add(time.Minute), true),
		Entry("at end", end, true),
		Entry("after end", end.Add(time.Second), false),
	)

	It("treats a zero end time as open-ended", func() {
		openEnded := &sale.SaleConfig{StartTime: start}
		Expect(openEnded.IsOpen(start.Add(24 * 365 * time.Hour))).To(BeTrue())
		Expect(openEnded.HasEnded(start.Add(24 * 365 * time.Hour))).To(BeFalse())
	})
})

var _ = Describe("Monitor", func() {
	var (
		ctx   context.Context
		now   time.Time
		start time.Time
		price *big.Int
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Unix(1_700_000_000, 0)
		start = now.Add(time.Minute)
		price = big.NewInt(25_000_000_000_000_000)
	})

	newMonitor := func(reader sale.ConfigReader, deadline time.Duration) *sale.Monitor {
		return sale.NewMonitor(reader, sale.MonitorConfig{
			Interval: sale.MinInterval,
			Deadline: deadline,
			Now:      func() time.Time { return now },
		}, logging.Discard())
	}

	notYet := func() readResult {
		return readResult{cfg: &sale.SaleConfig{StartTime: start, EndTime: start.Add(time.Hour), Price: price}}
	}
	open := func() readResult {
		return readResult{cfg: &sale.SaleConfig{StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Hour), Price: price}}
	}

	It("defaults and clamps the interval", func() {
		Expect(sale.NewMonitor(nil, sale.MonitorConfig{}, nil).Interval()).To(Equal(sale.DefaultInterval))
		Expect(sale.NewMonitor(nil, sale.MonitorConfig{Interval: time.Millisecond}, nil).Interval()).To(Equal(sale.MinInterval))
	})

	It("opens immediately and calls back once with the price", func() {
		reader := &sequenceReader{results: []readResult{open()}}
		m := newMonitor(reader, 0)

		calls := 0
		var got *big.Int
		err := m.Wait(ctx, func(ctx context.Context, p *big.Int) error {
			calls++
			got = p
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))
		Expect(got).To(Equal(price))
		Expect(m.State()).To(Equal(sale.Open))
		Expect(reader.count()).To(Equal(1))
	})

	It("keeps waiting through not-yet-open ticks and read errors", func() {
		reader := &sequenceReader{results: []readResult{
			notYet(),
			{err: errors.New("rpc unavailable")},
			open(),
		}}
		m := newMonitor(reader, 0)

		calls := 0
		err := m.Wait(ctx, func(context.Context, *big.Int) error {
			calls++
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))
		Expect(reader.count()).To(Equal(3))
	})

	It("stays waiting while the window is closed", func() {
		closed := readResult{cfg: &sale.SaleConfig{
			StartTime: now.Add(-2 * time.Hour),
			EndTime:   now.Add(-time.Hour),
			Price:     price,
		}}
		reader := &sequenceReader{results: []readResult{closed}}
		m := newMonitor(reader, 350*time.Millisecond)

		err := m.Wait(ctx, func(context.Context, *big.Int) error {
			Fail("callback must not run for a closed window")
			return nil
		})

		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(m.State()).To(Equal(sale.Waiting))
		Expect(reader.count()).To(BeNumerically(">=", 2))
	})

	It("returns the callback's error", func() {
		reader := &sequenceReader{results: []readResult{open()}}
		boom := errors.New("mint run failed")

		err := newMonitor(reader, 0).Wait(ctx, func(context.Context, *big.Int) error { return boom })

		Expect(err).To(MatchError(boom))
	})

	It("does not hold the callback to the wait deadline", func() {
		reader := &sequenceReader{results: []readResult{open()}}

		err := newMonitor(reader, time.Hour).Wait(ctx, func(cbCtx context.Context, _ *big.Int) error {
			_, hasDeadline := cbCtx.Deadline()
			Expect(hasDeadline).To(BeFalse())
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
	})

	It("returns when the context is cancelled", func() {
		reader := &sequenceReader{results: []readResult{notYet()}}
		m := newMonitor(reader, 0)
		cctx, cancel := context.WithCancel(ctx)

		done := make(chan error, 1)
		go func() {
			done <- m.Wait(cctx, func(context.Context, *big.Int) error { return nil })
		}()

		Eventually(reader.count).Should(BeNumerically(">=", 1))
		cancel()
		Eventually(done).Should(Receive(MatchError(context.Canceled)))
		Expect(m.State()).To(Equal(sale.Waiting))
	})

	It("gives up at the deadline", func() {
		reader := &sequenceReader{results: []readResult{notYet()}}

		err := newMonitor(reader, 250*time.Millisecond).Wait(ctx, func(context.Context, *big.Int) error { return nil })

		Expect(err).To(MatchError(context.DeadlineExceeded))
	})
})
