package sale

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Probe is one getConfig call shape. ID is nil for the no-argument form.
type Probe struct {
	ID *big.Int
}

func (p Probe) String() string {
	if p.ID == nil {
		return configMethod + "()"
	}
	return fmt.Sprintf("%s(%s)", configMethod, p.ID)
}

func (p Probe) method() abi.Method {
	if p.ID == nil {
		return noArgABI.Methods[configMethod]
	}
	return indexedABI.Methods[configMethod]
}

func (p Probe) pack() ([]byte, error) {
	if p.ID == nil {
		return noArgABI.Pack(configMethod)
	}
	return indexedABI.Pack(configMethod, p.ID)
}

// DefaultProbes is getConfig() followed by getConfig(0) through getConfig(3).
func DefaultProbes() []Probe {
	probes := []Probe{{}}
	for id := int64(0); id <= 3; id++ {
		probes = append(probes, Probe{ID: big.NewInt(id)})
	}
	return probes
}

// Reader fetches SaleConfig snapshots. *wallet.Client satisfies ethereum.ContractCaller.
type Reader struct {
	caller   ethereum.ContractCaller
	contract common.Address
	probes   []Probe
}

// NewReader returns a reader using DefaultProbes.
func NewReader(caller ethereum.ContractCaller, contract common.Address) *Reader {
	return &Reader{caller: caller, contract: contract, probes: DefaultProbes()}
}

// WithProbes replaces the probe list. The list is tried in order on every Read.
func (r *Reader) WithProbes(probes ...Probe) *Reader {
	cp := *r
	cp.probes = append([]Probe(nil), probes...)
	return &cp
}

// Read tries each probe in order and returns the first config that decodes. When all
// fail, the last error is returned together with the probes tried.
func (r *Reader) Read(ctx context.Context) (*SaleConfig, error) {
	if len(r.probes) == 0 {
		return nil, errors.New("no config probes configured")
	}

	tried := make([]string, 0, len(r.probes))
	var lastErr error
	for _, probe := range r.probes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tried = append(tried, probe.String())

		cfg, err := r.read(ctx, probe)
		if err != nil {
			lastErr = err
			continue
		}
		cfg.Probe = probe.String()
		return cfg, nil
	}

	return nil, fmt.Errorf("read sale config from %s (tried %s): %w",
		r.contract.Hex(), strings.Join(tried, ", "), lastErr)
}

func (r *Reader) read(ctx context.Context, probe Probe) (*SaleConfig, error) {
	data, err := probe.pack()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", probe, err)
	}

	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", probe, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty response", probe)
	}
	return decodeConfig(probe.method(), out)
}

// CurrentPrice reads the config and returns its public price.
func (r *Reader) CurrentPrice(ctx context.Context) (*big.Int, error) {
	cfg, err := r.Read(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.Price, nil
}
