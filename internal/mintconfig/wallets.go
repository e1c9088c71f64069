package mintconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"github.com/lisanmuaddib/nft-minter/pkg/wallet"
)

// maxIndexedKeys bounds the PRIVATE_KEY_n scan.
const maxIndexedKeys = 1000

// LoadWallets builds the ordered wallet list. PRIVATE_KEYS (comma separated) wins;
// otherwise PRIVATE_KEY_1, PRIVATE_KEY_2, ... are read until the first gap. Ids start
// at 1 in list order. Duplicate keys are rejected.
func LoadWallets(v *viper.Viper) ([]*wallet.Wallet, error) {
	var keys []string
	if list := strings.TrimSpace(v.GetString(KeyPrivateKeys)); list != "" {
		for _, k := range strings.Split(list, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	} else {
		for i := 1; i <= maxIndexedKeys; i++ {
			k := strings.TrimSpace(v.GetString(fmt.Sprintf("PRIVATE_KEY_%d", i)))
			if k == "" {
				break
			}
			keys = append(keys, k)
		}
	}

	wallets := make([]*wallet.Wallet, 0, len(keys))
	seen := make(map[string]int, len(keys))
	for i, k := range keys {
		w, err := wallet.NewWallet(i+1, k)
		if err != nil {
			return nil, err
		}
		addr := w.Address().Hex()
		if first, dup := seen[addr]; dup {
			return nil, fmt.Errorf("wallet %d repeats the key of wallet %d (%s)", i+1, first, addr)
		}
		seen[addr] = i + 1
		wallets = append(wallets, w)
	}
	return wallets, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
