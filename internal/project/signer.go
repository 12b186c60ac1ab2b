package project

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidKey is returned by SignerAddress for credentials that are not
// 32-byte hex private keys.
var ErrInvalidKey = errors.New("credential is not a hex private key")

// SignerAddress derives the checksummed address that signs with credential,
// so tools can show who deploys without printing the key itself.
func SignerAddress(credential string) (string, error) {
	hexKey := strings.TrimPrefix(strings.TrimSpace(credential), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

// Signers maps each network with credentials to the addresses they sign as.
// Credentials that are not private keys map to an empty string.
func (r *Record) Signers() map[string][]string {
	out := make(map[string][]string)
	for _, n := range r.Networks {
		if len(n.Accounts) == 0 {
			continue
		}
		addrs := make([]string, len(n.Accounts))
		for i, account := range n.Accounts {
			addr, err := SignerAddress(account)
			if err == nil {
				addrs[i] = addr
			}
		}
		out[n.Name] = addrs
	}
	return out
}
