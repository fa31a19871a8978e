// internal/types/address.go
package types

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Address identifies accounts, tokens, pairs and contracts.
type Address = solana.PublicKey

// ZeroAddress is the empty handle returned by lookups that found nothing.
var ZeroAddress = solana.PublicKey{}

// LaunchpadProgramID is the base program used to derive contract and pair addresses.
var LaunchpadProgramID = programID("launchpad")

func programID(name string) Address {
	sum := sha256.Sum256([]byte(name))
	return solana.PublicKeyFromBytes(sum[:])
}

// SortAddresses returns a and b in canonical (byte) order.
func SortAddresses(a, b Address) (Address, Address) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

// DeriveAddress derives a deterministic program address from the given seeds.
func DeriveAddress(seeds ...[]byte) (Address, error) {
	addr, _, err := solana.FindProgramAddress(seeds, LaunchpadProgramID)
	if err != nil {
		return ZeroAddress, fmt.Errorf("failed to derive address: %w", err)
	}
	return addr, nil
}

// MustDeriveAddress is DeriveAddress for seeds known to be valid.
func MustDeriveAddress(seeds ...[]byte) Address {
	addr, err := DeriveAddress(seeds...)
	if err != nil {
		panic(err)
	}
	return addr
}

// ShortAddress renders an address for logs: first and last 4 symbols.
func ShortAddress(a Address) string {
	s := a.String()
	if len(s) <= 10 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}
