// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"encoding/csv"
	"fmt"
	"math/big"
	"os"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/rovshanmuradov/launchpad/internal/governance/vetoken"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// Wallet is a named ed25519 keypair. Its public key is the ledger account.
type Wallet struct {
	Name       string
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// NewWallet создаёт кошелёк из base58-encoded приватного ключа.
func NewWallet(name, privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	privateKey := solana.PrivateKey(privateKeyBytes)
	return &Wallet{
		Name:       name,
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
	}, nil
}

// Generate creates a wallet with a fresh random key.
func Generate(name string) (*Wallet, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &Wallet{Name: name, PrivateKey: key, PublicKey: key.PublicKey()}, nil
}

// Address returns the ledger account of the wallet.
func (w *Wallet) Address() types.Address { return w.PublicKey }

// SignPermit signs a vote-escrow permit letting spender use value of the
// wallet's balance.
func (w *Wallet) SignPermit(domainSep types.Hash, spender types.Address, value *big.Int, nonce, deadline uint64) (solana.Signature, error) {
	digest := vetoken.PermitDigest(domainSep, w.PublicKey, spender, value, nonce, deadline)
	sig, err := w.PrivateKey.Sign(digest[:])
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign permit: %w", err)
	}
	return sig, nil
}

// LoadWallets загружает кошельки из CSV-файла с колонками: [Name, PrivateKeyBase58].
// Rows that fail to decode are skipped.
func LoadWallets(path string) (map[string]*Wallet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV file is empty or missing data")
	}

	wallets := make(map[string]*Wallet)
	for _, record := range records[1:] {
		if len(record) != 2 || record[0] == "" {
			continue
		}
		w, err := NewWallet(record[0], record[1])
		if err != nil {
			continue
		}
		wallets[w.Name] = w
	}
	if len(wallets) == 0 {
		return nil, fmt.Errorf("no valid wallets in %s", path)
	}
	return wallets, nil
}

// SaveWallets writes wallets to path in the LoadWallets format, sorted by name.
func SaveWallets(path string, wallets map[string]*Wallet) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	names := make([]string, 0, len(wallets))
	for name := range wallets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := csv.NewWriter(file)
	if err := out.Write([]string{"name", "private_key"}); err != nil {
		return err
	}
	for _, name := range names {
		if err := out.Write([]string{name, base58.Encode(wallets[name].PrivateKey)}); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
