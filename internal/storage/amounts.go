// internal/storage/amounts.go
package storage

import "math/big"

func amountString(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}

func product(a, b *big.Int) string {
	if a == nil || b == nil {
		return "0"
	}
	return new(big.Int).Mul(a, b).String()
}
