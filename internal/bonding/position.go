package bonding

import (
	"math/big"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/types"
)

// Status is the lifecycle stage of a launched token.
type Status uint8

const (
	StatusCreated Status = iota
	StatusBonding
	StatusGraduated
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusBonding:
		return "bonding"
	case StatusGraduated:
		return "graduated"
	default:
		return "unknown"
	}
}

// LaunchParams is the creator supplied description of a new token.
type LaunchParams struct {
	Name        string
	Symbol      string
	Cores       []uint8
	Description string
	Image       string
	URLs        [4]string // twitter, telegram, youtube, website
}

// Position is the curve record of one launched token.
type Position struct {
	Token   types.Address
	Pair    types.Address
	Router  types.Address
	Creator types.Address
	Info    LaunchParams

	VirtualAsset        *big.Int
	AssetRaised         *big.Int
	TokenReserve        *big.Int
	PurchaseCap         *big.Int
	GraduationThreshold *big.Int
	Status              Status

	LaunchedAt  time.Time
	GraduatedAt time.Time

	LastPrice float64
	Volume    *big.Int
	Trades    uint64
}

// clone returns a deep copy so stored positions are never mutated in place.
func (p Position) clone() Position {
	out := p
	out.Info.Cores = append([]uint8(nil), p.Info.Cores...)
	out.VirtualAsset = types.Copy(p.VirtualAsset)
	out.AssetRaised = types.Copy(p.AssetRaised)
	out.TokenReserve = types.Copy(p.TokenReserve)
	out.PurchaseCap = types.Copy(p.PurchaseCap)
	out.GraduationThreshold = types.Copy(p.GraduationThreshold)
	out.Volume = types.Copy(p.Volume)
	return out
}

// AssetReserve is the asset side the curve prices against: virtual plus raised.
func (p Position) AssetReserve() *big.Int {
	return new(big.Int).Add(p.VirtualAsset, p.AssetRaised)
}

// Price returns asset per token at the current curve reserves.
func (p Position) Price() float64 {
	if p.TokenReserve.Sign() == 0 {
		return 0
	}
	price, _ := new(big.Rat).SetFrac(p.AssetReserve(), p.TokenReserve).Float64()
	return price
}

// ProgressBps returns raised asset as a share of the threshold, capped at 10000.
func (p Position) ProgressBps() uint32 {
	if p.GraduationThreshold.Sign() == 0 {
		return types.BasisPoints
	}
	bps := new(big.Int).Mul(p.AssetRaised, big.NewInt(types.BasisPoints))
	bps.Quo(bps, p.GraduationThreshold)
	if bps.Cmp(big.NewInt(types.BasisPoints)) > 0 {
		return types.BasisPoints
	}
	return uint32(bps.Uint64())
}
