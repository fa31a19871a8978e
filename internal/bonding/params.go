package bonding

import (
	"math/big"

	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// Params are the platform wide launch parameters.
type Params struct {
	// LaunchFee is charged from every purchase amount at launch.
	LaunchFee *big.Int
	// InitialSupply is minted to the controller for each launched token.
	InitialSupply *big.Int
	// AssetRate sets the virtual asset reserve to InitialSupply / AssetRate.
	AssetRate uint64
	// MaxTxPercent caps a single curve purchase at this share of the supply.
	MaxTxPercent uint32
	// GraduationThreshold is the raised asset at which a token graduates.
	GraduationThreshold *big.Int
	// TokenTaxBps is the transfer tax of launched tokens.
	TokenTaxBps uint32
}

// Validate checks the parameters are usable.
func (p Params) Validate() error {
	const op = "bonding.params"
	switch {
	case p.LaunchFee == nil || p.LaunchFee.Sign() < 0:
		return apperr.InvalidAmount(op, "launch fee must be non-negative")
	case p.InitialSupply == nil || p.InitialSupply.Sign() <= 0:
		return apperr.InvalidAmount(op, "initial supply must be positive")
	case p.AssetRate == 0:
		return apperr.InvalidAmount(op, "asset rate must be positive")
	case p.MaxTxPercent == 0 || p.MaxTxPercent > 100:
		return apperr.InvalidAmount(op, "max tx percent %d outside 1..100", p.MaxTxPercent)
	case p.GraduationThreshold == nil || p.GraduationThreshold.Sign() <= 0:
		return apperr.InvalidAmount(op, "graduation threshold must be positive")
	case p.TokenTaxBps > types.BasisPoints:
		return apperr.InvalidAmount(op, "token tax %d bps too high", p.TokenTaxBps)
	}
	if p.VirtualAsset().Sign() == 0 {
		return apperr.InvalidAmount(op, "asset rate %d leaves no virtual reserve", p.AssetRate)
	}
	return nil
}

// VirtualAsset returns the asset reserve a fresh curve starts with.
func (p Params) VirtualAsset() *big.Int {
	return new(big.Int).Quo(p.InitialSupply, new(big.Int).SetUint64(p.AssetRate))
}

// PurchaseCap returns the largest token amount one purchase may take.
func (p Params) PurchaseCap() *big.Int {
	limit := new(big.Int).Mul(p.InitialSupply, big.NewInt(int64(p.MaxTxPercent)))
	return limit.Quo(limit, big.NewInt(100))
}

func (p Params) clone() Params {
	out := p
	out.LaunchFee = types.Copy(p.LaunchFee)
	out.InitialSupply = types.Copy(p.InitialSupply)
	out.GraduationThreshold = types.Copy(p.GraduationThreshold)
	return out
}
