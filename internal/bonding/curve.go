package bonding

import (
	"math/big"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/dex/amm"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/token"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// Quote returns the output of a curve trade at current reserves, tax included.
func (c *Controller) Quote(tokenAddr types.Address, amountIn *big.Int, isBuy bool) (*big.Int, error) {
	const op = "bonding.quote"
	pos, err := c.bondingPosition(op, tokenAddr)
	if err != nil {
		return nil, err
	}
	cfg := c.registry.TaxConfig()
	if isBuy {
		net := new(big.Int).Sub(amountIn, types.ApplyBps(amountIn, cfg.BuyTaxBps))
		return amm.AmountOut(net, pos.AssetReserve(), pos.TokenReserve, 0)
	}
	gross, err := amm.AmountOut(amountIn, pos.TokenReserve, pos.AssetReserve(), 0)
	if err != nil {
		return nil, err
	}
	return gross.Sub(gross, types.ApplyBps(gross, cfg.SellTaxBps)), nil
}

func (c *Controller) bondingPosition(op string, tokenAddr types.Address) (Position, error) {
	pos, ok := c.positions.Get(tokenAddr)
	if !ok {
		return Position{}, apperr.NotFound(op, "token %s was not launched here", tokenAddr)
	}
	if pos.Status != StatusBonding {
		return Position{}, apperr.InvalidState(op, "token %s is %s", tokenAddr, pos.Status)
	}
	return pos.clone(), nil
}

// buyCore pulls assetIn from payer and sends the curve output to recipient.
func (c *Controller) buyCore(tx *ledger.Tx, op string, payer, recipient, tokenAddr types.Address, assetIn, minOut *big.Int) (*big.Int, error) {
	pos, err := c.bondingPosition(op, tokenAddr)
	if err != nil {
		return nil, err
	}
	if assetIn == nil || assetIn.Sign() <= 0 {
		return nil, apperr.InvalidAmount(op, "asset in must be positive")
	}
	tok, asset, err := c.legs(tokenAddr)
	if err != nil {
		return nil, err
	}

	cfg := c.registry.TaxConfig()
	tax := types.ApplyBps(assetIn, cfg.BuyTaxBps)
	if tax.Sign() > 0 {
		if err := asset.TransferFrom(tx, c.address, payer, cfg.Treasury, tax); err != nil {
			return nil, err
		}
	}
	before := asset.BalanceOf(c.address)
	if err := asset.TransferFrom(tx, c.address, payer, c.address, new(big.Int).Sub(assetIn, tax)); err != nil {
		return nil, err
	}
	received := new(big.Int).Sub(asset.BalanceOf(c.address), before)

	out, err := amm.AmountOut(received, pos.AssetReserve(), pos.TokenReserve, 0)
	if err != nil {
		return nil, err
	}
	switch {
	case out.Sign() == 0:
		return nil, apperr.InvalidAmount(op, "purchase of %s buys nothing", types.FormatUnits(assetIn))
	case out.Cmp(pos.PurchaseCap) > 0:
		return nil, apperr.InvalidAmount(op, "purchase of %s tokens exceeds the cap of %s",
			types.FormatUnits(out), types.FormatUnits(pos.PurchaseCap))
	case out.Cmp(pos.TokenReserve) >= 0:
		return nil, apperr.New(apperr.KindInsufficientReserve, op, "curve holds %s tokens", types.FormatUnits(pos.TokenReserve))
	case minOut != nil && out.Cmp(minOut) < 0:
		return nil, apperr.InvalidAmount(op, "output %s below minimum %s", types.FormatUnits(out), types.FormatUnits(minOut))
	}

	pos.AssetRaised.Add(pos.AssetRaised, received)
	pos.TokenReserve.Sub(pos.TokenReserve, out)
	pos.Volume.Add(pos.Volume, assetIn)
	pos.Trades++
	pos.LastPrice = pos.Price()
	c.positions.Set(tx, tokenAddr, pos)

	if err := tok.Transfer(tx, c.address, recipient, out); err != nil {
		return nil, err
	}
	c.emitTrade(tx, pos, payer, recipient, true, assetIn, out, tax)

	if pos.AssetRaised.Cmp(pos.GraduationThreshold) >= 0 {
		if err := c.graduate(tx, tokenAddr); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// sellCore pulls tokenIn from seller and pays the curve output in asset.
func (c *Controller) sellCore(tx *ledger.Tx, op string, seller, tokenAddr types.Address, tokenIn, minOut *big.Int) (*big.Int, error) {
	pos, err := c.bondingPosition(op, tokenAddr)
	if err != nil {
		return nil, err
	}
	if tokenIn == nil || tokenIn.Sign() <= 0 {
		return nil, apperr.InvalidAmount(op, "token in must be positive")
	}
	tok, asset, err := c.legs(tokenAddr)
	if err != nil {
		return nil, err
	}
	if err := tok.TransferFrom(tx, c.address, seller, c.address, tokenIn); err != nil {
		return nil, err
	}

	gross, err := amm.AmountOut(tokenIn, pos.TokenReserve, pos.AssetReserve(), 0)
	if err != nil {
		return nil, err
	}
	switch {
	case gross.Sign() == 0:
		return nil, apperr.InvalidAmount(op, "sale of %s returns nothing", types.FormatUnits(tokenIn))
	case gross.Cmp(pos.AssetRaised) > 0:
		return nil, apperr.New(apperr.KindInsufficientReserve, op,
			"sale pays %s but only %s was raised", types.FormatUnits(gross), types.FormatUnits(pos.AssetRaised))
	}
	cfg := c.registry.TaxConfig()
	tax := types.ApplyBps(gross, cfg.SellTaxBps)
	out := new(big.Int).Sub(gross, tax)
	if minOut != nil && out.Cmp(minOut) < 0 {
		return nil, apperr.InvalidAmount(op, "output %s below minimum %s", types.FormatUnits(out), types.FormatUnits(minOut))
	}

	pos.AssetRaised.Sub(pos.AssetRaised, gross)
	pos.TokenReserve.Add(pos.TokenReserve, tokenIn)
	pos.Volume.Add(pos.Volume, gross)
	pos.Trades++
	pos.LastPrice = pos.Price()
	c.positions.Set(tx, tokenAddr, pos)

	if tax.Sign() > 0 {
		if err := asset.Transfer(tx, c.address, cfg.Treasury, tax); err != nil {
			return nil, err
		}
	}
	if err := asset.Transfer(tx, c.address, seller, out); err != nil {
		return nil, err
	}
	c.emitTrade(tx, pos, seller, seller, false, tokenIn, out, tax)
	return out, nil
}

// graduate moves the curve liquidity into the registered pair. It is a no-op
// for a token that already graduated.
//
// The curve's token reserve is trimmed to T*R/(V+R) so the pair opens at the
// last curve price; the excess is burned.
func (c *Controller) graduate(tx *ledger.Tx, tokenAddr types.Address) error {
	const op = "bonding.graduate"
	pos, ok := c.positions.Get(tokenAddr)
	if !ok {
		return apperr.NotFound(op, "token %s was not launched here", tokenAddr)
	}
	if pos.Status == StatusGraduated {
		return nil
	}
	pos = pos.clone()
	tok, asset, err := c.legs(tokenAddr)
	if err != nil {
		return err
	}
	rt, err := c.routerAt(op, pos.Router)
	if err != nil {
		return err
	}

	pos.Status = StatusGraduated
	pos.GraduatedAt = tx.Time()
	c.positions.Set(tx, tokenAddr, pos)

	if err := c.registry.MarkGraduated(tx, c.address, pos.Pair); err != nil {
		return err
	}

	seedTokens := new(big.Int).Mul(pos.TokenReserve, pos.AssetRaised)
	seedTokens.Quo(seedTokens, pos.AssetReserve())
	if burn := new(big.Int).Sub(pos.TokenReserve, seedTokens); burn.Sign() > 0 {
		if err := tok.Burn(tx, c.address, burn); err != nil {
			return err
		}
	}
	if err := tok.Approve(tx, c.address, rt.Address(), seedTokens); err != nil {
		return err
	}
	if err := asset.Approve(tx, c.address, rt.Address(), pos.AssetRaised); err != nil {
		return err
	}
	if err := rt.AddInitialLiquidity(tx, c.address, tokenAddr, seedTokens, pos.AssetRaised); err != nil {
		return err
	}

	tx.Emit(&events.LaunchEvent{
		BaseEvent:    events.Base(events.CurveGraduated, tx.Time()),
		Token:        tokenAddr,
		Pair:         pos.Pair,
		Creator:      pos.Creator,
		Name:         pos.Info.Name,
		Symbol:       pos.Info.Symbol,
		AssetRaised:  types.Copy(pos.AssetRaised),
		TokenReserve: seedTokens,
	})
	c.logger.Info("Token graduated",
		zap.Uint64("tx_id", tx.ID()),
		zap.String("token", tokenAddr.String()),
		zap.String("pair", pos.Pair.String()),
		zap.String("asset_raised", types.FormatUnits(pos.AssetRaised)),
		zap.String("seed_tokens", types.FormatUnits(seedTokens)))
	return nil
}

func (c *Controller) legs(tokenAddr types.Address) (*token.Token, *token.Token, error) {
	tok, err := c.tokens.Get(tokenAddr)
	if err != nil {
		return nil, nil, err
	}
	asset, err := c.tokens.Get(c.asset)
	if err != nil {
		return nil, nil, err
	}
	return tok, asset, nil
}

func (c *Controller) emitTrade(tx *ledger.Tx, pos Position, trader, recipient types.Address, isBuy bool, in, out, tax *big.Int) {
	tx.Emit(&events.TradeEvent{
		BaseEvent: events.Base(events.CurveTraded, tx.Time()),
		Token:     pos.Token,
		Trader:    trader,
		Recipient: recipient,
		IsBuy:     isBuy,
		AmountIn:  types.Copy(in),
		AmountOut: types.Copy(out),
		Tax:       types.Copy(tax),
		Price:     pos.LastPrice,
	})
}
