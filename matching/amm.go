package matching

import (
	"math/big"

	"auctionbft/types"
)

// AmmSnapshot is a constant-product curve position: reserveBase*reserveQuote
// stays invariant across fills. The matcher works on its own copy, so a
// snapshot doubles as the AMM price cursor during a solve.
type AmmSnapshot struct {
	reserveBase  uint64
	reserveQuote uint64
}

func NewAmmSnapshot(reserveBase, reserveQuote uint64) *AmmSnapshot {
	return &AmmSnapshot{reserveBase: reserveBase, reserveQuote: reserveQuote}
}

func (a *AmmSnapshot) Copy() *AmmSnapshot {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

func (a *AmmSnapshot) Reserves() (base, quote uint64) {
	return a.reserveBase, a.reserveQuote
}

// Price returns the curve's spot price in quote per base, scaled by
// types.PricePrecision.
func (a *AmmSnapshot) Price() uint64 {
	if a.reserveBase == 0 {
		return 0
	}
	p := new(big.Int).SetUint64(a.reserveQuote)
	p.Mul(p, precision())
	p.Div(p, new(big.Int).SetUint64(a.reserveBase))
	return p.Uint64()
}

// QuantityToPrice returns how much base the curve can trade before its spot
// price reaches target. With asBid the curve buys base and its price falls
// toward target; otherwise it sells base and its price rises toward target.
// Returns zero when the spot price is already at or past target.
func (a *AmmSnapshot) QuantityToPrice(target uint64, asBid bool) uint64 {
	if target == 0 || a.reserveBase == 0 {
		return 0
	}
	// at price p the base reserve is sqrt(k/p)
	k := new(big.Int).Mul(
		new(big.Int).SetUint64(a.reserveBase),
		new(big.Int).SetUint64(a.reserveQuote),
	)
	k.Mul(k, precision())
	k.Div(k, new(big.Int).SetUint64(target))
	targetBase := k.Sqrt(k).Uint64()

	if asBid {
		if targetBase <= a.reserveBase {
			return 0
		}
		return targetBase - a.reserveBase
	}
	if targetBase >= a.reserveBase {
		return 0
	}
	return a.reserveBase - targetBase
}

// Fill trades quantity base units against the curve and moves the reserves.
// Returns the base and quote deltas of the trade.
func (a *AmmSnapshot) Fill(quantity uint64, asBid bool) (dBase, dQuote uint64) {
	if quantity == 0 || a.reserveBase == 0 {
		return 0, 0
	}
	k := new(big.Int).Mul(
		new(big.Int).SetUint64(a.reserveBase),
		new(big.Int).SetUint64(a.reserveQuote),
	)
	var newBase uint64
	if asBid {
		newBase = a.reserveBase + quantity
	} else {
		if quantity >= a.reserveBase {
			quantity = a.reserveBase - 1
		}
		newBase = a.reserveBase - quantity
	}
	newQuote := new(big.Int).Div(k, new(big.Int).SetUint64(newBase)).Uint64()

	if newQuote > a.reserveQuote {
		dQuote = newQuote - a.reserveQuote
	} else {
		dQuote = a.reserveQuote - newQuote
	}
	a.reserveBase = newBase
	a.reserveQuote = newQuote
	return quantity, dQuote
}

func precision() *big.Int {
	return new(big.Int).SetUint64(types.PricePrecision)
}
