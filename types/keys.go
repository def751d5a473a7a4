package types

import (
	"bytes"

	"github.com/tendermint/tendermint/crypto"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// PoolID identifies one trading pool (a base/quote pair).
type PoolID string

// OrderID is the content hash of an order's canonical serialization.
type OrderID = tmbytes.HexBytes

type Address crypto.Address

func GetAddress(key crypto.PubKey) Address {
	return Address(key.Address())
}

func (addr Address) Equal(other Address) bool {
	if addr == nil || other == nil {
		return false
	}
	return bytes.Equal(crypto.Address(addr), crypto.Address(other))
}

func (addr Address) String() string {
	return crypto.Address(addr).String()
}
