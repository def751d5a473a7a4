package bls

import (
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/tendermint/tendermint/crypto"
	"github.com/tendermint/tendermint/crypto/tmhash"
	tmjson "github.com/tendermint/tendermint/libs/json"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	sign "go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
)

const (
	PrivKeyName = "auction/PrivKeyBLS"
	PubKeyName  = "auction/PubKeyBLS"

	KeyType = "bls.bn256"
)

var suite = bn256.NewSuite()

func init() {
	tmjson.RegisterType(PubKey{}, PubKeyName)
	tmjson.RegisterType(PrivKey{}, PrivKeyName)
}

//-------------------------------------

var _ crypto.PrivKey = PrivKey{}

// PrivKey is a BLS private key: a scalar on the bn256 G2 group, stored
// marshaled.
type PrivKey []byte

func (privKey PrivKey) Bytes() []byte {
	return []byte(privKey)
}

func (privKey PrivKey) scalar() kyber.Scalar {
	s := suite.G2().Scalar()
	if err := s.UnmarshalBinary(privKey); err != nil {
		panic(fmt.Sprintf("invalid bls private key: %v", err))
	}
	return s
}

// Sign produces a BLS signature on msg. BLS signing is deterministic for a
// fixed key and message.
func (privKey PrivKey) Sign(msg []byte) ([]byte, error) {
	return sign.Sign(suite, privKey.scalar(), msg)
}

func (privKey PrivKey) PubKey() crypto.PubKey {
	point := suite.G2().Point().Mul(privKey.scalar(), nil)
	bz, err := point.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return PubKey(bz)
}

func (privKey PrivKey) Equals(other crypto.PrivKey) bool {
	if otherBLS, ok := other.(PrivKey); ok {
		return bytes.Equal(privKey, otherBLS)
	}
	return false
}

func (privKey PrivKey) Type() string {
	return KeyType
}

// GenPrivKey generates a new BLS private key from crypto/rand.
func GenPrivKey() PrivKey {
	return genPrivKey(random.New())
}

// GenPrivKeyWithSeed deterministically derives a private key from the seed.
// Used to build reproducible test clusters.
func GenPrivKeyWithSeed(seed int64) PrivKey {
	var seedBytes [8]byte
	binary.BigEndian.PutUint64(seedBytes[:], uint64(seed))
	return genPrivKey(blake2xb.New(seedBytes[:]))
}

func genPrivKey(stream cipher.Stream) PrivKey {
	scalar, _ := sign.NewKeyPair(suite, stream)
	bz, err := scalar.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return PrivKey(bz)
}

//-------------------------------------

var _ crypto.PubKey = PubKey{}

// PubKey is a BLS public key: a point on the bn256 G2 group, stored
// marshaled.
type PubKey []byte

func (pubKey PubKey) Address() crypto.Address {
	return crypto.Address(tmhash.SumTruncated(pubKey))
}

func (pubKey PubKey) Bytes() []byte {
	return []byte(pubKey)
}

func (pubKey PubKey) point() (kyber.Point, error) {
	p := suite.G2().Point()
	if err := p.UnmarshalBinary(pubKey); err != nil {
		return nil, err
	}
	return p, nil
}

func (pubKey PubKey) VerifySignature(msg []byte, sig []byte) bool {
	point, err := pubKey.point()
	if err != nil {
		return false
	}
	return sign.Verify(suite, point, msg, sig) == nil
}

func (pubKey PubKey) Equals(other crypto.PubKey) bool {
	if otherBLS, ok := other.(PubKey); ok {
		return bytes.Equal(pubKey, otherBLS)
	}
	return false
}

func (pubKey PubKey) Type() string {
	return KeyType
}

func (pubKey PubKey) String() string {
	return fmt.Sprintf("PubKeyBLS{%X}", []byte(pubKey))
}
