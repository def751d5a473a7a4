package privval

import (
	"fmt"
	"io/ioutil"

	"github.com/tendermint/tendermint/crypto"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/libs/tempfile"

	"auctionbft/crypto/bls"
	"auctionbft/types"
)

//-------------------------------------------------------------------------------

// FilePVKey stores the immutable part of PrivValidator.
type FilePVKey struct {
	Address types.Address  `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	PrivKey crypto.PrivKey `json:"priv_key"`

	filePath string
}

// Save persists the FilePVKey to its filePath.
func (pvKey FilePVKey) Save() {
	outFile := pvKey.filePath
	if outFile == "" {
		panic("cannot save PrivValidator key: filePath not set")
	}

	jsonBytes, err := tmjson.MarshalIndent(pvKey, "", "  ")
	if err != nil {
		panic(err)
	}
	err = tempfile.WriteFileAtomic(outFile, jsonBytes, 0600)
	if err != nil {
		panic(err)
	}
}

//-------------------------------------------------------------------------------

// FilePV implements PrivValidator using a key persisted to disk.
// NOTE: the directory containing pv.Key.filePath must already exist.
type FilePV struct {
	Key FilePVKey
}

// NewFilePV generates a new validator from the given key and path.
func NewFilePV(privKey crypto.PrivKey, keyFilePath string) *FilePV {
	return &FilePV{
		Key: FilePVKey{
			Address:  types.Address(privKey.PubKey().Address()),
			PubKey:   privKey.PubKey(),
			PrivKey:  privKey,
			filePath: keyFilePath,
		},
	}
}

// GenFilePV generates a new validator with a randomly generated private key
// and sets the filePath, but does not call Save().
func GenFilePV(keyFilePath string) *FilePV {
	return NewFilePV(bls.GenPrivKey(), keyFilePath)
}

// GenFilePVWithSeed generates a validator deterministically from the seed.
// Meant for tests and local clusters.
func GenFilePVWithSeed(keyFilePath string, seed int64) *FilePV {
	return NewFilePV(bls.GenPrivKeyWithSeed(seed), keyFilePath)
}

// LoadFilePV loads a FilePV from the keyFilePath. If the file path does not
// exist, the program exits.
func LoadFilePV(keyFilePath string) *FilePV {
	keyJSONBytes, err := ioutil.ReadFile(keyFilePath)
	if err != nil {
		tmos.Exit(err.Error())
	}
	pvKey := FilePVKey{}
	err = tmjson.Unmarshal(keyJSONBytes, &pvKey)
	if err != nil {
		tmos.Exit(fmt.Sprintf("Error reading PrivValidator key from %v: %v\n", keyFilePath, err))
	}

	// overwrite pubkey and address for convenience
	pvKey.PubKey = pvKey.PrivKey.PubKey()
	pvKey.Address = types.Address(pvKey.PubKey.Address())
	pvKey.filePath = keyFilePath

	return &FilePV{
		Key: pvKey,
	}
}

// LoadOrGenFilePV loads a FilePV from the given filePath
// or else generates a new one and saves it there.
func LoadOrGenFilePV(keyFilePath string) *FilePV {
	var pv *FilePV
	if tmos.FileExists(keyFilePath) {
		pv = LoadFilePV(keyFilePath)
	} else {
		pv = GenFilePV(keyFilePath)
		pv.Save()
	}
	return pv
}

// GetAddress returns the address of the validator.
func (pv *FilePV) GetAddress() types.Address {
	return pv.Key.Address
}

// GetPubKey returns the public key of the validator.
// Implements PrivValidator.
func (pv *FilePV) GetPubKey() (crypto.PubKey, error) {
	return pv.Key.PubKey, nil
}

// SignPreProposal signs a canonical representation of the pre-proposal, along
// with the chainID. Implements PrivValidator.
func (pv *FilePV) SignPreProposal(chainID string, pre *types.PreProposal) error {
	sig, err := pv.Key.PrivKey.Sign(pre.SignBytes(chainID))
	if err != nil {
		return fmt.Errorf("error signing pre-proposal: %v", err)
	}
	pre.Signature = sig
	return nil
}

// SignAggregation signs a canonical representation of the pre-proposal
// aggregation, along with the chainID. Implements PrivValidator.
func (pv *FilePV) SignAggregation(chainID string, agg *types.PreProposalAggregation) error {
	sig, err := pv.Key.PrivKey.Sign(agg.SignBytes(chainID))
	if err != nil {
		return fmt.Errorf("error signing aggregation: %v", err)
	}
	agg.Signature = sig
	return nil
}

// SignProposal signs a canonical representation of the proposal, along with
// the chainID. Implements PrivValidator.
func (pv *FilePV) SignProposal(chainID string, proposal *types.Proposal) error {
	sig, err := pv.Key.PrivKey.Sign(proposal.SignBytes(chainID))
	if err != nil {
		return fmt.Errorf("error signing proposal: %v", err)
	}
	proposal.Signature = sig
	return nil
}

// SignCommit signs a canonical representation of the commit vote, along with
// the chainID. Implements PrivValidator.
func (pv *FilePV) SignCommit(chainID string, commit *types.CommitVote) error {
	sig, err := pv.Key.PrivKey.Sign(commit.SignBytes(chainID))
	if err != nil {
		return fmt.Errorf("error signing commit vote: %v", err)
	}
	commit.Signature = sig
	return nil
}

// Save persists the FilePV to disk.
func (pv *FilePV) Save() {
	pv.Key.Save()
}

// String returns a string representation of the FilePV.
func (pv *FilePV) String() string {
	return fmt.Sprintf("PrivValidator{%v}", pv.GetAddress())
}
