package types

import (
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/tendermint/tendermint/crypto"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmos "github.com/tendermint/tendermint/libs/os"
)

// GenesisValidator is one validator identity in the genesis file.
type GenesisValidator struct {
	Address        crypto.Address `json:"address"`
	PubKey         crypto.PubKey  `json:"pub_key"`
	LeaderEligible bool           `json:"leader_eligible"`
	Name           string         `json:"name"`
}

// GenesisPool declares one trading pool and the AMM reserves it starts with.
type GenesisPool struct {
	ID           PoolID `json:"id"`
	ReserveBase  uint64 `json:"reserve_base"`
	ReserveQuote uint64 `json:"reserve_quote"`
}

// GenesisDoc defines the initial conditions of an auction chain: its
// validator set and the pools rounds clear over.
type GenesisDoc struct {
	ChainID       string             `json:"chain_id"`
	GenesisTime   time.Time          `json:"genesis_time"`
	InitialHeight uint64             `json:"initial_height"`
	Validators    []GenesisValidator `json:"validators"`
	Pools         []GenesisPool      `json:"pools"`
}

func (genDoc *GenesisDoc) ValidateAndComplete() error {
	if genDoc.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}
	if len(genDoc.Validators) == 0 {
		return errors.New("genesis doc must include at least one validator")
	}
	for i, v := range genDoc.Validators {
		if v.PubKey == nil {
			return fmt.Errorf("genesis validator #%d without pub_key", i)
		}
		if len(v.Address) == 0 {
			genDoc.Validators[i].Address = v.PubKey.Address()
		}
	}
	anyEligible := false
	for _, v := range genDoc.Validators {
		anyEligible = anyEligible || v.LeaderEligible
	}
	if !anyEligible {
		for i := range genDoc.Validators {
			genDoc.Validators[i].LeaderEligible = true
		}
	}
	for i, p := range genDoc.Pools {
		if p.ID == "" {
			return fmt.Errorf("genesis pool #%d without id", i)
		}
	}
	if genDoc.GenesisTime.IsZero() {
		genDoc.GenesisTime = time.Now()
	}
	return nil
}

// ValidatorSet builds the working validator set from the genesis validators.
func (genDoc *GenesisDoc) ValidatorSet() *ValidatorSet {
	vals := make([]*Validator, 0, len(genDoc.Validators))
	for _, v := range genDoc.Validators {
		val := NewValidator(v.PubKey)
		val.LeaderEligible = v.LeaderEligible
		vals = append(vals, val)
	}
	return NewValidatorSet(vals)
}

// SaveAs writes the genesis doc atomically to file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := tmjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return tmos.WriteFile(file, genDocBytes, 0644)
}

func GenesisDocFromJSON(jsonBlob []byte) (*GenesisDoc, error) {
	genDoc := GenesisDoc{}
	err := tmjson.Unmarshal(jsonBlob, &genDoc)
	if err != nil {
		return nil, err
	}
	if err := genDoc.ValidateAndComplete(); err != nil {
		return nil, err
	}
	return &genDoc, nil
}

func GenesisDocFromFile(genDocFile string) (*GenesisDoc, error) {
	jsonBlob, err := ioutil.ReadFile(genDocFile)
	if err != nil {
		return nil, fmt.Errorf("couldn't read GenesisDoc file: %w", err)
	}
	genDoc, err := GenesisDocFromJSON(jsonBlob)
	if err != nil {
		return nil, fmt.Errorf("error reading GenesisDoc at %v: %w", genDocFile, err)
	}
	return genDoc, nil
}
