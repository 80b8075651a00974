package token

import (
	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	big "github.com/filecoin-project/go-state-types/big"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
)

type StateSummary struct {
	Balances    map[addr.Address]abi.TokenAmount
	TotalSupply abi.TokenAmount
}

// Checks internal invariants of token state.
func CheckStateInvariants(st *State, store adt.Store) (*StateSummary, *builtin.MessageAccumulator, error) {
	acc := &builtin.MessageAccumulator{}

	acc.Require(st.TotalSupply.Sign() >= 0, "total supply %v is negative", st.TotalSupply)
	acc.Require(st.Issuer.Protocol() == addr.ID, "issuer %v is not an ID address", st.Issuer)

	balances, err := adt.AsMap(store, st.Balances, adt.BalanceTableBitwidth)
	if err != nil {
		return nil, acc, err
	}

	summary := &StateSummary{
		Balances:    make(map[addr.Address]abi.TokenAmount),
		TotalSupply: st.TotalSupply,
	}
	total := big.Zero()
	var balance abi.TokenAmount
	err = balances.ForEach(&balance, func(key string) error {
		holder, err := addr.NewFromBytes([]byte(key))
		if err != nil {
			return err
		}
		acc.Require(balance.Sign() > 0, "balance of %v is not positive: %v", holder, balance)
		summary.Balances[holder] = balance
		total = big.Add(total, balance)
		return nil
	})
	if err != nil {
		return nil, acc, err
	}

	acc.Require(total.Equals(st.TotalSupply), "sum of balances %v does not match total supply %v", total, st.TotalSupply)
	return summary, acc, nil
}
