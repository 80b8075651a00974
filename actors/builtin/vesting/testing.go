package vesting

import (
	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	big "github.com/filecoin-project/go-state-types/big"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
)

type StateSummary struct {
	HolderCount  int
	GrantCount   int
	TotalVesting abi.TokenAmount
}

// Checks internal invariants of vesting state.
// The pool balance is the token balance held by the vesting actor.
func CheckStateInvariants(st *State, store adt.Store, poolBalance abi.TokenAmount) (*StateSummary, *builtin.MessageAccumulator, error) {
	acc := &builtin.MessageAccumulator{}

	acc.Require(st.Admin.Protocol() == addr.ID, "admin %v is not an ID address", st.Admin)
	if st.PendingAdmin != nil {
		acc.Require(st.PendingAdmin.Protocol() == addr.ID, "pending admin %v is not an ID address", *st.PendingAdmin)
		acc.Require(*st.PendingAdmin != st.Admin, "pending admin %v is already admin", *st.PendingAdmin)
	}
	acc.Require(st.TotalVesting.Sign() >= 0, "total vesting %v is negative", st.TotalVesting)
	acc.Require(st.TotalVesting.LessThanEqual(poolBalance), "total vesting %v exceeds pool balance %v", st.TotalVesting, poolBalance)

	grants, err := st.LoadGrants(store)
	if err != nil {
		return nil, acc, err
	}

	summary := &StateSummary{TotalVesting: st.TotalVesting}
	outstanding := big.Zero()
	err = grants.ForEach(func(holder addr.Address, held []Grant) error {
		hacc := acc.WithPrefix("holder %v: ", holder)
		hacc.Require(holder.Protocol() == addr.ID, "holder is not an ID address")
		hacc.Require(len(held) > 0, "holder present with no grants")
		summary.HolderCount++
		for i, g := range held {
			hacc.Require(g.Value.Sign() > 0, "grant %d value %v not positive", i, g.Value)
			hacc.Require(g.Start >= 0, "grant %d start %d negative", i, g.Start)
			hacc.Require(g.Start <= g.Cliff && g.Cliff <= g.End, "grant %d epochs out of order: start %d cliff %d end %d", i, g.Start, g.Cliff, g.End)
			hacc.Require(g.Transferred.Sign() >= 0, "grant %d transferred %v negative", i, g.Transferred)
			hacc.Require(g.Transferred.LessThanEqual(g.Value), "grant %d transferred %v exceeds value %v", i, g.Transferred, g.Value)
			if g.Cliff < g.End {
				// The product is largest just before the end.
				_, err := VestedAmount(&held[i], g.End-1)
				hacc.RequireNoError(err, "grant %d vesting curve leaves the token domain", i)
			}
			outstanding = big.Add(outstanding, g.Remaining())
			summary.GrantCount++
		}
		return nil
	})
	if err != nil {
		return nil, acc, err
	}

	acc.Require(outstanding.Equals(st.TotalVesting), "total vesting %v does not match outstanding grants %v", st.TotalVesting, outstanding)
	return summary, acc, nil
}
