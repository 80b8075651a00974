package states

import (
	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/account"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/builtin/vesting"
)

// Within this code, Go errors are not expected, but are often converted to messages so that execution
// can continue to find more errors rather than fail with no insight.
// Only errors thar are particularly troublesome to recover from should propagate as Go errors.
func CheckStateInvariants(tree *Tree) (*builtin.MessageAccumulator, error) {
	acc := &builtin.MessageAccumulator{}
	accountSummaries := make(map[addr.Address]*account.StateSummary)
	tokenSummaries := make(map[addr.Address]*token.StateSummary)
	vestingStates := make(map[addr.Address]*vesting.State)
	emptyObject, err := EmptyObject(tree.Store)
	if err != nil {
		return nil, err
	}

	if err := tree.ForEach(func(key addr.Address, actor *Actor) error {
		acc := acc.WithPrefix("%v ", key) // Intentional shadow
		if key.Protocol() != addr.ID {
			acc.Addf("unexpected address protocol in state tree root: %v", key)
		}
		if !actor.Head.Defined() || actor.Head.Equals(emptyObject) {
			acc.Addf("actor %s was never constructed", builtin.ActorNameByCode(actor.Code))
			return nil
		}

		switch {
		case actor.Code.Equals(builtin.AccountActorCodeID):
			var st account.State
			if err := tree.Store.Get(tree.Store.Context(), actor.Head, &st); err != nil {
				return err
			}
			summary, msgs := account.CheckStateInvariants(&st, key)
			acc.WithPrefix("account: ").AddAll(msgs)
			accountSummaries[key] = summary

		case actor.Code.Equals(builtin.TokenActorCodeID):
			var st token.State
			if err := tree.Store.Get(tree.Store.Context(), actor.Head, &st); err != nil {
				return err
			}
			summary, msgs, err := token.CheckStateInvariants(&st, tree.Store)
			if err != nil {
				return err
			}
			acc.WithPrefix("token: ").AddAll(msgs)
			tokenSummaries[key] = summary

		case actor.Code.Equals(builtin.VestingActorCodeID):
			var st vesting.State
			if err := tree.Store.Get(tree.Store.Context(), actor.Head, &st); err != nil {
				return err
			}
			vestingStates[key] = &st

		default:
			acc.Addf("unexpected actor code CID %v", actor.Code)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	// Vesting pools are checked once every token balance is known.
	for vestingAddr, st := range vestingStates { //nolint:nomaprange
		acc := acc.WithPrefix("%v vesting: ", vestingAddr)
		tokenSummary, ok := tokenSummaries[st.Token]
		if !ok {
			acc.Addf("token %v is not a token actor", st.Token)
			continue
		}
		if _, ok := accountSummaries[st.Admin]; !ok {
			acc.Addf("admin %v is not an account", st.Admin)
		}
		pool, ok := tokenSummary.Balances[vestingAddr]
		if !ok {
			pool = abi.NewTokenAmount(0)
		}
		_, msgs, err := vesting.CheckStateInvariants(st, tree.Store, pool)
		if err != nil {
			return nil, xerrors.Errorf("failed to check vesting actor %v: %w", vestingAddr, err)
		}
		acc.AddAll(msgs)
	}

	for tokenAddr, summary := range tokenSummaries { //nolint:nomaprange
		for holder := range summary.Balances { //nolint:nomaprange
			if _, found, err := tree.GetActor(holder); err != nil {
				return nil, err
			} else if !found {
				acc.Addf("%v token: holder %v is not in the state tree", tokenAddr, holder)
			}
		}
	}

	return acc, nil
}
