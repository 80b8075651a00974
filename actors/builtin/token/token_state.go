package token

import (
	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	big "github.com/filecoin-project/go-state-types/big"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
)

type State struct {
	// Receiver of the entire supply at construction.
	Issuer      addr.Address
	TotalSupply abi.TokenAmount
	// BalanceTable (HAMT[address]TokenAmount); sums to TotalSupply.
	Balances cid.Cid
}

func ConstructState(store adt.Store, issuer addr.Address, supply abi.TokenAmount) (*State, error) {
	emptyBalances, err := adt.StoreEmptyMap(store, adt.BalanceTableBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty balance table: %w", err)
	}
	balances, err := adt.AsBalanceTable(store, emptyBalances)
	if err != nil {
		return nil, err
	}
	if err := balances.Add(issuer, supply); err != nil {
		return nil, xerrors.Errorf("failed to credit supply to %v: %w", issuer, err)
	}
	root, err := balances.Root()
	if err != nil {
		return nil, xerrors.Errorf("failed to flush balance table: %w", err)
	}
	return &State{
		Issuer:      issuer,
		TotalSupply: supply,
		Balances:    root,
	}, nil
}

func (st *State) BalanceOf(store adt.Store, holder addr.Address) (abi.TokenAmount, error) {
	balances, err := adt.AsBalanceTable(store, st.Balances)
	if err != nil {
		return big.Zero(), xerrors.Errorf("failed to load balance table: %w", err)
	}
	return balances.Get(holder)
}

// Transfer moves amount from one holder to another.
// An amount exceeding the sender's balance yields an error carrying exitcode.ErrInsufficientFunds.
func (st *State) Transfer(store adt.Store, from, to addr.Address, amount abi.TokenAmount) error {
	if amount.Sign() < 0 {
		return exitcode.ErrIllegalArgument.Wrapf("negative transfer amount %v", amount)
	}
	if amount.IsZero() || from == to {
		// Nothing moves, but the sender must still cover the amount.
		bal, err := st.BalanceOf(store, from)
		if err != nil {
			return err
		}
		if bal.LessThan(amount) {
			return exitcode.ErrInsufficientFunds.Wrapf("balance %v of %v below transfer amount %v", bal, from, amount)
		}
		return nil
	}
	balances, err := adt.AsBalanceTable(store, st.Balances)
	if err != nil {
		return xerrors.Errorf("failed to load balance table: %w", err)
	}
	if err := balances.MustSubtract(from, amount); err != nil {
		return xerrors.Errorf("failed to debit %v: %w", from, err)
	}
	if err := balances.Add(to, amount); err != nil {
		return xerrors.Errorf("failed to credit %v: %w", to, err)
	}
	if st.Balances, err = balances.Root(); err != nil {
		return xerrors.Errorf("failed to flush balance table: %w", err)
	}
	return nil
}
