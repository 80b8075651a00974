package vesting

import (
	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	big "github.com/filecoin-project/go-state-types/big"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
)

// Bitwidth of the AMT holding each holder's grants. Holders are expected to have few grants.
const GrantsAmtBitwidth = 3

type State struct {
	// Principal allowed to create and revoke grants. Always an ID address.
	Admin addr.Address
	// Principal proposed to take over administration, nil when no handover is pending.
	PendingAdmin *addr.Address
	// Token actor holding the tokens backing every grant.
	Token addr.Address
	// Sum of (Value - Transferred) over every live grant.
	TotalVesting abi.TokenAmount
	// HAMT[holder]AMT[Grant], in order of creation per holder.
	Grants cid.Cid
}

// A Grant releases Value tokens to its holder linearly over [Start, End],
// with nothing vested before Cliff.
type Grant struct {
	Value       abi.TokenAmount
	Start       abi.ChainEpoch
	Cliff       abi.ChainEpoch
	End         abi.ChainEpoch
	Transferred abi.TokenAmount
	Revokable   bool
}

// Remaining returns the portion of the grant not yet transferred to the holder.
func (g *Grant) Remaining() abi.TokenAmount {
	return big.Sub(g.Value, g.Transferred)
}

func ConstructState(store adt.Store, admin, token addr.Address) (*State, error) {
	emptyGrants, err := adt.StoreEmptyMultimap(store, builtin.DefaultHamtBitwidth, GrantsAmtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty grant store: %w", err)
	}
	return &State{
		Admin:        admin,
		PendingAdmin: nil,
		Token:        token,
		TotalVesting: big.Zero(),
		Grants:       emptyGrants,
	}, nil
}

func (st *State) LoadGrants(store adt.Store) (*GrantStore, error) {
	return LoadGrantStore(store, st.Grants)
}

// GrantStore maps each holder to the ordered sequence of grants made to them.
// A holder with no grants is absent.
type GrantStore struct {
	grants *adt.Multimap
}

func LoadGrantStore(store adt.Store, root cid.Cid) (*GrantStore, error) {
	mm, err := adt.AsMultimap(store, root, builtin.DefaultHamtBitwidth, GrantsAmtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to load grants %v: %w", root, err)
	}
	return &GrantStore{mm}, nil
}

func (gs *GrantStore) Root() (cid.Cid, error) {
	return gs.grants.Root()
}

// Append adds a grant at the end of the holder's sequence.
func (gs *GrantStore) Append(holder addr.Address, g *Grant) error {
	if err := gs.grants.Add(abi.AddrKey(holder), g); err != nil {
		return xerrors.Errorf("failed to append grant for %v: %w", holder, err)
	}
	return nil
}

// Load returns the holder's grants in sequence order. A holder with no grants yields an empty slice.
func (gs *GrantStore) Load(holder addr.Address) ([]Grant, error) {
	var out []Grant
	var g Grant
	err := gs.grants.ForEach(abi.AddrKey(holder), &g, func(_ int64) error {
		out = append(out, g)
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to load grants for %v: %w", holder, err)
	}
	return out, nil
}

// Count returns the number of grants held by holder.
func (gs *GrantStore) Count(holder addr.Address) (uint64, error) {
	arr, found, err := gs.grants.Get(abi.AddrKey(holder))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return arr.Length(), nil
}

// RemoveAt deletes the grant at index, shifting later grants down by one.
// An index past the end of the sequence is ignored.
func (gs *GrantStore) RemoveAt(holder addr.Address, index uint64) error {
	arr, found, err := gs.grants.Get(abi.AddrKey(holder))
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	length := arr.Length()
	if index >= length {
		return nil
	}

	var next Grant
	for i := index; i+1 < length; i++ {
		if found, err := arr.Get(i+1, &next); err != nil {
			return xerrors.Errorf("failed to load grant %d for %v: %w", i+1, holder, err)
		} else if !found {
			return xerrors.Errorf("grants for %v not contiguous at %d", holder, i+1)
		}
		if err := arr.Set(i, &next); err != nil {
			return xerrors.Errorf("failed to shift grant %d for %v: %w", i+1, holder, err)
		}
	}
	if err := arr.Delete(length - 1); err != nil {
		return xerrors.Errorf("failed to truncate grants for %v: %w", holder, err)
	}
	return gs.grants.Put(abi.AddrKey(holder), arr)
}

// SetTransferred records the cumulative amount transferred out of a grant.
// The amount may not decrease, nor exceed the grant's value.
func (gs *GrantStore) SetTransferred(holder addr.Address, index uint64, amount abi.TokenAmount) error {
	arr, found, err := gs.grants.Get(abi.AddrKey(holder))
	if err != nil {
		return err
	}
	if !found {
		return xerrors.Errorf("no grants for %v", holder)
	}
	var g Grant
	if found, err := arr.Get(index, &g); err != nil {
		return xerrors.Errorf("failed to load grant %d for %v: %w", index, holder, err)
	} else if !found {
		return xerrors.Errorf("no grant %d for %v", index, holder)
	}
	if amount.LessThan(g.Transferred) {
		return xerrors.Errorf("transferred amount of grant %d for %v may not decrease from %v to %v", index, holder, g.Transferred, amount)
	}
	if amount.GreaterThan(g.Value) {
		return xerrors.Errorf("transferred amount %v of grant %d for %v exceeds value %v", amount, index, holder, g.Value)
	}
	g.Transferred = amount
	if err := arr.Set(index, &g); err != nil {
		return xerrors.Errorf("failed to store grant %d for %v: %w", index, holder, err)
	}
	return gs.grants.Put(abi.AddrKey(holder), arr)
}

// ForEach visits every holder with their grants. Holder order is unspecified.
func (gs *GrantStore) ForEach(fn func(holder addr.Address, grants []Grant) error) error {
	return gs.grants.ForAll(func(k string, arr *adt.Array) error {
		holder, err := addr.NewFromBytes([]byte(k))
		if err != nil {
			return xerrors.Errorf("invalid holder key %x: %w", k, err)
		}
		var grants []Grant
		var g Grant
		if err := arr.ForEach(&g, func(_ int64) error {
			grants = append(grants, g)
			return nil
		}); err != nil {
			return err
		}
		return fn(holder, grants)
	})
}
