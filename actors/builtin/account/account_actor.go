package account

import (
	addr "github.com/filecoin-project/go-address"
	cid "github.com/ipfs/go-cid"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/runtime"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
)

// An account actor is the on-chain identity of a key holder. Token holders and vesting administrators are accounts.
type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
		2:                         a.PubkeyAddress,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.AccountActorCodeID
}

func (a Actor) IsSingleton() bool {
	return false
}

func (a Actor) State() runtime.CBORer {
	return new(State)
}

var _ runtime.VMActor = Actor{}

type State struct {
	Address addr.Address
}

func (a Actor) Constructor(rt runtime.Runtime, address *addr.Address) *adt.EmptyValue {
	// Account actors are created implicitly by the system when a key address is first registered.
	rt.ValidateImmediateCallerIs(builtin.SystemActorAddr)
	switch address.Protocol() {
	case addr.SECP256K1, addr.BLS:
		break // ok
	default:
		builtin.RequireParam(rt, false, "address must use BLS or SECP protocol, got %v", address.Protocol())
	}
	rt.State().Create(&State{Address: *address})
	return nil
}

// Fetches the pubkey-type address from this actor.
func (a Actor) PubkeyAddress(rt runtime.Runtime, _ *adt.EmptyValue) *addr.Address {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.State().Readonly(&st)
	return &st.Address
}
