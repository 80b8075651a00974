package token

import (
	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	big "github.com/filecoin-project/go-state-types/big"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/runtime"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
	"github.com/filecoin-project/vesting-actors/actors/util/math"
)

// The token actor is a fixed-supply fungible token ledger.
type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
		2:                         a.Transfer,
		3:                         a.BalanceOf,
		4:                         a.TotalSupply,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.TokenActorCodeID
}

func (a Actor) IsSingleton() bool {
	return false
}

func (a Actor) State() runtime.CBORer {
	return new(State)
}

var _ runtime.VMActor = Actor{}

type ConstructorParams struct {
	Issuer addr.Address
	Supply abi.TokenAmount
}

func (a Actor) Constructor(rt runtime.Runtime, params *ConstructorParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.InitActorAddr)

	issuer := builtin.ResolveToIDAddr(rt, params.Issuer)
	builtin.RequireParam(rt, params.Supply.Sign() >= 0, "negative supply %v", params.Supply)
	builtin.RequireParam(rt, math.InDomain(params.Supply), "supply %v exceeds maximum token amount", params.Supply)

	st, err := ConstructState(adt.AsStore(rt), issuer, params.Supply)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to construct state")
	rt.State().Create(st)
	return nil
}

type TransferParams struct {
	To     addr.Address
	Amount abi.TokenAmount
}

// Transfer moves tokens from the caller to the recipient.
// A zero amount succeeds without effect.
func (a Actor) Transfer(rt runtime.Runtime, params *TransferParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	from := rt.Message().Caller()
	to := builtin.ResolveToIDAddr(rt, params.To)
	builtin.RequireParam(rt, params.Amount.Sign() >= 0, "negative transfer amount %v", params.Amount)

	var st State
	rt.State().Transaction(&st, func() {
		err := st.Transfer(adt.AsStore(rt), from, to, params.Amount)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to transfer %v from %v to %v", params.Amount, from, to)
	})
	rt.Log(builtin.GetActorLogLevel(a, rtt.DEBUG), "transferred %v from %v to %v", params.Amount, from, to)
	return nil
}

func (a Actor) BalanceOf(rt runtime.Runtime, holder *addr.Address) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()

	balance := big.Zero()
	resolved, ok := rt.ResolveAddress(*holder)
	if !ok {
		// An address unknown to the state tree cannot hold tokens.
		return &balance
	}

	var st State
	rt.State().Readonly(&st)
	balance, err := st.BalanceOf(adt.AsStore(rt), resolved)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load balance of %v", resolved)
	return &balance
}

func (a Actor) TotalSupply(rt runtime.Runtime, _ *adt.EmptyValue) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()

	var st State
	rt.State().Readonly(&st)
	return &st.TotalSupply
}
