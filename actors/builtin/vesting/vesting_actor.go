package vesting

import (
	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	big "github.com/filecoin-project/go-state-types/big"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/runtime"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
	"github.com/filecoin-project/vesting-actors/actors/util/math"
)

const (
	// A quantity computation left the token domain.
	ErrArithmeticOverflow = exitcode.FirstActorSpecificExitCode + iota
	// The token actor declined a transfer out of the vesting pool.
	ErrTransferFailed
)

// Names of the events emitted on successful calls.
const (
	EventGrant  = "vesting-grant"
	EventUnlock = "vesting-unlock"
	EventRevoke = "vesting-revoke"
	EventAdmin  = "vesting-admin"
)

type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
		2:                         a.Grant,
		3:                         a.Revoke,
		4:                         a.VestedTokens,
		5:                         a.UnlockVestedTokens,
		6:                         a.GetGrants,
		7:                         a.ProposeAdmin,
		8:                         a.AcceptAdmin,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.VestingActorCodeID
}

func (a Actor) IsSingleton() bool {
	return false
}

func (a Actor) State() runtime.CBORer {
	return new(State)
}

var _ runtime.VMActor = Actor{}

type ConstructorParams struct {
	Admin addr.Address
	Token addr.Address
}

func (a Actor) Constructor(rt runtime.Runtime, params *ConstructorParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.InitActorAddr)

	admin := resolvePrincipal(rt, params.Admin)
	tokenAddr := builtin.ResolveToIDAddr(rt, params.Token)
	code, ok := rt.GetActorCodeCID(tokenAddr)
	builtin.RequireParam(rt, ok && code.Equals(builtin.TokenActorCodeID), "%v is not a token actor", params.Token)

	st, err := ConstructState(adt.AsStore(rt), admin, tokenAddr)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to construct state")
	rt.State().Create(st)
	return nil
}

type GrantParams struct {
	Holder    addr.Address
	Value     abi.TokenAmount
	Start     abi.ChainEpoch
	Cliff     abi.ChainEpoch
	End       abi.ChainEpoch
	Revokable bool
}

type GrantEvent struct {
	Admin  addr.Address
	Holder addr.Address
	Value  abi.TokenAmount
}

// Grant reserves tokens from the pool for a holder, vesting on the given schedule.
// The pool must hold enough tokens to cover every outstanding grant, this one included.
func (a Actor) Grant(rt runtime.Runtime, params *GrantParams) *adt.EmptyValue {
	var st State
	rt.State().Readonly(&st)
	rt.ValidateImmediateCallerIs(st.Admin)

	holder := builtin.ResolveToIDAddr(rt, params.Holder)
	builtin.RequireParam(rt, params.Value.Sign() > 0, "grant value must be positive, was %v", params.Value)
	if !math.InDomain(params.Value) {
		rt.Abortf(ErrArithmeticOverflow, "grant value %v exceeds maximum token amount", params.Value)
	}
	builtin.RequireParam(rt, params.Start >= 0, "grant start %d is negative", params.Start)
	builtin.RequireParam(rt, params.Start <= params.Cliff, "grant cliff %d precedes start %d", params.Cliff, params.Start)
	builtin.RequireParam(rt, params.Cliff <= params.End, "grant end %d precedes cliff %d", params.End, params.Cliff)
	// Every epoch of the schedule must be computable by the curve.
	if _, err := math.CheckedMul(params.Value, big.NewInt(int64(params.End-params.Start))); err != nil {
		rt.Abortf(ErrArithmeticOverflow, "grant value %v over %d epochs exceeds maximum token amount", params.Value, params.End-params.Start)
	}

	pool := poolBalance(rt, st.Token)

	rt.State().Transaction(&st, func() {
		newTotal, err := math.CheckedAdd(st.TotalVesting, params.Value)
		builtin.RequireNoErr(rt, err, ErrArithmeticOverflow, "failed to add grant of %v to total vesting %v", params.Value, st.TotalVesting)
		if newTotal.GreaterThan(pool) {
			rt.Abortf(exitcode.ErrInsufficientFunds, "total vesting %v would exceed pool balance %v", newTotal, pool)
		}

		grants, err := st.LoadGrants(adt.AsStore(rt))
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load grants")
		err = grants.Append(holder, &Grant{
			Value:       params.Value,
			Start:       params.Start,
			Cliff:       params.Cliff,
			End:         params.End,
			Transferred: big.Zero(),
			Revokable:   params.Revokable,
		})
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to store grant for %v", holder)

		st.Grants, err = grants.Root()
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to flush grants")
		st.TotalVesting = newTotal
	})

	rt.Log(builtin.GetActorLogLevel(a, rtt.INFO), "granted %v to %v over epochs [%d, %d] with cliff %d", params.Value, holder, params.Start, params.End, params.Cliff)
	rt.EmitEvent(EventGrant, &GrantEvent{
		Admin:  st.Admin,
		Holder: holder,
		Value:  params.Value,
	})
	return nil
}

type RevokeEvent struct {
	Holder addr.Address
	Refund abi.TokenAmount
}

// Revoke removes every revokable grant of a holder, returning the untransferred remainder to the admin.
// Grants that are not revokable are left untouched.
func (a Actor) Revoke(rt runtime.Runtime, params *addr.Address) *abi.TokenAmount {
	var st State
	rt.State().Readonly(&st)
	rt.ValidateImmediateCallerIs(st.Admin)

	refund := big.Zero()
	holder, ok := rt.ResolveAddress(*params)
	if !ok {
		// An unknown address holds no grants.
		rt.EmitEvent(EventRevoke, &RevokeEvent{Holder: *params, Refund: refund})
		return &refund
	}

	rt.State().Transaction(&st, func() {
		grants, err := st.LoadGrants(adt.AsStore(rt))
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load grants")
		held, err := grants.Load(holder)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load grants for %v", holder)

		// Highest index first, so removal never moves a grant not yet visited.
		for i := len(held) - 1; i >= 0; i-- {
			g := held[i]
			if !g.Revokable {
				continue
			}
			remaining, err := math.CheckedSub(g.Value, g.Transferred)
			builtin.RequireNoErr(rt, err, ErrArithmeticOverflow, "grant %d of %v transferred %v beyond value %v", i, holder, g.Transferred, g.Value)
			refund, err = math.CheckedAdd(refund, remaining)
			builtin.RequireNoErr(rt, err, ErrArithmeticOverflow, "failed to accumulate refund")

			err = grants.RemoveAt(holder, uint64(i))
			builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to remove grant %d of %v", i, holder)
		}

		st.TotalVesting, err = math.CheckedSub(st.TotalVesting, refund)
		builtin.RequireNoErr(rt, err, ErrArithmeticOverflow, "refund %v exceeds total vesting %v", refund, st.TotalVesting)
		st.Grants, err = grants.Root()
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to flush grants")
	})

	if refund.Sign() > 0 {
		transferFromPool(rt, st.Token, st.Admin, refund)
	}

	rt.Log(builtin.GetActorLogLevel(a, rtt.INFO), "revoked grants of %v, refunded %v to %v", holder, refund, st.Admin)
	rt.EmitEvent(EventRevoke, &RevokeEvent{
		Holder: holder,
		Refund: refund,
	})
	return &refund
}

type VestedTokensParams struct {
	Holder addr.Address
	At     abi.ChainEpoch
}

type VestedTokensReturn struct {
	// Sum of the vested amount of every grant at the epoch, including amounts already transferred.
	Vested     abi.TokenAmount
	GrantCount uint64
}

func (a Actor) VestedTokens(rt runtime.Runtime, params *VestedTokensParams) *VestedTokensReturn {
	rt.ValidateImmediateCallerAcceptAny()

	ret := &VestedTokensReturn{Vested: big.Zero()}
	holder, ok := rt.ResolveAddress(params.Holder)
	if !ok {
		// An unknown address has never been granted anything.
		return ret
	}

	var st State
	rt.State().Readonly(&st)
	grants, err := st.LoadGrants(adt.AsStore(rt))
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load grants")
	held, err := grants.Load(holder)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load grants for %v", holder)

	ret.Vested, err = TotalVested(held, params.At)
	builtin.RequireNoErr(rt, err, ErrArithmeticOverflow, "failed to compute vested amount for %v", holder)
	ret.GrantCount = uint64(len(held))
	return ret
}

type UnlockEvent struct {
	Holder addr.Address
	Amount abi.TokenAmount
}

// UnlockVestedTokens transfers to the caller everything vested and not yet transferred across all their grants.
// Returns the amount transferred, which is zero when nothing is due.
func (a Actor) UnlockVestedTokens(rt runtime.Runtime, _ *adt.EmptyValue) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	holder := rt.Message().Caller()
	now := rt.CurrEpoch()

	var st State
	rt.State().Readonly(&st)
	grants, err := st.LoadGrants(adt.AsStore(rt))
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load grants")
	held, err := grants.Load(holder)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load grants for %v", holder)

	transferable := big.Zero()
	totalVested, err := TotalVested(held, now)
	builtin.RequireNoErr(rt, err, ErrArithmeticOverflow, "failed to compute vested amount for %v", holder)
	if totalVested.IsZero() {
		return &transferable
	}

	// Each grant settles only its own increment; the increments are summed.
	vested := make([]abi.TokenAmount, len(held))
	for i := range held {
		vested[i], err = VestedAmount(&held[i], now)
		builtin.RequireNoErr(rt, err, ErrArithmeticOverflow, "failed to compute vested amount of grant %d", i)
		delta, err := math.CheckedSub(vested[i], held[i].Transferred)
		builtin.RequireNoErr(rt, err, ErrArithmeticOverflow, "grant %d of %v transferred %v beyond vested %v", i, holder, held[i].Transferred, vested[i])
		transferable, err = math.CheckedAdd(transferable, delta)
		builtin.RequireNoErr(rt, err, ErrArithmeticOverflow, "failed to accumulate transferable amount")
	}
	if transferable.IsZero() {
		return &transferable
	}

	rt.State().Transaction(&st, func() {
		grants, err := st.LoadGrants(adt.AsStore(rt))
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load grants")
		for i := range held {
			if vested[i].Equals(held[i].Transferred) {
				continue
			}
			err = grants.SetTransferred(holder, uint64(i), vested[i])
			builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to settle grant %d of %v", i, holder)
		}
		st.TotalVesting, err = math.CheckedSub(st.TotalVesting, transferable)
		builtin.RequireNoErr(rt, err, ErrArithmeticOverflow, "unlock of %v exceeds total vesting %v", transferable, st.TotalVesting)
		st.Grants, err = grants.Root()
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to flush grants")
	})

	transferFromPool(rt, st.Token, holder, transferable)

	rt.Log(builtin.GetActorLogLevel(a, rtt.INFO), "unlocked %v for %v at epoch %d", transferable, holder, now)
	rt.EmitEvent(EventUnlock, &UnlockEvent{
		Holder: holder,
		Amount: transferable,
	})
	return &transferable
}

type GrantsReturn struct {
	Grants []Grant
}

// GetGrants returns a holder's grants in the order they were made.
func (a Actor) GetGrants(rt runtime.Runtime, params *addr.Address) *GrantsReturn {
	rt.ValidateImmediateCallerAcceptAny()

	ret := &GrantsReturn{Grants: []Grant{}}
	holder, ok := rt.ResolveAddress(*params)
	if !ok {
		return ret
	}

	var st State
	rt.State().Readonly(&st)
	grants, err := st.LoadGrants(adt.AsStore(rt))
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load grants")
	held, err := grants.Load(holder)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load grants for %v", holder)
	if held != nil {
		ret.Grants = held
	}
	return ret
}

// ProposeAdmin nominates a new administrator, who takes over once they accept.
// Nominating the current admin withdraws any pending nomination.
func (a Actor) ProposeAdmin(rt runtime.Runtime, params *addr.Address) *adt.EmptyValue {
	var st State
	rt.State().Readonly(&st)
	rt.ValidateImmediateCallerIs(st.Admin)

	candidate := resolvePrincipal(rt, *params)

	rt.State().Transaction(&st, func() {
		if candidate == st.Admin {
			st.PendingAdmin = nil
			return
		}
		st.PendingAdmin = &candidate
	})
	rt.Log(builtin.GetActorLogLevel(a, rtt.INFO), "admin %v proposed %v as successor", st.Admin, candidate)
	return nil
}

type AdminEvent struct {
	Admin addr.Address
}

// AcceptAdmin completes a handover, making the caller the administrator.
func (a Actor) AcceptAdmin(rt runtime.Runtime, _ *adt.EmptyValue) *adt.EmptyValue {
	var st State
	rt.State().Readonly(&st)
	if st.PendingAdmin == nil {
		rt.Abortf(exitcode.ErrForbidden, "no admin handover pending")
	}
	rt.ValidateImmediateCallerIs(*st.PendingAdmin)

	rt.State().Transaction(&st, func() {
		st.Admin = *st.PendingAdmin
		st.PendingAdmin = nil
	})
	rt.EmitEvent(EventAdmin, &AdminEvent{Admin: st.Admin})
	return nil
}

// Resolves an address to an ID address, requiring it to be an account or multisig actor.
func resolvePrincipal(rt runtime.Runtime, raw addr.Address) addr.Address {
	resolved := builtin.ResolveToIDAddr(rt, raw)
	code, ok := rt.GetActorCodeCID(resolved)
	builtin.RequireParam(rt, ok && builtin.IsPrincipal(code), "%v is not an account or multisig actor", raw)
	return resolved
}

// Queries the token balance held by this actor.
func poolBalance(rt runtime.Runtime, tokenAddr addr.Address) abi.TokenAmount {
	self := rt.Message().Receiver()
	ret, code := rt.Send(tokenAddr, builtin.MethodsToken.BalanceOf, &self, big.Zero())
	builtin.RequireSuccess(rt, code, "failed to query pool balance from %v", tokenAddr)
	var balance abi.TokenAmount
	builtin.RequireReturn(rt, ret, &balance, builtin.MethodsToken.BalanceOf)
	return balance
}

// Transfers tokens out of the pool, aborting with ErrTransferFailed if the token actor declines.
func transferFromPool(rt runtime.Runtime, tokenAddr, to addr.Address, amount abi.TokenAmount) {
	_, code := rt.Send(tokenAddr, builtin.MethodsToken.Transfer, &token.TransferParams{
		To:     to,
		Amount: amount,
	}, big.Zero())
	if !code.IsSuccess() {
		rt.Abortf(ErrTransferFailed, "failed to transfer %v to %v: exit code %v", amount, to, code)
	}
}
