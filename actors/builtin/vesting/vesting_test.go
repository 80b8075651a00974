package vesting_test

import (
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	big "github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/token"
	"github.com/filecoin-project/vesting-actors/actors/builtin/vesting"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
	"github.com/filecoin-project/vesting-actors/actors/util/math"
	"github.com/filecoin-project/vesting-actors/support/mock"
	tutil "github.com/filecoin-project/vesting-actors/support/testing"
)

func TestExports(t *testing.T) {
	mock.CheckActorExports(t, vesting.Actor{})
}

func TestConstruction(t *testing.T) {
	h := newHarness(t)

	t.Run("simple construction", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		st := h.getState(rt)
		assert.Equal(t, h.admin, st.Admin)
		assert.Nil(t, st.PendingAdmin)
		assert.Equal(t, h.token, st.Token)
		assertAmount(t, big.Zero(), st.TotalVesting)
		h.checkState(rt)
	})

	t.Run("resolves admin to ID address", func(t *testing.T) {
		rt := h.builder().Build(t)
		pubkey := tutil.NewSECP256K1Addr(t, "admin")
		rt.AddIDAddress(pubkey, h.admin)

		rt.SetCaller(builtin.InitActorAddr, builtin.InitActorCodeID)
		rt.ExpectValidateCallerAddr(builtin.InitActorAddr)
		rt.Call(h.Constructor, &vesting.ConstructorParams{Admin: pubkey, Token: h.token})
		rt.Verify()

		assert.Equal(t, h.admin, h.getState(rt).Admin)
	})

	t.Run("fails when caller is not init actor", func(t *testing.T) {
		rt := h.builder().Build(t)
		rt.SetCaller(h.admin, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(builtin.InitActorAddr)
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(h.Constructor, &vesting.ConstructorParams{Admin: h.admin, Token: h.token})
		})
		rt.Verify()
	})

	t.Run("fails when admin is not a principal", func(t *testing.T) {
		rt := h.builder().Build(t)
		rt.SetCaller(builtin.InitActorAddr, builtin.InitActorCodeID)
		rt.ExpectValidateCallerAddr(builtin.InitActorAddr)
		rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
			rt.Call(h.Constructor, &vesting.ConstructorParams{Admin: h.token, Token: h.token})
		})
		rt.Verify()
	})

	t.Run("fails when token is not a token actor", func(t *testing.T) {
		rt := h.builder().Build(t)
		rt.SetCaller(builtin.InitActorAddr, builtin.InitActorCodeID)
		rt.ExpectValidateCallerAddr(builtin.InitActorAddr)
		rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
			rt.Call(h.Constructor, &vesting.ConstructorParams{Admin: h.admin, Token: h.admin})
		})
		rt.Verify()
	})
}

func TestGrant(t *testing.T) {
	h := newHarness(t)
	holder := tutil.NewIDAddr(t, 201)

	t.Run("scenario A: vesting over time", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(1000)

		h.grant(rt, holder, 1000, 0, 100, 1000, false)

		st := h.getState(rt)
		assertAmount(t, abi.NewTokenAmount(1000), st.TotalVesting)
		grants := h.getGrants(rt, holder)
		require.Len(t, grants, 1)
		assertGrant(t, grants[0], 1000, 0, 100, 1000, 0, false)

		h.assertVested(rt, holder, 50, 0, 1)
		h.assertVested(rt, holder, 500, 500, 1)
		h.assertVested(rt, holder, 1000, 1000, 1)
		h.checkState(rt)
	})

	t.Run("multiple grants per holder", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(1000)

		h.grant(rt, holder, 100, 0, 0, 100, true)
		h.grant(rt, holder, 200, 0, 0, 200, false)
		h.grant(rt, holder, 300, 10, 20, 30, false)

		assert.Len(t, h.getGrants(rt, holder), 3)
		assertAmount(t, abi.NewTokenAmount(600), h.getState(rt).TotalVesting)
		h.assertVested(rt, holder, 100, 100+100+300, 3)
		h.checkState(rt)
	})

	t.Run("grant resolves holder address", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(100)
		pubkey := tutil.NewBLSAddr(t, 1)
		rt.AddIDAddress(pubkey, holder)

		rt.SetCaller(h.admin, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(h.admin)
		h.expectPoolQuery(rt)
		rt.ExpectEmitEvent(vesting.EventGrant, &vesting.GrantEvent{Admin: h.admin, Holder: holder, Value: abi.NewTokenAmount(100)})
		rt.Call(h.Grant, &vesting.GrantParams{Holder: pubkey, Value: abi.NewTokenAmount(100), Start: 0, Cliff: 0, End: 10})
		rt.Verify()

		assert.Len(t, h.getGrants(rt, holder), 1)
	})

	t.Run("scenario C: cliff before start", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		h.expectGrantAbort(rt, exitcode.ErrIllegalArgument, "precedes start", &vesting.GrantParams{
			Holder: holder, Value: abi.NewTokenAmount(10), Start: 10, Cliff: 5, End: 20,
		})
		assertAmount(t, big.Zero(), h.getState(rt).TotalVesting)
	})

	t.Run("end before cliff", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		h.expectGrantAbort(rt, exitcode.ErrIllegalArgument, "precedes cliff", &vesting.GrantParams{
			Holder: holder, Value: abi.NewTokenAmount(10), Start: 0, Cliff: 50, End: 20,
		})
	})

	t.Run("negative start", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		h.expectGrantAbort(rt, exitcode.ErrIllegalArgument, "negative", &vesting.GrantParams{
			Holder: holder, Value: abi.NewTokenAmount(10), Start: -1, Cliff: 0, End: 20,
		})
	})

	t.Run("zero value", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		h.expectGrantAbort(rt, exitcode.ErrIllegalArgument, "must be positive", &vesting.GrantParams{
			Holder: holder, Value: big.Zero(), Start: 0, Cliff: 0, End: 20,
		})
	})

	t.Run("undefined holder", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		h.expectGrantAbort(rt, exitcode.ErrIllegalArgument, "must be defined", &vesting.GrantParams{
			Holder: addr.Undef, Value: abi.NewTokenAmount(10), Start: 0, Cliff: 0, End: 20,
		})
	})

	t.Run("unresolvable holder", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		h.expectGrantAbort(rt, exitcode.ErrIllegalArgument, "unable to resolve", &vesting.GrantParams{
			Holder: tutil.NewSECP256K1Addr(t, "nobody"), Value: abi.NewTokenAmount(10), Start: 0, Cliff: 0, End: 20,
		})
	})

	t.Run("value beyond token domain", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		h.expectGrantAbort(rt, vesting.ErrArithmeticOverflow, "exceeds maximum", &vesting.GrantParams{
			Holder: holder, Value: big.Add(math.MaxTokenAmount, big.NewInt(1)), Start: 0, Cliff: 0, End: 20,
		})
	})

	t.Run("total vesting overflow", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.pool = math.MaxTokenAmount

		h.grantAmount(rt, holder, math.MaxTokenAmount, 0, 0, 1, false)

		rt.SetCaller(h.admin, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(h.admin)
		h.expectPoolQuery(rt)
		rt.ExpectAbort(vesting.ErrArithmeticOverflow, func() {
			rt.Call(h.Grant, &vesting.GrantParams{Holder: holder, Value: abi.NewTokenAmount(1), Start: 0, Cliff: 0, End: 1})
		})
		rt.Verify()
		assertAmount(t, math.MaxTokenAmount, h.getState(rt).TotalVesting)
		h.checkState(rt)
	})

	t.Run("schedule beyond token domain", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.pool = math.MaxTokenAmount

		// Value * (End - Start) must fit, or the curve could not be evaluated mid-schedule.
		h.expectGrantAbort(rt, vesting.ErrArithmeticOverflow, "over 1000 epochs", &vesting.GrantParams{
			Holder: holder, Value: big.Div(math.MaxTokenAmount, big.NewInt(500)), Start: 0, Cliff: 0, End: 1000,
		})
		h.expectGrantAbort(rt, vesting.ErrArithmeticOverflow, "over 1000 epochs", &vesting.GrantParams{
			Holder: holder, Value: big.Div(math.MaxTokenAmount, big.NewInt(500)), Start: 0, Cliff: 900, End: 1000,
		})
		assert.Empty(t, h.getGrants(rt, holder))

		// The largest value that fits is accepted and vests at every epoch.
		value := big.Div(math.MaxTokenAmount, big.NewInt(1000))
		h.grantAmount(rt, holder, value, 0, 0, 1000, false)
		rt.ExpectValidateCallerAny()
		ret := rt.Call(h.VestedTokens, &vesting.VestedTokensParams{Holder: holder, At: 999}).(*vesting.VestedTokensReturn)
		rt.Verify()
		assertAmount(t, big.Div(big.Mul(value, big.NewInt(999)), big.NewInt(1000)), ret.Vested)
		h.checkState(rt)
	})

	t.Run("scenario D: insufficient pool", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(1000)

		h.grant(rt, holder, 600, 0, 0, 100, false)

		rt.SetCaller(h.admin, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(h.admin)
		h.expectPoolQuery(rt)
		rt.ExpectAbort(exitcode.ErrInsufficientFunds, func() {
			rt.Call(h.Grant, &vesting.GrantParams{Holder: holder, Value: abi.NewTokenAmount(401), Start: 0, Cliff: 0, End: 100})
		})
		rt.Verify()

		assertAmount(t, abi.NewTokenAmount(600), h.getState(rt).TotalVesting)
		assert.Len(t, h.getGrants(rt, holder), 1)

		// The exact remainder still fits.
		h.grant(rt, holder, 400, 0, 0, 100, false)
		assertAmount(t, abi.NewTokenAmount(1000), h.getState(rt).TotalVesting)
		h.checkState(rt)
	})

	t.Run("only admin may grant", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		rt.SetCaller(holder, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(h.admin)
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(h.Grant, &vesting.GrantParams{Holder: holder, Value: abi.NewTokenAmount(1), Start: 0, Cliff: 0, End: 10})
		})
		rt.Verify()
	})

	t.Run("pool query failure aborts", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		rt.SetCaller(h.admin, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(h.admin)
		self := h.receiver
		rt.ExpectSend(h.token, builtin.MethodsToken.BalanceOf, &self, big.Zero(), nil, exitcode.ErrIllegalState)
		rt.ExpectAbort(exitcode.ErrIllegalState, func() {
			rt.Call(h.Grant, &vesting.GrantParams{Holder: holder, Value: abi.NewTokenAmount(1), Start: 0, Cliff: 0, End: 10})
		})
		rt.Verify()
	})
}

func TestUnlockVestedTokens(t *testing.T) {
	h := newHarness(t)
	holder := tutil.NewIDAddr(t, 201)
	other := tutil.NewIDAddr(t, 202)

	t.Run("unlocks linearly and is idempotent", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(1000)
		h.grant(rt, holder, 1000, 0, 100, 1000, false)

		// before the cliff
		rt.SetEpoch(50)
		h.unlock(rt, holder, 0)

		rt.SetEpoch(300)
		h.unlock(rt, holder, 300)
		// same epoch again
		h.unlock(rt, holder, 0)
		h.checkState(rt)

		rt.SetEpoch(750)
		h.unlock(rt, holder, 450)

		rt.SetEpoch(2000)
		h.unlock(rt, holder, 250)
		h.unlock(rt, holder, 0)

		st := h.getState(rt)
		assertAmount(t, big.Zero(), st.TotalVesting)
		grants := h.getGrants(rt, holder)
		require.Len(t, grants, 1)
		assertAmount(t, abi.NewTokenAmount(1000), grants[0].Transferred)
		// Fully settled grants remain and still report as vested.
		h.assertVested(rt, holder, 2000, 1000, 1)
		h.checkState(rt)
	})

	t.Run("sums increments across grants", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(1000)
		h.grant(rt, holder, 100, 0, 0, 100, false)
		h.grant(rt, holder, 200, 0, 0, 200, false)
		h.grant(rt, holder, 400, 0, 0, 400, false)

		rt.SetEpoch(50)
		h.unlock(rt, holder, 150)

		rt.SetEpoch(100)
		h.unlock(rt, holder, 150)

		grants := h.getGrants(rt, holder)
		require.Len(t, grants, 3)
		assertAmount(t, abi.NewTokenAmount(100), grants[0].Transferred)
		assertAmount(t, abi.NewTokenAmount(100), grants[1].Transferred)
		assertAmount(t, abi.NewTokenAmount(100), grants[2].Transferred)

		rt.SetEpoch(200)
		h.unlock(rt, holder, 200)

		grants = h.getGrants(rt, holder)
		assertAmount(t, abi.NewTokenAmount(100), grants[0].Transferred)
		assertAmount(t, abi.NewTokenAmount(200), grants[1].Transferred)
		assertAmount(t, abi.NewTokenAmount(200), grants[2].Transferred)
		assertAmount(t, abi.NewTokenAmount(200), h.getState(rt).TotalVesting)
		h.checkState(rt)
	})

	t.Run("settles only the caller's grants", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(300)
		h.grant(rt, holder, 100, 0, 0, 100, false)
		h.grant(rt, other, 200, 0, 0, 100, false)

		rt.SetEpoch(100)
		h.unlock(rt, holder, 100)

		assertAmount(t, big.Zero(), h.getGrants(rt, other)[0].Transferred)
		assertAmount(t, abi.NewTokenAmount(200), h.getState(rt).TotalVesting)
		h.checkState(rt)
	})

	t.Run("scenario E: holder without grants", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(100)
		h.grant(rt, other, 100, 0, 0, 10, false)

		rt.SetEpoch(100)
		h.unlock(rt, holder, 0)
		assert.Empty(t, rt.Events()[1:])
	})

	t.Run("transfer failure rolls back", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(100)
		h.grant(rt, holder, 100, 0, 0, 100, false)
		before := rt.StateRoot()
		eventCount := len(rt.Events())

		rt.SetEpoch(40)
		rt.SetCaller(holder, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectSend(h.token, builtin.MethodsToken.Transfer, &token.TransferParams{To: holder, Amount: abi.NewTokenAmount(40)}, big.Zero(), nil, exitcode.ErrInsufficientFunds)
		rt.ExpectAbort(vesting.ErrTransferFailed, func() {
			rt.Call(h.UnlockVestedTokens, nil)
		})
		rt.Verify()

		assert.Equal(t, before, rt.StateRoot())
		assert.Len(t, rt.Events(), eventCount)
		assertAmount(t, big.Zero(), h.getGrants(rt, holder)[0].Transferred)

		// A later attempt settles everything vested by then.
		rt.SetEpoch(60)
		h.unlock(rt, holder, 60)
		h.checkState(rt)
	})
}

func TestRevoke(t *testing.T) {
	h := newHarness(t)
	holder := tutil.NewIDAddr(t, 201)
	other := tutil.NewIDAddr(t, 202)

	t.Run("scenario B: refunds only the revokable grant", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(300)
		h.grant(rt, holder, 100, 0, 0, 100, true)
		h.grant(rt, holder, 200, 0, 0, 200, false)

		h.revoke(rt, holder, 100)

		grants := h.getGrants(rt, holder)
		require.Len(t, grants, 1)
		assertGrant(t, grants[0], 200, 0, 0, 200, 0, false)
		assertAmount(t, abi.NewTokenAmount(200), h.getState(rt).TotalVesting)
		h.checkState(rt)
	})

	t.Run("scenario B after a partial unlock", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(300)
		h.grant(rt, holder, 100, 0, 0, 100, true)
		h.grant(rt, holder, 200, 0, 0, 200, false)

		rt.SetEpoch(30)
		h.unlock(rt, holder, 60)

		h.revoke(rt, holder, 70)

		grants := h.getGrants(rt, holder)
		require.Len(t, grants, 1)
		assertGrant(t, grants[0], 200, 0, 0, 200, 30, false)
		assertAmount(t, abi.NewTokenAmount(170), h.getState(rt).TotalVesting)
		h.checkState(rt)
	})

	t.Run("removes every revokable grant among many", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(10000)
		h.grant(rt, holder, 1, 0, 0, 10, true)
		h.grant(rt, holder, 2, 0, 0, 10, true)
		h.grant(rt, holder, 3, 0, 0, 10, false)
		h.grant(rt, holder, 4, 0, 0, 10, true)
		h.grant(rt, holder, 5, 0, 0, 10, false)
		h.grant(rt, holder, 6, 0, 0, 10, true)
		h.grant(rt, other, 7, 0, 0, 10, true)

		h.revoke(rt, holder, 1+2+4+6)

		grants := h.getGrants(rt, holder)
		require.Len(t, grants, 2)
		assertAmount(t, abi.NewTokenAmount(3), grants[0].Value)
		assertAmount(t, abi.NewTokenAmount(5), grants[1].Value)
		assert.Len(t, h.getGrants(rt, other), 1)
		assertAmount(t, abi.NewTokenAmount(3+5+7), h.getState(rt).TotalVesting)
		h.checkState(rt)
	})

	t.Run("all revokable removes holder", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(300)
		h.grant(rt, holder, 100, 0, 0, 100, true)
		h.grant(rt, holder, 200, 0, 0, 100, true)

		h.revoke(rt, holder, 300)
		assert.Empty(t, h.getGrants(rt, holder))
		h.assertVested(rt, holder, 1000, 0, 0)
		h.checkState(rt)
	})

	t.Run("nothing to refund skips transfer", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(100)
		h.grant(rt, holder, 100, 0, 0, 100, false)

		h.revoke(rt, holder, 0)
		h.revoke(rt, other, 0)
		assert.Len(t, h.getGrants(rt, holder), 1)
		h.checkState(rt)
	})

	t.Run("unknown holder is refunded nothing", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(100)
		h.grant(rt, holder, 100, 0, 0, 100, true)
		before := h.getState(rt)

		h.revoke(rt, tutil.NewBLSAddr(t, 7), 0)

		after := h.getState(rt)
		assert.Equal(t, before.Grants, after.Grants)
		assertAmount(t, abi.NewTokenAmount(100), after.TotalVesting)
		h.checkState(rt)
	})

	t.Run("only admin may revoke", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		rt.SetCaller(holder, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(h.admin)
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(h.Revoke, &holder)
		})
		rt.Verify()
	})

	t.Run("transfer failure rolls back", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)
		h.setPool(100)
		h.grant(rt, holder, 100, 0, 0, 100, true)
		before := rt.StateRoot()

		rt.SetCaller(h.admin, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(h.admin)
		rt.ExpectSend(h.token, builtin.MethodsToken.Transfer, &token.TransferParams{To: h.admin, Amount: abi.NewTokenAmount(100)}, big.Zero(), nil, exitcode.ErrForbidden)
		rt.ExpectAbort(vesting.ErrTransferFailed, func() {
			rt.Call(h.Revoke, &holder)
		})
		rt.Verify()

		assert.Equal(t, before, rt.StateRoot())
		assert.Len(t, h.getGrants(rt, holder), 1)
	})
}

func TestAdminHandover(t *testing.T) {
	h := newHarness(t)
	successor := tutil.NewIDAddr(t, 301)
	stranger := tutil.NewIDAddr(t, 302)

	t.Run("propose and accept", func(t *testing.T) {
		rt := h.builder().WithActorType(successor, builtin.AccountActorCodeID).Build(t)
		h.constructAndVerify(rt)

		h.proposeAdmin(rt, successor)
		st := h.getState(rt)
		require.NotNil(t, st.PendingAdmin)
		assert.Equal(t, successor, *st.PendingAdmin)
		assert.Equal(t, h.admin, st.Admin)

		rt.SetCaller(successor, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(successor)
		rt.ExpectEmitEvent(vesting.EventAdmin, &vesting.AdminEvent{Admin: successor})
		rt.Call(h.AcceptAdmin, nil)
		rt.Verify()

		st = h.getState(rt)
		assert.Equal(t, successor, st.Admin)
		assert.Nil(t, st.PendingAdmin)

		// The previous admin has lost its rights.
		rt.SetCaller(h.admin, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(successor)
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(h.Revoke, &stranger)
		})
		rt.Verify()
	})

	t.Run("only the proposed admin may accept", func(t *testing.T) {
		rt := h.builder().WithActorType(successor, builtin.AccountActorCodeID).Build(t)
		h.constructAndVerify(rt)
		h.proposeAdmin(rt, successor)

		rt.SetCaller(stranger, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(successor)
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(h.AcceptAdmin, nil)
		})
		rt.Verify()
	})

	t.Run("accept without proposal", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		rt.SetCaller(successor, builtin.AccountActorCodeID)
		rt.ExpectAbortContainsMessage(exitcode.ErrForbidden, "no admin handover pending", func() {
			rt.Call(h.AcceptAdmin, nil)
		})
		rt.Verify()
	})

	t.Run("proposing current admin withdraws proposal", func(t *testing.T) {
		rt := h.builder().WithActorType(successor, builtin.AccountActorCodeID).Build(t)
		h.constructAndVerify(rt)
		h.proposeAdmin(rt, successor)
		h.proposeAdmin(rt, h.admin)

		assert.Nil(t, h.getState(rt).PendingAdmin)
		h.checkState(rt)
	})

	t.Run("only admin may propose", func(t *testing.T) {
		rt := h.builder().WithActorType(successor, builtin.AccountActorCodeID).Build(t)
		h.constructAndVerify(rt)

		rt.SetCaller(successor, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(h.admin)
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(h.ProposeAdmin, &successor)
		})
		rt.Verify()
	})

	t.Run("candidate must be a principal", func(t *testing.T) {
		rt := h.builder().Build(t)
		h.constructAndVerify(rt)

		rt.SetCaller(h.admin, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(h.admin)
		rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
			rt.Call(h.ProposeAdmin, &h.token)
		})
		rt.Verify()
	})
}

func TestConservationAcrossOperations(t *testing.T) {
	h := newHarness(t)
	alice := tutil.NewIDAddr(t, 201)
	bob := tutil.NewIDAddr(t, 202)

	rt := h.builder().Build(t)
	h.constructAndVerify(rt)
	h.setPool(5000)

	h.grant(rt, alice, 1000, 0, 100, 1000, true)
	h.grant(rt, alice, 500, 50, 50, 550, false)
	h.grant(rt, bob, 2000, 0, 0, 2000, true)
	h.checkState(rt)

	rt.SetEpoch(150)
	h.unlock(rt, alice, 150+100)
	h.unlock(rt, bob, 150)
	h.checkState(rt)

	h.revoke(rt, alice, 1000-150)
	h.checkState(rt)

	rt.SetEpoch(1000)
	h.unlock(rt, alice, 400)
	h.revoke(rt, bob, 2000-150)
	h.checkState(rt)

	assertAmount(t, big.Zero(), h.getState(rt).TotalVesting)
}

//
// Harness
//

type actorHarness struct {
	vesting.Actor
	t testing.TB

	receiver addr.Address
	admin    addr.Address
	token    addr.Address

	// Token balance held by the vesting actor, following every expected transfer.
	pool abi.TokenAmount
}

func newHarness(t testing.TB) *actorHarness {
	return &actorHarness{
		Actor:    vesting.Actor{},
		t:        t,
		receiver: tutil.NewIDAddr(t, 1000),
		admin:    tutil.NewIDAddr(t, 100),
		token:    tutil.NewIDAddr(t, 99),
		pool:     big.Zero(),
	}
}

func (h *actorHarness) builder() *mock.RuntimeBuilder {
	return mock.NewBuilder(context.Background(), h.receiver).
		WithCaller(builtin.InitActorAddr, builtin.InitActorCodeID).
		WithActorType(h.admin, builtin.AccountActorCodeID).
		WithActorType(h.token, builtin.TokenActorCodeID)
}

func (h *actorHarness) setPool(amount int64) {
	h.pool = abi.NewTokenAmount(amount)
}

func (h *actorHarness) constructAndVerify(rt *mock.Runtime) {
	rt.SetCaller(builtin.InitActorAddr, builtin.InitActorCodeID)
	rt.ExpectValidateCallerAddr(builtin.InitActorAddr)
	ret := rt.Call(h.Constructor, &vesting.ConstructorParams{Admin: h.admin, Token: h.token})
	assert.Nil(h.t, ret)
	rt.Verify()
}

func (h *actorHarness) expectPoolQuery(rt *mock.Runtime) {
	self := h.receiver
	pool := h.pool
	rt.ExpectSend(h.token, builtin.MethodsToken.BalanceOf, &self, big.Zero(), &pool, exitcode.Ok)
}

func (h *actorHarness) grant(rt *mock.Runtime, holder addr.Address, value int64, start, cliff, end abi.ChainEpoch, revokable bool) {
	h.grantAmount(rt, holder, abi.NewTokenAmount(value), start, cliff, end, revokable)
}

func (h *actorHarness) grantAmount(rt *mock.Runtime, holder addr.Address, value abi.TokenAmount, start, cliff, end abi.ChainEpoch, revokable bool) {
	rt.SetCaller(h.admin, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAddr(h.admin)
	h.expectPoolQuery(rt)
	rt.ExpectEmitEvent(vesting.EventGrant, &vesting.GrantEvent{Admin: h.admin, Holder: holder, Value: value})

	ret := rt.Call(h.Grant, &vesting.GrantParams{
		Holder:    holder,
		Value:     value,
		Start:     start,
		Cliff:     cliff,
		End:       end,
		Revokable: revokable,
	})
	assert.Nil(h.t, ret)
	rt.Verify()
}

func (h *actorHarness) expectGrantAbort(rt *mock.Runtime, code exitcode.ExitCode, msg string, params *vesting.GrantParams) {
	before := rt.StateRoot()
	rt.SetCaller(h.admin, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAddr(h.admin)
	rt.ExpectAbortContainsMessage(code, msg, func() {
		rt.Call(h.Grant, params)
	})
	rt.Verify()
	assert.Equal(h.t, before, rt.StateRoot())
}

func (h *actorHarness) unlock(rt *mock.Runtime, holder addr.Address, expected int64) {
	amount := abi.NewTokenAmount(expected)
	rt.SetCaller(holder, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAny()
	if expected > 0 {
		rt.ExpectSend(h.token, builtin.MethodsToken.Transfer, &token.TransferParams{To: holder, Amount: amount}, big.Zero(), nil, exitcode.Ok)
		rt.ExpectEmitEvent(vesting.EventUnlock, &vesting.UnlockEvent{Holder: holder, Amount: amount})
	}

	ret := rt.Call(h.UnlockVestedTokens, nil).(*abi.TokenAmount)
	rt.Verify()
	assertAmount(h.t, amount, *ret)
	h.pool = big.Sub(h.pool, amount)
}

func (h *actorHarness) revoke(rt *mock.Runtime, holder addr.Address, expectedRefund int64) {
	refund := abi.NewTokenAmount(expectedRefund)
	rt.SetCaller(h.admin, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAddr(h.admin)
	if expectedRefund > 0 {
		rt.ExpectSend(h.token, builtin.MethodsToken.Transfer, &token.TransferParams{To: h.admin, Amount: refund}, big.Zero(), nil, exitcode.Ok)
	}
	rt.ExpectEmitEvent(vesting.EventRevoke, &vesting.RevokeEvent{Holder: holder, Refund: refund})

	ret := rt.Call(h.Revoke, &holder).(*abi.TokenAmount)
	rt.Verify()
	assertAmount(h.t, refund, *ret)
	h.pool = big.Sub(h.pool, refund)
}

func (h *actorHarness) proposeAdmin(rt *mock.Runtime, candidate addr.Address) {
	rt.SetCaller(h.admin, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAddr(h.admin)
	rt.Call(h.ProposeAdmin, &candidate)
	rt.Verify()
}

func (h *actorHarness) assertVested(rt *mock.Runtime, holder addr.Address, at abi.ChainEpoch, expected int64, grantCount uint64) {
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.VestedTokens, &vesting.VestedTokensParams{Holder: holder, At: at}).(*vesting.VestedTokensReturn)
	rt.Verify()
	assertAmount(h.t, abi.NewTokenAmount(expected), ret.Vested)
	assert.Equal(h.t, grantCount, ret.GrantCount)
}

func (h *actorHarness) getGrants(rt *mock.Runtime, holder addr.Address) []vesting.Grant {
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.GetGrants, &holder).(*vesting.GrantsReturn)
	rt.Verify()
	return ret.Grants
}

func (h *actorHarness) getState(rt *mock.Runtime) *vesting.State {
	var st vesting.State
	rt.GetState(&st)
	return &st
}

func (h *actorHarness) checkState(rt *mock.Runtime) {
	st := h.getState(rt)
	_, msgs, err := vesting.CheckStateInvariants(st, adt.AsStore(rt), h.pool)
	require.NoError(h.t, err)
	assert.True(h.t, msgs.IsEmpty(), msgs.Messages())
}

func assertGrant(t testing.TB, g vesting.Grant, value int64, start, cliff, end abi.ChainEpoch, transferred int64, revokable bool) {
	assertAmount(t, abi.NewTokenAmount(value), g.Value)
	assert.Equal(t, start, g.Start)
	assert.Equal(t, cliff, g.Cliff)
	assert.Equal(t, end, g.End)
	assertAmount(t, abi.NewTokenAmount(transferred), g.Transferred)
	assert.Equal(t, revokable, g.Revokable)
}
