package vm

import (
	"bytes"
	"fmt"
	"testing"

	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/vesting-actors/actors/runtime"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
)

//
// Invocation expectations
//

func ExpectObject(v runtime.CBORMarshaler) *objectExpectation {
	return &objectExpectation{v}
}

// distinguishes a non-expectation from an expectation of nil
type objectExpectation struct {
	val runtime.CBORMarshaler
}

func ExpectAddress(a addr.Address) *addr.Address { return &a }

// match by cbor encoding to avoid inconsistencies in internal representations of effectively equal objects
func (oe objectExpectation) matches(data []byte) bool {
	if oe.val == nil {
		return len(data) == 0
	}
	buf := new(bytes.Buffer)
	oe.val.MarshalCBOR(buf) // nolint: errcheck
	return bytes.Equal(buf.Bytes(), data)
}

type ExpectInvocation struct {
	To       addr.Address
	Method   abi.MethodNum
	Exitcode exitcode.ExitCode

	From           *addr.Address
	Params         *objectExpectation
	Ret            *objectExpectation
	SubInvocations []ExpectInvocation
}

func (ei ExpectInvocation) Matches(t testing.TB, invocation *Invocation) {
	ei.matches(t, "", invocation)
}

func (ei ExpectInvocation) matches(t testing.TB, breadcrumb string, invocation *Invocation) {
	identifier := fmt.Sprintf("%s[%s:%d]", breadcrumb, invocation.Msg.to, invocation.Msg.method)

	// mismatch of to or method probably indicates skipped message or messages out of order. halt.
	require.Equal(t, ei.To, invocation.Msg.to, "%s unexpected `to` address", identifier)
	require.Equal(t, ei.Method, invocation.Msg.method, "%s unexpected method", identifier)

	// other expectations are optional
	if ei.From != nil {
		assert.Equal(t, *ei.From, invocation.Msg.from, "%s unexpected from address", identifier)
	}
	if ei.Params != nil {
		assert.True(t, ei.Params.matches(invocation.Msg.params), "%s params aren't equal (%v != %x)", identifier, ei.Params.val, invocation.Msg.params)
	}
	if ei.SubInvocations != nil {
		for i, invk := range invocation.SubInvocations {
			subidentifier := fmt.Sprintf("%s%d:", identifier, i)
			require.Greater(t, len(ei.SubInvocations), i, "%s unexpected subinvocation [%s:%d]", subidentifier, invk.Msg.to, invk.Msg.method)
			ei.SubInvocations[i].matches(t, subidentifier, invk)
		}
		missingInvocations := len(ei.SubInvocations) - len(invocation.SubInvocations)
		if missingInvocations > 0 {
			missingIndex := len(invocation.SubInvocations)
			missingExpect := ei.SubInvocations[missingIndex]
			require.Failf(t, "missing invocation", "%s%d: expected invocation [%s:%d]", identifier, missingIndex, missingExpect.To, missingExpect.Method)
		}
	}

	// expect results
	assert.Equal(t, ei.Exitcode, invocation.Exitcode, "%s unexpected exitcode", identifier)
	if ei.Ret != nil {
		assert.True(t, ei.Ret.matches(invocation.Ret), "%s unexpected return value (%v != %x)", identifier, ei.Ret.val, invocation.Ret)
	}
}

// Returns the serialized params of the invocation at a path of indices into the invocation trees.
func ParamsForInvocation(t testing.TB, vm *VM, idxs ...int) []byte {
	invocations := vm.Invocations()
	var invocation *Invocation
	for _, idx := range idxs {
		require.Greater(t, len(invocations), idx)
		invocation = invocations[idx]
		invocations = invocation.SubInvocations
	}
	require.NotNil(t, invocation)
	return invocation.Msg.params
}

// Returns the most recent invocation tree.
func LastInvocation(t testing.TB, vm *VM) *Invocation {
	invocations := vm.Invocations()
	require.NotEmpty(t, invocations)
	return invocations[len(invocations)-1]
}

// Requires that the events emitted since a mark match the given names, in order.
func RequireEventNames(t testing.TB, vm *VM, mark int, names ...string) []Event {
	events := vm.Events()
	require.GreaterOrEqual(t, len(events), mark)
	events = events[mark:]
	if len(names) == 0 {
		require.Empty(t, events)
		return events
	}
	actual := make([]string, len(events))
	for i, e := range events {
		actual[i] = e.Name
	}
	require.Equal(t, names, actual)
	return events
}
