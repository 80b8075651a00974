package vm

import (
	"bytes"
	"context"
	"fmt"
	"reflect"

	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/runtime"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/actors/states"
)

// Context for an individual message invocation, including inter-actor sends.
type invocationContext struct {
	vm                *VM
	msg               InternalMessage
	isCallerValidated bool
	inTransaction     bool
	events            []Event
	subInvocations    []*Invocation
}

var _ runtime.Runtime = (*invocationContext)(nil)
var _ runtime.StateHandle = (*invocationContext)(nil)
var _ runtime.Store = (*invocationContext)(nil)

func newInvocationContext(vm *VM, msg InternalMessage) *invocationContext {
	return &invocationContext{vm: vm, msg: msg}
}

type abort struct {
	code exitcode.ExitCode
	msg  string
}

func (a abort) String() string {
	return fmt.Sprintf("abort(%v): %s", a.code, a.msg)
}

func (ic *invocationContext) invocation(ret []byte, code exitcode.ExitCode) *Invocation {
	return &Invocation{
		Msg:            ic.msg,
		Exitcode:       code,
		Ret:            ret,
		SubInvocations: ic.subInvocations,
	}
}

// Dispatches the message to the receiver's method, converting aborts to exit codes.
func (ic *invocationContext) invoke() (ret []byte, code exitcode.ExitCode) {
	defer func() {
		if r := recover(); r != nil {
			a, ok := r.(abort)
			if !ok {
				panic(r)
			}
			ic.vm.log("%v aborted method %d: %v", ic.msg.to, ic.msg.method, a)
			ret, code = nil, a.code
			ic.events = nil
		}
	}()

	to, ok := ic.vm.NormalizeAddress(ic.msg.to)
	if !ok {
		ic.Abortf(exitcode.SysErrInvalidReceiver, "no actor at %v", ic.msg.to)
	}
	ic.msg.to = to

	actor := ic.loadActor()
	impl, ok := ic.vm.getActorImpl(actor.Code)
	if !ok {
		ic.Abortf(exitcode.SysErrIllegalActor, "no implementation for code %v", actor.Code)
	}

	if ic.msg.method == builtin.MethodSend {
		return nil, exitcode.Ok
	}

	exports := impl.Exports()
	if uint64(ic.msg.method) >= uint64(len(exports)) || exports[ic.msg.method] == nil {
		ic.Abortf(exitcode.SysErrInvalidMethod, "no method %d on %s", ic.msg.method, builtin.ActorNameByCode(actor.Code))
	}
	meth := reflect.ValueOf(exports[ic.msg.method])
	arg := ic.decodeParams(meth.Type().In(1))

	out := meth.Call([]reflect.Value{reflect.ValueOf(ic), arg})
	if !ic.isCallerValidated {
		ic.Abortf(exitcode.SysErrIllegalActor, "method %d of %s did not validate its caller", ic.msg.method, builtin.ActorNameByCode(actor.Code))
	}

	retVal := out[0]
	if retVal.Kind() == reflect.Ptr && retVal.IsNil() {
		return nil, exitcode.Ok
	}
	retBytes, err := marshal(retVal.Interface().(runtime.CBORMarshaler))
	if err != nil {
		ic.Abortf(exitcode.SysErrIllegalActor, "failed to serialize return value: %v", err)
	}
	return retBytes, exitcode.Ok
}

// Decodes the message params into a new value of the method's parameter type.
func (ic *invocationContext) decodeParams(paramType reflect.Type) reflect.Value {
	if len(ic.msg.params) == 0 {
		if paramType.Elem().Kind() == reflect.Struct && paramType.Elem().NumField() == 0 {
			return reflect.Zero(paramType)
		}
		ic.Abortf(exitcode.ErrSerialization, "method %d requires params", ic.msg.method)
	}
	arg := reflect.New(paramType.Elem())
	if err := arg.Interface().(runtime.CBORUnmarshaler).UnmarshalCBOR(bytes.NewReader(ic.msg.params)); err != nil {
		ic.Abortf(exitcode.ErrSerialization, "failed to decode params for method %d: %v", ic.msg.method, err)
	}
	return arg
}

func (ic *invocationContext) loadActor() *states.Actor {
	actor, found, err := ic.vm.GetActor(ic.msg.to)
	if err != nil {
		panic(err)
	}
	if !found {
		ic.Abortf(exitcode.SysErrInvalidReceiver, "no actor at %v", ic.msg.to)
	}
	return actor
}

func (ic *invocationContext) storeActor(actor *states.Actor) {
	if err := ic.vm.tree.SetActor(ic.msg.to, actor); err != nil {
		panic(err)
	}
}

//
// implement runtime.Runtime
//

func (ic *invocationContext) Message() runtime.Message {
	return ic.msg
}

func (ic *invocationContext) CurrEpoch() abi.ChainEpoch {
	return ic.vm.currentEpoch
}

func (ic *invocationContext) ValidateImmediateCallerAcceptAny() {
	ic.assertf(!ic.isCallerValidated, exitcode.SysErrIllegalActor, "caller has been double validated")
	ic.isCallerValidated = true
}

func (ic *invocationContext) ValidateImmediateCallerIs(addrs ...addr.Address) {
	ic.assertf(!ic.isCallerValidated, exitcode.SysErrIllegalActor, "caller has been double validated")
	ic.isCallerValidated = true
	for _, a := range addrs {
		if a == ic.msg.from {
			return
		}
	}
	ic.Abortf(exitcode.ErrForbidden, "caller %v is not one of %v", ic.msg.from, addrs)
}

func (ic *invocationContext) ResolveAddress(address addr.Address) (addr.Address, bool) {
	return ic.vm.NormalizeAddress(address)
}

func (ic *invocationContext) GetActorCodeCID(a addr.Address) (cid.Cid, bool) {
	actor, found, err := ic.vm.GetActor(a)
	if err != nil {
		panic(err)
	}
	if !found {
		return cid.Undef, false
	}
	return actor.Code, true
}

func (ic *invocationContext) State() runtime.StateHandle {
	return ic
}

func (ic *invocationContext) Store() runtime.Store {
	return ic
}

// Sends a message to another actor. The callee's state changes are reverted if it does not exit successfully.
func (ic *invocationContext) Send(toAddr addr.Address, methodNum abi.MethodNum, params runtime.CBORMarshaler, value abi.TokenAmount) (runtime.SendReturn, exitcode.ExitCode) {
	if ic.inTransaction {
		ic.Abortf(exitcode.SysErrIllegalActor, "side-effect within transaction")
	}
	if !value.IsZero() {
		ic.Abortf(exitcode.SysErrIllegalArgument, "value transfer of %v is not supported", value)
	}
	paramBytes, err := marshal(params)
	if err != nil {
		ic.Abortf(exitcode.SysErrIllegalArgument, "failed to serialize params: %v", err)
	}

	snapshot, err := ic.vm.tree.Flush()
	if err != nil {
		panic(err)
	}

	child := newInvocationContext(ic.vm, InternalMessage{
		from:   ic.msg.to,
		to:     toAddr,
		method: methodNum,
		params: paramBytes,
	})
	ret, code := child.invoke()
	ic.subInvocations = append(ic.subInvocations, child.invocation(ret, code))

	if code.IsSuccess() {
		ic.events = append(ic.events, child.events...)
	} else if err := ic.vm.rollback(snapshot); err != nil {
		panic(err)
	}
	return sendReturn{ret}, code
}

func (ic *invocationContext) Abortf(errExitCode exitcode.ExitCode, msg string, args ...interface{}) {
	if errExitCode.IsSuccess() {
		errExitCode = exitcode.SysErrIllegalActor
	}
	panic(abort{errExitCode, fmt.Sprintf(msg, args...)})
}

func (ic *invocationContext) EmitEvent(name string, payload runtime.CBORMarshaler) {
	if ic.inTransaction {
		ic.Abortf(exitcode.SysErrIllegalActor, "side-effect within transaction")
	}
	data, err := marshal(payload)
	if err != nil {
		ic.Abortf(exitcode.SysErrIllegalArgument, "failed to serialize event %s: %v", name, err)
	}
	ic.events = append(ic.events, Event{Emitter: ic.msg.to, Name: name, Payload: data})
}

func (ic *invocationContext) Context() context.Context {
	return ic.vm.ctx
}

func (ic *invocationContext) Log(level rtt.LogLevel, msg string, args ...interface{}) {
	ic.vm.log("[%v] %v: %s", level, ic.msg.to, fmt.Sprintf(msg, args...))
}

//
// implement runtime.StateHandle
//

func (ic *invocationContext) Create(obj runtime.CBORMarshaler) {
	actor := ic.loadActor()
	if !actor.Head.Equals(ic.vm.emptyObject) {
		ic.Abortf(exitcode.SysErrIllegalActor, "state already constructed")
	}
	actor.Head = ic.StorePut(obj)
	ic.storeActor(actor)
}

func (ic *invocationContext) Readonly(obj runtime.CBORUnmarshaler) {
	actor := ic.loadActor()
	if actor.Head.Equals(ic.vm.emptyObject) {
		ic.Abortf(exitcode.SysErrIllegalActor, "state not constructed")
	}
	if !ic.StoreGet(actor.Head, obj) {
		ic.Abortf(exitcode.ErrNotFound, "failed to load state for %v", ic.msg.to)
	}
}

func (ic *invocationContext) Transaction(obj runtime.CBORer, f func()) {
	if ic.inTransaction {
		ic.Abortf(exitcode.SysErrIllegalActor, "nested transaction")
	}
	ic.Readonly(obj)
	ic.inTransaction = true
	defer func() { ic.inTransaction = false }()
	f()

	actor := ic.loadActor()
	actor.Head = ic.StorePut(obj)
	ic.storeActor(actor)
}

//
// implement runtime.Store
//

func (ic *invocationContext) StoreGet(c cid.Cid, o runtime.CBORUnmarshaler) bool {
	if err := ic.vm.store.Get(ic.vm.ctx, c, o); err != nil {
		ic.vm.log("failed to load %v: %v", c, err)
		return false
	}
	return true
}

func (ic *invocationContext) StorePut(x runtime.CBORMarshaler) cid.Cid {
	c, err := ic.vm.store.Put(ic.vm.ctx, x)
	if err != nil {
		ic.Abortf(exitcode.ErrSerialization, "failed to store object: %v", err)
	}
	return c
}

func (ic *invocationContext) assertf(predicate bool, code exitcode.ExitCode, msg string, args ...interface{}) {
	if !predicate {
		ic.Abortf(code, msg, args...)
	}
}

// The return value of a send, held as serialized bytes.
type sendReturn struct {
	data []byte
}

var _ runtime.SendReturn = sendReturn{}

func (r sendReturn) Into(o runtime.CBORUnmarshaler) error {
	if len(r.data) == 0 {
		return xerrors.New("no return value")
	}
	return o.UnmarshalCBOR(bytes.NewReader(r.data))
}
