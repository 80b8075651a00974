package vm

import (
	"bytes"
	"context"
	"fmt"

	addr "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	cid "github.com/ipfs/go-cid"
	"github.com/pkg/errors"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/runtime"
	"github.com/filecoin-project/vesting-actors/actors/runtime/exitcode"
	"github.com/filecoin-project/vesting-actors/actors/states"
	"github.com/filecoin-project/vesting-actors/actors/util/adt"
)

// VM holds the state and executes messages over the state.
type VM struct {
	ctx   context.Context
	store adt.Store

	currentEpoch abi.ChainEpoch

	actorImpls ActorImplLookup
	stateRoot  cid.Cid      // The last committed root.
	tree       *states.Tree // The current (not necessarily committed) state.
	nextID     abi.ActorID

	emptyObject cid.Cid

	logs        []string
	invocations []*Invocation
	events      []Event
}

// VM types

type ActorImplLookup map[cid.Cid]runtime.VMActor

// Event is a notification emitted by an actor during a message that completed successfully.
type Event struct {
	Emitter addr.Address
	Name    string
	Payload []byte
}

// Into decodes the event payload.
func (e Event) Into(o runtime.CBORUnmarshaler) error {
	return o.UnmarshalCBOR(bytes.NewReader(e.Payload))
}

// MessageResult is the receipt of a top-level message.
type MessageResult struct {
	Ret  []byte
	Code exitcode.ExitCode
}

// Into decodes the return value of a message.
func (r MessageResult) Into(o runtime.CBORUnmarshaler) error {
	return sendReturn{r.Ret}.Into(o)
}

type InternalMessage struct {
	from   addr.Address
	to     addr.Address
	method abi.MethodNum
	params []byte
}

var _ runtime.Message = InternalMessage{}

// Caller implements runtime.Message.
func (msg InternalMessage) Caller() addr.Address {
	return msg.from
}

// Receiver implements runtime.Message.
func (msg InternalMessage) Receiver() addr.Address {
	return msg.to
}

// Invocation records a message and the messages it sent in turn.
type Invocation struct {
	Msg            InternalMessage
	Exitcode       exitcode.ExitCode
	Ret            []byte
	SubInvocations []*Invocation
}

// NewVM creates a new runtime for executing messages.
func NewVM(ctx context.Context, actors []runtime.VMActor, store adt.Store) (*VM, error) {
	impls := make(ActorImplLookup, len(actors))
	for _, a := range actors {
		impls[a.Code()] = a
	}

	tree, err := states.NewTree(store)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create state tree")
	}
	root, err := tree.Flush()
	if err != nil {
		return nil, errors.Wrap(err, "failed to flush empty state tree")
	}
	emptyObject, err := states.EmptyObject(store)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store empty object")
	}

	return &VM{
		ctx:        ctx,
		store:      store,
		actorImpls: impls,
		stateRoot:  root,
		tree:       tree,
		nextID:     abi.ActorID(builtin.FirstNonSingletonActorId),

		emptyObject: emptyObject,
	}, nil
}

func (vm *VM) checkpoint() (cid.Cid, error) {
	root, err := vm.tree.Flush()
	if err != nil {
		return cid.Undef, err
	}
	vm.stateRoot = root
	return root, nil
}

func (vm *VM) rollback(root cid.Cid) error {
	tree, err := states.LoadTree(vm.store, root)
	if err != nil {
		return errors.Wrapf(err, "failed to load state tree at %s", root)
	}
	vm.tree = tree
	return nil
}

// StateRoot returns the root of the last committed state.
func (vm *VM) StateRoot() cid.Cid {
	return vm.stateRoot
}

func (vm *VM) Store() adt.Store {
	return vm.store
}

func (vm *VM) SetEpoch(epoch abi.ChainEpoch) {
	vm.currentEpoch = epoch
}

func (vm *VM) GetEpoch() abi.ChainEpoch {
	return vm.currentEpoch
}

// NormalizeAddress resolves an address of any protocol to an ID address.
func (vm *VM) NormalizeAddress(a addr.Address) (addr.Address, bool) {
	idAddr, found, err := vm.tree.ResolveAddress(a)
	if err != nil {
		panic(errors.Wrapf(err, "failed to resolve %v", a))
	}
	return idAddr, found
}

func (vm *VM) GetActor(a addr.Address) (*states.Actor, bool, error) {
	return vm.tree.GetActor(a)
}

func (vm *VM) GetState(a addr.Address, out runtime.CBORUnmarshaler) error {
	return vm.tree.GetState(a, out)
}

// SetState replaces the state of an existing actor and commits it, bypassing the actor's methods.
func (vm *VM) SetState(a addr.Address, obj runtime.CBORMarshaler) error {
	actor, found, err := vm.GetActor(a)
	if err != nil {
		return err
	}
	if !found {
		return errors.Wrapf(states.ErrActorNotFound, "%v", a)
	}
	if actor.Head, err = vm.store.Put(vm.ctx, obj); err != nil {
		return err
	}
	idAddr, _ := vm.NormalizeAddress(a)
	if err := vm.tree.SetActor(idAddr, actor); err != nil {
		return err
	}
	_, err = vm.checkpoint()
	return err
}

// Invocations returns the invocation trees of every message applied, in order.
func (vm *VM) Invocations() []*Invocation {
	return vm.invocations
}

// Events returns the events of every message that completed successfully, in order of emission.
func (vm *VM) Events() []Event {
	return vm.events
}

func (vm *VM) Logs() []string {
	return vm.logs
}

// CheckStateInvariants checks the committed state of every actor in the VM.
func (vm *VM) CheckStateInvariants() (*builtin.MessageAccumulator, error) {
	tree, err := states.LoadTree(vm.store, vm.stateRoot)
	if err != nil {
		return nil, err
	}
	return states.CheckStateInvariants(tree)
}

// Allocates the next ID address to an actor with the given code. The actor's head is the empty object until constructed.
func (vm *VM) createActor(code cid.Cid) (addr.Address, error) {
	if _, ok := vm.actorImpls[code]; !ok {
		return addr.Undef, errors.Errorf("no actor implementation for code %v", code)
	}
	idAddr, err := addr.NewIDAddress(uint64(vm.nextID))
	if err != nil {
		return addr.Undef, err
	}
	if err := vm.tree.SetActor(idAddr, &states.Actor{Code: code, Head: vm.emptyObject}); err != nil {
		return addr.Undef, err
	}
	vm.nextID++
	return idAddr, nil
}

// CreateActor allocates an ID address for an actor and invokes its constructor from the given caller.
// The actor is removed again if construction fails.
func (vm *VM) CreateActor(from addr.Address, code cid.Cid, params runtime.CBORMarshaler) (addr.Address, MessageResult, error) {
	priorRoot, err := vm.checkpoint()
	if err != nil {
		return addr.Undef, MessageResult{}, err
	}
	idAddr, err := vm.createActor(code)
	if err != nil {
		return addr.Undef, MessageResult{}, err
	}
	ret, err := vm.applyMessage(from, idAddr, builtin.MethodConstructor, params, priorRoot)
	if err != nil {
		return addr.Undef, MessageResult{}, err
	}
	return idAddr, ret, nil
}

// RegisterAddress maps a key address to an existing actor.
func (vm *VM) RegisterAddress(keyAddr, idAddr addr.Address) error {
	if err := vm.tree.RegisterAddress(keyAddr, idAddr); err != nil {
		return err
	}
	_, err := vm.checkpoint()
	return err
}

// ApplyMessage applies the message to the current state.
// State changes and events of a message that does not exit successfully are discarded.
func (vm *VM) ApplyMessage(from, to addr.Address, method abi.MethodNum, params runtime.CBORMarshaler) (MessageResult, error) {
	priorRoot, err := vm.checkpoint()
	if err != nil {
		return MessageResult{}, err
	}
	return vm.applyMessage(from, to, method, params, priorRoot)
}

func (vm *VM) applyMessage(from, to addr.Address, method abi.MethodNum, params runtime.CBORMarshaler, priorRoot cid.Cid) (MessageResult, error) {
	var ok bool
	if from, ok = vm.NormalizeAddress(from); !ok {
		return MessageResult{Code: exitcode.SysErrSenderInvalid}, nil
	}
	if !isSingleton(from) {
		if _, found, err := vm.GetActor(from); err != nil {
			return MessageResult{}, err
		} else if !found {
			// Execution error; sender does not exist at time of message execution.
			return MessageResult{Code: exitcode.SysErrSenderInvalid}, nil
		}
	}

	paramBytes, err := marshal(params)
	if err != nil {
		return MessageResult{}, errors.Wrap(err, "failed to serialize params")
	}

	ic := newInvocationContext(vm, InternalMessage{
		from:   from,
		to:     to,
		method: method,
		params: paramBytes,
	})
	ret, code := ic.invoke()
	vm.invocations = append(vm.invocations, ic.invocation(ret, code))

	if code.IsSuccess() {
		vm.events = append(vm.events, ic.events...)
		if _, err := vm.checkpoint(); err != nil {
			return MessageResult{}, err
		}
	} else if err := vm.rollback(priorRoot); err != nil {
		return MessageResult{}, err
	}
	return MessageResult{Ret: ret, Code: code}, nil
}

func (vm *VM) getActorImpl(code cid.Cid) (runtime.VMActor, bool) {
	impl, ok := vm.actorImpls[code]
	return impl, ok
}

func (vm *VM) log(format string, args ...interface{}) {
	vm.logs = append(vm.logs, fmt.Sprintf(format, args...))
}

func isSingleton(a addr.Address) bool {
	id, err := addr.IDFromAddress(a)
	return err == nil && id < builtin.FirstNonSingletonActorId
}

func marshal(v runtime.CBORMarshaler) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	buf := new(bytes.Buffer)
	if err := v.MarshalCBOR(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
