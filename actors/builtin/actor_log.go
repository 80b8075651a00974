package builtin

import (
	"sync"

	rtt "github.com/filecoin-project/go-state-types/rt"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/vesting-actors/actors/runtime"
)

// Log level overrides for actor code, keyed by code CID.
var actorLogLevels = struct {
	sync.RWMutex
	levels map[cid.Cid]rtt.LogLevel
}{levels: make(map[cid.Cid]rtt.LogLevel)}

// SetActorsLogLevel makes every routine message of the given actors log at level.
func SetActorsLogLevel(level rtt.LogLevel, actors ...runtime.VMActor) {
	actorLogLevels.Lock()
	defer actorLogLevels.Unlock()

	for _, actor := range actors {
		actorLogLevels.levels[actor.Code()] = level
	}
}

// ResetActorsLogLevel removes any override for the given actors.
func ResetActorsLogLevel(actors ...runtime.VMActor) {
	actorLogLevels.Lock()
	defer actorLogLevels.Unlock()

	for _, actor := range actors {
		delete(actorLogLevels.levels, actor.Code())
	}
}

// GetActorLogLevel returns the level an actor logs routine messages at, or defValue if not overridden.
func GetActorLogLevel(actor runtime.VMActor, defValue rtt.LogLevel) rtt.LogLevel {
	actorLogLevels.RLock()
	defer actorLogLevels.RUnlock()

	if level, ok := actorLogLevels.levels[actor.Code()]; ok {
		return level
	}
	return defValue
}
