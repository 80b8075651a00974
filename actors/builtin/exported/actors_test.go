package exported_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/vesting-actors/actors/builtin"
	"github.com/filecoin-project/vesting-actors/actors/builtin/exported"
	"github.com/filecoin-project/vesting-actors/support/mock"
)

func TestKnownActors(t *testing.T) {
	actors := exported.BuiltinActors()
	require.Len(t, actors, 3)

	seen := make(map[string]bool)
	for _, act := range actors {
		code := act.Code()
		assert.True(t, builtin.IsBuiltinActor(code), "unknown code %v", code)
		name := builtin.ActorNameByCode(code)
		assert.False(t, seen[name], "duplicate actor %s", name)
		seen[name] = true

		assert.False(t, act.IsSingleton())
		assert.NotNil(t, act.State())
		mock.CheckActorExports(t, act)
	}
	assert.True(t, seen["vestingactors/1/account"])
	assert.True(t, seen["vestingactors/1/token"])
	assert.True(t, seen["vestingactors/1/vesting"])
}
