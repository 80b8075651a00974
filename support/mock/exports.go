package mock

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	runtime "github.com/filecoin-project/vesting-actors/actors/runtime"
)

// CheckActorExports checks that every exported method of an actor has the signature
// `func(runtime.Runtime, *Params) Return`, and that a constructor is exported.
func CheckActorExports(t *testing.T, act runtime.VMActor) {
	exports := act.Exports()
	require.Greater(t, len(exports), 1, "actor exports no constructor")
	require.Nil(t, exports[0], "method number 0 is reserved for plain sends")
	require.NotNil(t, exports[1], "actor exports no constructor")

	for i, m := range exports {
		if m == nil {
			continue
		}
		meth := reflect.TypeOf(m)
		require.Equal(t, reflect.Func, meth.Kind(), "export %d is not a function", i)
		require.Equal(t, 2, meth.NumIn(), "export %d must have two parameters", i)
		require.Equal(t, typeOfRuntimeInterface, meth.In(0), "export %d first parameter must be runtime", i)
		require.Equal(t, reflect.Ptr, meth.In(1).Kind(), "export %d second parameter must be a pointer", i)
		require.True(t, meth.In(1).Implements(typeOfCborUnmarshaler), "export %d params must be CBOR-unmarshalable", i)
		require.Equal(t, 1, meth.NumOut(), "export %d must return a single value", i)
		require.True(t, meth.Out(0).Implements(typeOfCborMarshaler), "export %d return must be CBOR-marshalable", i)
	}
}
