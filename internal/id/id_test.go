package id

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	for range 1000 {
		id, err := Generate(PrefixSSEClient)
		require.NoError(t, err)
		assert.False(t, ids[id], "duplicate id %s", id)
		ids[id] = true
	}
}

func TestGenerate_Format(t *testing.T) {
	for _, prefix := range []string{PrefixSSEClient, PrefixPageClient, "custom"} {
		t.Run(prefix, func(t *testing.T) {
			id, err := Generate(prefix)
			require.NoError(t, err)

			rest, ok := strings.CutPrefix(id, prefix+"-")
			require.True(t, ok)
			assert.Len(t, rest, 21)
		})
	}
}

func TestMustGenerate(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.True(t, strings.HasPrefix(MustGenerate(PrefixPageClient), "page-"))
	})
}

func TestWorkerID(t *testing.T) {
	id := WorkerID()
	rest, ok := strings.CutPrefix(id, "sw-")
	require.True(t, ok)
	_, err := uuid.Parse(rest)
	assert.NoError(t, err)
	assert.NotEqual(t, id, WorkerID())
}

func TestWorkerVersion(t *testing.T) {
	v := WorkerVersion("v1")
	require.True(t, strings.HasPrefix(v, "v1-"))
	assert.Len(t, v, len("v1-")+8)
	assert.NotEqual(t, v, WorkerVersion("v1"))

	assert.Len(t, WorkerVersion(""), 8)
}
