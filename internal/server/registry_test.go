package server

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryRegisterRejectsDuplicate(t *testing.T) {
	registry := NewRegistry()

	assert.True(t, registry.TryRegister("alice", newMockChannel()))
	assert.False(t, registry.TryRegister("alice", newMockChannel()))
	assert.Equal(t, 1, registry.Len())
}

// TestTryRegisterRace verifies that concurrent handshakes racing on the
// same name resolve to exactly one winner.
func TestTryRegisterRace(t *testing.T) {
	registry := NewRegistry()

	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan int, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if registry.TryRegister("alice", newMockChannel()) {
				wins <- n
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []int
	for n := range wins {
		winners = append(winners, n)
	}
	require.Len(t, winners, 1)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryMapsStayInSync(t *testing.T) {
	registry := NewRegistry()
	require.True(t, registry.TryRegister("alice", newMockChannel()))

	info, ok := registry.MetadataFor("alice")
	require.True(t, ok)
	assert.Equal(t, "alice", info.Username)
	assert.False(t, info.FirstConnection.IsZero())

	registry.Unregister("alice")
	_, ok = registry.MetadataFor("alice")
	assert.False(t, ok)
	assert.Empty(t, registry.Snapshot())
}

func TestUnregisterAbsentIsNoOp(t *testing.T) {
	registry := NewRegistry()
	registry.Unregister("ghost")
	registry.Unregister("ghost")
	assert.Equal(t, 0, registry.Len())
}

func TestSnapshotIsACopy(t *testing.T) {
	registry := NewRegistry()
	require.True(t, registry.TryRegister("alice", newMockChannel()))

	snapshot := registry.Snapshot()
	require.Equal(t, []string{"alice"}, snapshot)

	registry.Unregister("alice")
	assert.Equal(t, []string{"alice"}, snapshot)
}

func TestRecordMessage(t *testing.T) {
	registry := NewRegistry()
	require.True(t, registry.TryRegister("alice", newMockChannel()))

	before, ok := registry.MetadataFor("alice")
	require.True(t, ok)

	registry.RecordMessage("alice")
	registry.RecordMessage("alice")

	after, ok := registry.MetadataFor("alice")
	require.True(t, ok)
	assert.Equal(t, 2, after.SentMessages)
	assert.False(t, after.LastMessage.Before(before.LastMessage))
}

// TestRecordMessageAfterUnregister covers a message racing a disconnect:
// it must be a silent no-op, not an error.
func TestRecordMessageAfterUnregister(t *testing.T) {
	registry := NewRegistry()
	require.True(t, registry.TryRegister("alice", newMockChannel()))
	registry.Unregister("alice")

	registry.RecordMessage("alice")
	_, ok := registry.MetadataFor("alice")
	assert.False(t, ok)
}

func TestConnectionsSnapshot(t *testing.T) {
	registry := NewRegistry()
	for i := 0; i < 3; i++ {
		require.True(t, registry.TryRegister(fmt.Sprintf("user-%d", i), newMockChannel()))
	}

	conns := registry.Connections()
	assert.Len(t, conns, 3)

	registry.Unregister("user-0")
	assert.Len(t, conns, 3)
	assert.Equal(t, 2, registry.Len())
}
