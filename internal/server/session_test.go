package server

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netchat-io/netchat/internal/protocol"
)

type sessionFixture struct {
	registry  *Registry
	notifier  *PresenceNotifier
	scheduler *pollScheduler
}

func newSessionFixture() *sessionFixture {
	return &sessionFixture{
		registry:  NewRegistry(),
		notifier:  NewPresenceNotifier(),
		scheduler: newPollScheduler(time.Second, 2),
	}
}

// join registers the user and builds its session the way the accept path
// does, with a generous rate limit so throttling tests opt in explicitly.
func (f *sessionFixture) join(t *testing.T, username string) (*session, *mockChannel) {
	t.Helper()

	mc := newMockChannel()
	require.True(t, f.registry.TryRegister(username, mc))

	sess := &session{
		username:    username,
		ch:          mc,
		registry:    f.registry,
		broadcaster: NewBroadcaster(f.registry, log.New(io.Discard, "", 0)),
		notifier:    f.notifier,
		scheduler:   f.scheduler,
		limiter:     newMessageThrottle(100, time.Second),
		logger:      log.New(io.Discard, "", 0),
	}
	sess.taskID = f.scheduler.Schedule(sess.tick)
	return sess, mc
}

func TestTickIsNoOpWhenIdle(t *testing.T) {
	f := newSessionFixture()
	sess, mc := f.join(t, "alice")

	sess.tick()

	assert.Equal(t, 0, len(mc.toClient))
	assert.Equal(t, 1, f.registry.Len())
}

func TestTickBroadcastsTextToEveryone(t *testing.T) {
	f := newSessionFixture()
	alice, aliceCh := f.join(t, "alice")
	_, bobCh := f.join(t, "bob")

	aliceCh.clientSend(protocol.NewText(protocol.KindTextMessage, "hi all"))
	alice.tick()

	want := protocol.FormatUserMessage("alice", "hi all")
	for name, mc := range map[string]*mockChannel{"alice": aliceCh, "bob": bobCh} {
		env, ok := mc.clientRecv(time.Second)
		require.True(t, ok, "%s received nothing", name)
		assert.Equal(t, protocol.KindTextMessage, env.Kind)
		assert.Equal(t, want, env.Text)
	}

	info, ok := f.registry.MetadataFor("alice")
	require.True(t, ok)
	assert.Equal(t, 1, info.SentMessages)
}

func TestTickDropsBlankText(t *testing.T) {
	f := newSessionFixture()
	alice, aliceCh := f.join(t, "alice")

	aliceCh.clientSend(protocol.NewText(protocol.KindTextMessage, "   \t  "))
	alice.tick()

	assert.Equal(t, 0, len(aliceCh.toClient))
	info, ok := f.registry.MetadataFor("alice")
	require.True(t, ok)
	assert.Equal(t, 0, info.SentMessages)
}

func TestTickIgnoresUnknownKinds(t *testing.T) {
	f := newSessionFixture()
	alice, aliceCh := f.join(t, "alice")

	aliceCh.clientSend(protocol.NewSignal(protocol.KindRequestUsername))
	alice.tick()

	assert.Equal(t, 0, len(aliceCh.toClient))
	assert.Equal(t, 1, f.registry.Len())
	assert.False(t, alice.closed.Load())
}

func TestDisconnectAnnouncesThenCleansUp(t *testing.T) {
	f := newSessionFixture()
	observer := &recordingObserver{}
	f.notifier.Subscribe(observer)

	alice, aliceCh := f.join(t, "alice")
	_, bobCh := f.join(t, "bob")
	require.Equal(t, 2, f.scheduler.Len())

	aliceCh.clientSend(protocol.NewSignal(protocol.KindDisconnect))
	alice.tick()

	// The departure notice goes out while alice is still registered, so she
	// is told as well.
	env, ok := aliceCh.clientRecv(time.Second)
	require.True(t, ok)
	assert.Equal(t, protocol.KindUserDeleted, env.Kind)
	assert.Equal(t, "alice", env.Text)

	env, ok = bobCh.clientRecv(time.Second)
	require.True(t, ok)
	assert.Equal(t, protocol.KindUserDeleted, env.Kind)

	assert.Equal(t, 1, f.registry.Len())
	assert.Equal(t, 1, f.scheduler.Len())
	assert.True(t, aliceCh.closed.Load())
	assert.Equal(t, []string{"removed:alice"}, observer.seen())
}

func TestTickTearsDownOnReceiveFailure(t *testing.T) {
	f := newSessionFixture()
	alice, aliceCh := f.join(t, "alice")

	aliceCh.Close()
	alice.tick()

	assert.Equal(t, 0, f.registry.Len())
	assert.Equal(t, 0, f.scheduler.Len())
	assert.True(t, alice.closed.Load())
}

func TestTeardownIsIdempotent(t *testing.T) {
	f := newSessionFixture()
	observer := &recordingObserver{}
	f.notifier.Subscribe(observer)

	alice, _ := f.join(t, "alice")
	alice.teardown()
	alice.teardown()

	assert.Equal(t, 0, f.registry.Len())
	assert.Equal(t, []string{"removed:alice"}, observer.seen())
}

func TestTickAfterTeardownIsNoOp(t *testing.T) {
	f := newSessionFixture()
	alice, aliceCh := f.join(t, "alice")

	alice.teardown()
	aliceCh.fromClient <- protocol.NewText(protocol.KindTextMessage, "too late")
	alice.tick()

	assert.Equal(t, 0, len(aliceCh.toClient))
}

func TestMessageFloodThrottled(t *testing.T) {
	f := newSessionFixture()
	alice, aliceCh := f.join(t, "alice")
	alice.limiter = newMessageThrottle(2, time.Hour)

	for i := 0; i < 5; i++ {
		aliceCh.clientSend(protocol.NewText(protocol.KindTextMessage, "spam"))
		alice.tick()
	}

	assert.Equal(t, 2, len(aliceCh.toClient))
	info, ok := f.registry.MetadataFor("alice")
	require.True(t, ok)
	assert.Equal(t, 2, info.SentMessages)
}
