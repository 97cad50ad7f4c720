package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/gowhisper/pkg/model"
	"github.com/NicolasHaas/gowhisper/pkg/protocol"
)

func TestLocalValidationSkipsNetwork(t *testing.T) {
	spy := &spyTransport{}
	c := New(spy, nil, testOptions())
	ctx := testCtx(t)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"register blank user", func() error { return c.Register(ctx, "  ", "pw") }, ErrEmptyField},
		{"register blank password", func() error { return c.Register(ctx, "alice", "   ") }, ErrEmptyField},
		{"login blank", func() error { return c.Login(ctx, "", "pw") }, ErrEmptyField},
		{"logout", func() error { return c.Logout(ctx) }, ErrNotLoggedIn},
		{"add contact", func() error { return c.AddContact(ctx, "bob") }, ErrNotLoggedIn},
		{"whisper", func() error { return c.Whisper(ctx, "bob", "hi") }, ErrNotLoggedIn},
		{"create group", func() error { return c.CreateGroup(ctx, "g") }, ErrNotLoggedIn},
		{"join group", func() error { return c.JoinGroup(ctx, "g") }, ErrNotLoggedIn},
		{"message group", func() error { return c.MessageGroup(ctx, "g", "hi") }, ErrNotLoggedIn},
		{"voice message", func() error { return c.SendVoiceMessage(ctx, "bob") }, ErrNotLoggedIn},
		{"call", func() error { return c.StartCall("g") }, ErrNotLoggedIn},
		{"hangup", c.StopCall, ErrNoCall},
		{"stop recording", func() error { _, err := c.StopRecording(); return err }, ErrNoRecording},
		{"play", func() error { return c.PlayVoiceMessage(ctx) }, ErrNoRecording},
		{"record without audio", c.StartRecording, ErrNoAudio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.want)
		})
	}

	// pretend a session exists
	c.mu.Lock()
	c.username, c.token = "alice", "tok"
	c.mu.Unlock()

	loggedIn := []struct {
		name string
		run  func() error
		want error
	}{
		{"login twice", func() error { return c.Login(ctx, "alice", "pw") }, ErrAlreadyLoggedIn},
		{"whisper blank text", func() error { return c.Whisper(ctx, "bob", "   ") }, ErrEmptyField},
		{"whisper blank recipient", func() error { return c.Whisper(ctx, "", "hi") }, ErrEmptyField},
		{"add blank contact", func() error { return c.AddContact(ctx, " ") }, ErrEmptyField},
		{"message blank group", func() error { return c.MessageGroup(ctx, "", "hi") }, ErrEmptyField},
		{"voice without recording", func() error { return c.SendVoiceMessage(ctx, "bob") }, ErrNoRecording},
		{"call without audio", func() error { return c.StartCall("g") }, ErrNoAudio},
	}
	for _, tt := range loggedIn {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.want)
		})
	}

	assert.Zero(t, spy.sentCount(), "local failures must not reach the transport")
}

func TestSecondRequestInFlight(t *testing.T) {
	spy := &spyTransport{}
	c := New(spy, nil, testOptions())
	c.mu.Lock()
	c.username, c.token = "alice", "tok"
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.Whisper(context.Background(), "bob", "first") }()
	require.Eventually(t, func() bool { return c.mailbox.Pending() == protocol.ActionWhisper },
		time.Second, time.Millisecond)

	assert.ErrorIs(t, c.CreateGroup(context.Background(), "g"), ErrRequestInFlight)
	assert.Equal(t, 1, spy.sentCount())

	// an unrelated response does not release the waiter
	spy.push((&protocol.Response{Action: protocol.ActionCallData, Status: model.StatusSuccess}).Encode())
	spy.push((&protocol.Response{Action: protocol.ActionWhisper, Status: model.StatusUserNotConnected}).Encode())

	select {
	case err := <-done:
		assert.Equal(t, model.StatusUserNotConnected, StatusOf(err))
	case <-time.After(2 * time.Second):
		t.Fatal("whisper never returned")
	}
	assert.EqualValues(t, 1, c.mailbox.Arrivals())
}

func TestTransportLossWakesWaiter(t *testing.T) {
	spy := &spyTransport{}
	c := New(spy, nil, testOptions())
	disconnected := make(chan struct{})
	c.OnDisconnect = func() { close(disconnected) }

	done := make(chan error, 1)
	go func() { done <- c.Register(context.Background(), "alice", "pw") }()
	require.Eventually(t, func() bool { return c.mailbox.Pending() != "" }, time.Second, time.Millisecond)
	require.NoError(t, spy.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("register never returned")
	}
	<-disconnected
	assert.ErrorIs(t, c.Register(context.Background(), "alice", "pw"), ErrClosed)
	assert.NoError(t, c.Close(context.Background()))
}

func TestLateLoginStillOpensSession(t *testing.T) {
	spy := &spyTransport{}
	c := New(spy, nil, testOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Login(ctx, "alice", "pw"), context.DeadlineExceeded)
	assert.False(t, c.LoggedIn())

	spy.push((&protocol.Response{
		Action: protocol.ActionLogin, Status: model.StatusSuccess, Username: "alice", Token: "tok",
	}).Encode())
	require.Eventually(t, c.LoggedIn, time.Second, time.Millisecond)
	assert.Equal(t, "alice", c.Username())
	assert.ErrorIs(t, c.Login(context.Background(), "alice", "pw"), ErrAlreadyLoggedIn)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, model.StatusSuccess, StatusOf(nil))
	assert.Equal(t, model.StatusGroupDoesNotExist,
		StatusOf(&StatusError{Action: protocol.ActionJoinGroup, Status: model.StatusGroupDoesNotExist}))
	assert.Equal(t, model.StatusInternalError, StatusOf(errors.New("boom")))
	assert.Equal(t, "client: join_group: GROUP_DOES_NOT_EXIST",
		(&StatusError{Action: protocol.ActionJoinGroup, Status: model.StatusGroupDoesNotExist}).Error())
}

func TestSessionAgainstServer(t *testing.T) {
	mem := startServer(t)
	ctx := testCtx(t)
	alice, bob := connect(t, mem, nil), connect(t, mem, nil)

	whispers := make(chan string, 4)
	bob.OnWhisper = func(sender, text string) { whispers <- sender + ": " + text }
	groupMsgs := make(chan string, 4)
	bob.OnGroupMessage = func(group, sender, text string) { groupMsgs <- group + "/" + sender + ": " + text }
	aliceEcho := make(chan string, 4)
	alice.OnGroupMessage = func(group, sender, text string) { aliceEcho <- text }

	require.NoError(t, alice.Register(ctx, "alice", "p"))
	require.NoError(t, bob.Register(ctx, "bob", "q"))
	assert.Equal(t, model.StatusUserAlreadyExist, StatusOf(bob.Register(ctx, "bob", "q")))

	assert.Equal(t, model.StatusUserWrongPassword, StatusOf(alice.Login(ctx, "alice", "nope")))
	assert.False(t, alice.LoggedIn())

	require.NoError(t, alice.Login(ctx, " alice ", "p"))
	assert.Equal(t, "alice", alice.Username(), "state is stored before Login returns")
	assert.ErrorIs(t, alice.Login(ctx, "alice", "p"), ErrAlreadyLoggedIn)
	require.NoError(t, bob.Login(ctx, "bob", "q"))

	require.NoError(t, alice.AddContact(ctx, "bob"))
	assert.Equal(t, model.StatusUserDoesNotExist, StatusOf(alice.AddContact(ctx, "ghost")))

	require.NoError(t, alice.Whisper(ctx, "bob", "  hello bob  "))
	assert.Equal(t, "alice: hello bob", receive(t, whispers))

	require.NoError(t, alice.CreateGroup(ctx, "team"))
	require.NoError(t, bob.JoinGroup(ctx, "team"))
	assert.Equal(t, model.StatusGroupMemberAlreadyExist, StatusOf(bob.JoinGroup(ctx, "team")))
	require.NoError(t, alice.MessageGroup(ctx, "team", "standup"))
	assert.Equal(t, "team/alice: standup", receive(t, groupMsgs))

	require.NoError(t, bob.MessageGroup(ctx, "team", "ack"))
	assert.Equal(t, "ack", receive(t, aliceEcho))
	select {
	case msg := <-groupMsgs:
		t.Fatalf("bob saw his own message echoed: %q", msg)
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, bob.Logout(ctx))
	assert.False(t, bob.LoggedIn())
	assert.Equal(t, model.StatusUserNotConnected, StatusOf(alice.Whisper(ctx, "bob", "gone?")))
}

func TestCloseLogsOut(t *testing.T) {
	mem := startServer(t)
	ctx := testCtx(t)
	alice := New(mem.Dial(), nil, testOptions())
	bob := connect(t, mem, nil)

	require.NoError(t, alice.Register(ctx, "alice", "p"))
	require.NoError(t, alice.Login(ctx, "alice", "p"))
	require.NoError(t, bob.Register(ctx, "bob", "q"))
	require.NoError(t, bob.Login(ctx, "bob", "q"))
	require.NoError(t, bob.Whisper(ctx, "alice", "still there?"))

	require.NoError(t, alice.Close(ctx))
	assert.False(t, alice.LoggedIn())
	assert.Equal(t, model.StatusUserNotConnected, StatusOf(bob.Whisper(ctx, "alice", "hello?")))
}

func TestVoiceMessageAgainstServer(t *testing.T) {
	mem := startServer(t)
	ctx := testCtx(t)
	aliceAudio, bobAudio := &fakeBackend{}, &fakeBackend{}
	alice, bob := connect(t, mem, aliceAudio), connect(t, mem, bobAudio)

	notified := make(chan *VoiceMessage, 1)
	bob.OnVoiceMessage = func(msg *VoiceMessage) { notified <- msg }

	for _, u := range []struct {
		c    *Client
		name string
	}{{alice, "alice"}, {bob, "bob"}} {
		require.NoError(t, u.c.Register(ctx, u.name, "pw"))
		require.NoError(t, u.c.Login(ctx, u.name, "pw"))
	}

	require.NoError(t, alice.StartRecording())
	assert.ErrorIs(t, alice.StartRecording(), ErrRecording)
	mic := aliceAudio.capturer(t)
	mic.emit([]int16{1, 2, 3, 4})
	mic.emit([]int16{5, 6, 7, 8})
	rec, err := alice.StopRecording()
	require.NoError(t, err)
	assert.True(t, mic.isStopped())
	assert.Equal(t, []int16{1, 2, 3, 4, 5, 6, 7, 8}, rec.Samples)
	assert.Equal(t, time.Millisecond, rec.Duration())

	require.NoError(t, alice.SendVoiceMessage(ctx, "bob"))

	var got *VoiceMessage
	select {
	case got = <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("no voice message")
	}
	want := &VoiceMessage{Sender: "alice", Channels: 1, SampleRate: 8000, Samples: []int16{1, 2, 3, 4, 5, 6, 7, 8}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("voice message mismatch (-want +got):\n%s", diff)
	}
	assert.Same(t, got, bob.LastVoiceMessage())

	require.NoError(t, bob.PlayVoiceMessage(ctx))
	players := bobAudio.playerList()
	require.Len(t, players, 1)
	assert.Equal(t, want.Samples, players[0].audible())
	assert.True(t, players[0].isStopped())
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("nothing received")
		return ""
	}
}
