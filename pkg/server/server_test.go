package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/gowhisper/pkg/model"
	"github.com/NicolasHaas/gowhisper/pkg/protocol"
	"github.com/NicolasHaas/gowhisper/pkg/transport"
)

// startServer runs a server on the memory transport until the test ends.
func startServer(t *testing.T, cfg Config) (*Server, *transport.MemoryServer) {
	t.Helper()
	mem := transport.NewMemory()
	srv, err := New(cfg, Dependencies{Transport: mem})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return srv, mem
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MetricsAddr = ""
	cfg.SeedDemo = false
	return cfg
}

// next waits for the next server message on c.
func next(t *testing.T, c *transport.MemoryClient) (*protocol.Response, protocol.Update) {
	t.Helper()
	var (
		data []byte
		ok   bool
		err  error
	)
	require.Eventually(t, func() bool {
		data, ok, err = c.Poll()
		return ok || err != nil
	}, 2*time.Second, time.Millisecond)
	require.NoError(t, err)

	resp, u, err := protocol.ParseServerMessage(data)
	require.NoError(t, err)
	return resp, u
}

func call(t *testing.T, c *transport.MemoryClient, req protocol.Request) *protocol.Response {
	t.Helper()
	require.NoError(t, c.Send(protocol.EncodeRequest(req)))
	resp, u := next(t, c)
	require.Nil(t, u, "expected a response, got update %T", u)
	require.Equal(t, req.Action(), resp.Action)
	return resp
}

func TestServerScenario(t *testing.T) {
	srv, mem := startServer(t, testConfig())
	alice, bob := mem.Dial(), mem.Dial()

	assert.Equal(t, model.StatusSuccess, call(t, alice, &protocol.RegisterRequest{Username: "alice", Password: "p"}).Status)
	assert.Equal(t, model.StatusSuccess, call(t, bob, &protocol.RegisterRequest{Username: "bob", Password: "q"}).Status)

	la := call(t, alice, &protocol.LoginRequest{Username: "alice", Password: "p"})
	require.Equal(t, model.StatusSuccess, la.Status)
	lb := call(t, bob, &protocol.LoginRequest{Username: "bob", Password: "q"})
	require.Equal(t, model.StatusSuccess, lb.Status)
	aliceCreds := protocol.Credentials{Username: "alice", Token: la.Token}

	resp := call(t, alice, &protocol.AddContactRequest{
		Credentials: protocol.Credentials{Username: "alice", Token: "t_bad"},
		Contact:     "bob",
	})
	assert.Equal(t, model.StatusUserIncorrectToken, resp.Status)
	contacts, err := srv.Directory().Contacts("alice")
	require.NoError(t, err)
	assert.Empty(t, contacts)

	resp = call(t, alice, &protocol.AddContactRequest{Credentials: aliceCreds, Contact: "bob"})
	assert.Equal(t, model.StatusSuccess, resp.Status)

	resp = call(t, alice, &protocol.WhisperRequest{Credentials: aliceCreds, Recipient: "bob", Content: "hey"})
	assert.Equal(t, model.StatusSuccess, resp.Status)
	_, u := next(t, bob)
	assert.Equal(t, &protocol.WhisperUpdate{Sender: "alice", Content: "hey"}, u)

	// a closed connection ends bob's session
	require.NoError(t, bob.Close())
	require.Eventually(t, func() bool { return !srv.Registry().IsConnected("bob") }, 2*time.Second, time.Millisecond)

	resp = call(t, alice, &protocol.WhisperRequest{Credentials: aliceCreds, Recipient: "bob", Content: "still there?"})
	assert.Equal(t, model.StatusUserNotConnected, resp.Status)

	snap := srv.Metrics().Snapshot()
	assert.EqualValues(t, 1, snap.Sessions)
	assert.EqualValues(t, 2, snap.Registrations)
	assert.EqualValues(t, 1, snap.Disconnects)
}

func TestServerDemoSeed(t *testing.T) {
	cfg := testConfig()
	cfg.SeedDemo = true
	cfg.Backend = BackendSQLite
	_, mem := startServer(t, cfg)

	c := mem.Dial()
	resp := call(t, c, &protocol.LoginRequest{Username: "edoren", Password: "123"})
	assert.Equal(t, model.StatusSuccess, resp.Status)
	assert.Equal(t, "edoren", resp.Username)
}

func TestServerStopsOnTransportClose(t *testing.T) {
	mem := transport.NewMemory()
	srv, err := New(testConfig(), Dependencies{Transport: mem})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()
	require.NoError(t, mem.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after transport close")
	}
}

func TestOpenDirectory(t *testing.T) {
	cfg := testConfig()
	cfg.Backend = "postgres"
	_, err := OpenDirectory(cfg)
	assert.Error(t, err)

	cfg.Backend = BackendSQLite
	cfg.HashPasswords = true
	dir, err := OpenDirectory(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dir.Close() })

	code, err := dir.Register("alice", "secret")
	require.NoError(t, err)
	require.Equal(t, model.StatusSuccess, code)
	code, err = dir.Authenticate("alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, code)
}

func TestSeedMissingFile(t *testing.T) {
	cfg := testConfig()
	cfg.SeedFile = "does-not-exist.yaml"
	_, err := New(cfg, Dependencies{Transport: transport.NewMemory()})
	assert.Error(t, err)
}
