// Package client implements the gowhisper client: local session state,
// request/response pairing over a single-slot mailbox, the background
// response listener, and the record and call audio pipelines.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NicolasHaas/gowhisper/pkg/audio"
	"github.com/NicolasHaas/gowhisper/pkg/model"
	"github.com/NicolasHaas/gowhisper/pkg/protocol"
	"github.com/NicolasHaas/gowhisper/pkg/transport"
)

var (
	ErrNotLoggedIn     = errors.New("client: not logged in")
	ErrAlreadyLoggedIn = errors.New("client: already logged in")
	ErrEmptyField      = errors.New("client: empty field")
	ErrRequestInFlight = errors.New("client: another request is in flight")
	ErrNoRecording     = errors.New("client: no recording")
	ErrRecording       = errors.New("client: already recording")
	ErrCallActive      = errors.New("client: call already active")
	ErrNoCall          = errors.New("client: no active call")
	ErrNoAudio         = errors.New("client: no audio backend")
	ErrClosed          = errors.New("client: closed")
)

// StatusError is returned by a command whose response carried a failure
// status.
type StatusError struct {
	Action protocol.Action
	Status model.StatusCode
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: %s: %s", e.Action, e.Status)
}

// StatusOf extracts the server status from err: Success for nil, the
// carried code for a *StatusError, InternalError otherwise.
func StatusOf(err error) model.StatusCode {
	if err == nil {
		return model.StatusSuccess
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return model.StatusInternalError
}

// Options tunes a Client.
type Options struct {
	PollInterval  time.Duration // listener and call drain idle sleep (default 5ms)
	Format        audio.Format  // capture format for calls and recordings
	GateThreshold float64       // RMS silence gate for call audio, 0 disables
}

// DefaultOptions returns the default tuning.
func DefaultOptions() Options {
	return Options{
		PollInterval: 5 * time.Millisecond,
		Format:       audio.DefaultFormat,
	}
}

// VoiceMessage is a recorded clip, either pending to send or last received.
type VoiceMessage struct {
	Sender     string
	Channels   int
	SampleRate int
	Samples    []int16
}

// Duration returns the playing time of the clip.
func (v *VoiceMessage) Duration() time.Duration {
	if v.Channels <= 0 || v.SampleRate <= 0 {
		return 0
	}
	frames := len(v.Samples) / v.Channels
	return time.Duration(frames) * time.Second / time.Duration(v.SampleRate)
}

// Client is one connection to a gowhisper server.
type Client struct {
	opts    Options
	tr      transport.Client
	backend audio.Backend

	mu        sync.RWMutex
	username  string
	token     string
	lastVoice *VoiceMessage

	mailbox      *Mailbox
	running      atomic.Bool
	listenerDone chan struct{}

	recMu     sync.Mutex
	recorder  audio.Capturer
	recording *SampleQueue
	pending   *VoiceMessage

	callMu sync.Mutex
	call   *call

	// Callbacks, invoked from the listener goroutine (OnCallRejected from the
	// goroutine that hangs up). Set before the first message can arrive
	// (i.e. right after New).
	OnWhisper      func(sender, text string)
	OnGroupMessage func(group, sender, text string)
	OnVoiceMessage func(msg *VoiceMessage)
	OnCallRejected func(group string, status model.StatusCode)
	OnDisconnect   func()
}

// New wraps a connected transport and starts the response listener.
// backend may be nil when no audio commands will be used.
func New(tr transport.Client, backend audio.Backend, opts Options) *Client {
	def := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.Format == (audio.Format{}) {
		opts.Format = def.Format
	}

	c := &Client{
		opts:         opts,
		tr:           tr,
		backend:      backend,
		mailbox:      NewMailbox(),
		listenerDone: make(chan struct{}),
	}
	c.running.Store(true)
	go c.listen()
	return c
}

// Dial connects to cfg.Addr, opens the configured audio backend and returns
// a running client.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	tr, err := transport.Dial(ctx, cfg.Transport, cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}
	backend, err := audio.Open(cfg.AudioBackend, cfg.InputDevice, cfg.OutputDevice)
	if err != nil {
		slog.Warn("audio unavailable, continuing without audio", "err", err)
		backend = nil
	}
	return New(tr, backend, cfg.Options()), nil
}

// Username returns the logged-in user, or "".
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// LoggedIn reports whether a session token is held.
func (c *Client) LoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username != ""
}

// LastVoiceMessage returns the most recently received voice message.
func (c *Client) LastVoiceMessage() *VoiceMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastVoice
}

func (c *Client) credentials() (protocol.Credentials, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.username == "" {
		return protocol.Credentials{}, ErrNotLoggedIn
	}
	return protocol.Credentials{Username: c.username, Token: c.token}, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if err := required("username", username, "password", strings.TrimSpace(password)); err != nil {
		return err
	}
	return c.roundTrip(ctx, &protocol.RegisterRequest{Username: username, Password: password})
}

// Login opens a session. On success the listener stores the token before
// Login returns. If ctx ends first, a success that arrives later still opens
// the session, so check LoggedIn after a cancelled Login.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if c.LoggedIn() {
		return ErrAlreadyLoggedIn
	}
	username = strings.TrimSpace(username)
	if err := required("username", username, "password", strings.TrimSpace(password)); err != nil {
		return err
	}
	return c.roundTrip(ctx, &protocol.LoginRequest{Username: username, Password: password})
}

// Logout ends this connection's part of the session, hanging up any call
// first.
func (c *Client) Logout(ctx context.Context) error {
	creds, err := c.credentials()
	if err != nil {
		return err
	}
	if err := c.StopCall(); err != nil && !errors.Is(err, ErrNoCall) {
		slog.Warn("stop call before logout", "err", err)
	}
	return c.roundTrip(ctx, &protocol.LogoutRequest{Username: creds.Username})
}

// AddContact adds contact to the logged-in user's contacts.
func (c *Client) AddContact(ctx context.Context, contact string) error {
	creds, err := c.credentials()
	if err != nil {
		return err
	}
	contact = strings.TrimSpace(contact)
	if err := required("contact", contact); err != nil {
		return err
	}
	return c.roundTrip(ctx, &protocol.AddContactRequest{Credentials: creds, Contact: contact})
}

// Whisper sends a private text message.
func (c *Client) Whisper(ctx context.Context, recipient, text string) error {
	creds, err := c.credentials()
	if err != nil {
		return err
	}
	recipient, text = strings.TrimSpace(recipient), strings.TrimSpace(text)
	if err := required("recipient", recipient, "message", text); err != nil {
		return err
	}
	return c.roundTrip(ctx, &protocol.WhisperRequest{Credentials: creds, Recipient: recipient, Content: text})
}

// CreateGroup creates a group owned by the logged-in user.
func (c *Client) CreateGroup(ctx context.Context, group string) error {
	creds, err := c.credentials()
	if err != nil {
		return err
	}
	group = strings.TrimSpace(group)
	if err := required("group", group); err != nil {
		return err
	}
	return c.roundTrip(ctx, &protocol.CreateGroupRequest{Credentials: creds, Group: group})
}

// JoinGroup adds the logged-in user to group.
func (c *Client) JoinGroup(ctx context.Context, group string) error {
	creds, err := c.credentials()
	if err != nil {
		return err
	}
	group = strings.TrimSpace(group)
	if err := required("group", group); err != nil {
		return err
	}
	return c.roundTrip(ctx, &protocol.JoinGroupRequest{Credentials: creds, Group: group})
}

// MessageGroup sends text to every connected member of group.
func (c *Client) MessageGroup(ctx context.Context, group, text string) error {
	creds, err := c.credentials()
	if err != nil {
		return err
	}
	group, text = strings.TrimSpace(group), strings.TrimSpace(text)
	if err := required("group", group, "message", text); err != nil {
		return err
	}
	return c.roundTrip(ctx, &protocol.GroupMessageRequest{Credentials: creds, Group: group, Content: text})
}

// SendVoiceMessage sends the finished recording to recipient. The recording
// is kept and may be sent again.
func (c *Client) SendVoiceMessage(ctx context.Context, recipient string) error {
	creds, err := c.credentials()
	if err != nil {
		return err
	}
	recipient = strings.TrimSpace(recipient)
	if err := required("recipient", recipient); err != nil {
		return err
	}

	c.recMu.Lock()
	msg := c.pending
	c.recMu.Unlock()
	if msg == nil {
		return ErrNoRecording
	}

	return c.roundTrip(ctx, &protocol.VoiceMessageRequest{
		Credentials: creds,
		Recipient:   recipient,
		Channels:    msg.Channels,
		SampleRate:  msg.SampleRate,
		Samples:     msg.Samples,
	})
}

// roundTrip sends req and waits for its response.
func (c *Client) roundTrip(ctx context.Context, req protocol.Request) error {
	if !c.running.Load() {
		return ErrClosed
	}
	if err := c.mailbox.Open(req.Action()); err != nil {
		return err
	}
	if err := c.tr.Send(protocol.EncodeRequest(req)); err != nil {
		c.mailbox.Cancel()
		return fmt.Errorf("client: send %s: %w", req.Action(), err)
	}

	resp, err := c.mailbox.Wait(ctx)
	if err != nil {
		return fmt.Errorf("client: %s: %w", req.Action(), err)
	}
	if !resp.Status.OK() {
		return &StatusError{Action: resp.Action, Status: resp.Status}
	}
	return nil
}

// send writes req without waiting; its response is only logged.
func (c *Client) send(req protocol.Request) error {
	if err := c.tr.Send(protocol.EncodeRequest(req)); err != nil {
		return fmt.Errorf("client: send %s: %w", req.Action(), err)
	}
	return nil
}

// Close logs out if needed, stops audio, joins the listener and closes the
// transport. ctx bounds the wait for the logout response.
func (c *Client) Close(ctx context.Context) error {
	if c.LoggedIn() && c.running.Load() {
		if err := c.Logout(ctx); err != nil {
			slog.Warn("logout on close failed", "err", err)
		}
	}
	if err := c.StopCall(); err != nil && !errors.Is(err, ErrNoCall) {
		slog.Warn("stop call on close", "err", err)
	}
	c.abortRecording()

	c.running.Store(false)
	<-c.listenerDone
	c.mailbox.Close()

	err := c.tr.Close()
	if c.backend != nil {
		if berr := c.backend.Close(); berr != nil && err == nil {
			err = berr
		}
	}
	return err
}

// required checks name/value pairs and reports the first empty one.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("%w: %s", ErrEmptyField, pairs[i])
		}
	}
	return nil
}
