package client

import (
	"errors"
	"log/slog"
	"time"

	"github.com/NicolasHaas/gowhisper/pkg/protocol"
	"github.com/NicolasHaas/gowhisper/pkg/transport"
)

// listen polls the transport until the running flag clears or the
// connection is gone.
func (c *Client) listen() {
	defer close(c.listenerDone)

	for c.running.Load() {
		data, ok, err := c.tr.Poll()
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				c.disconnected()
				return
			}
			slog.Warn("poll failed", "err", err)
			time.Sleep(c.opts.PollInterval)
			continue
		}
		if !ok {
			time.Sleep(c.opts.PollInterval)
			continue
		}
		c.handleMessage(data)
	}
}

func (c *Client) disconnected() {
	wasRunning := c.running.Swap(false)
	c.mailbox.Close()
	slog.Info("disconnected from server")
	if wasRunning && c.OnDisconnect != nil {
		c.OnDisconnect()
	}
}

func (c *Client) handleMessage(data []byte) {
	resp, u, err := protocol.ParseServerMessage(data)
	if err != nil {
		slog.Warn("undecodable server message", "err", err, "bytes", len(data))
		return
	}
	if resp != nil {
		c.handleResponse(resp)
		return
	}
	c.handleUpdate(u)
}

// handleResponse applies the response's side effects before waking the
// waiting command, so state is current when the command returns.
func (c *Client) handleResponse(resp *protocol.Response) {
	if resp.Status.OK() {
		switch resp.Action {
		case protocol.ActionLogin:
			c.mu.Lock()
			c.username, c.token = resp.Username, resp.Token
			c.mu.Unlock()
			slog.Debug("session opened", "username", resp.Username)
		case protocol.ActionLogout:
			c.mu.Lock()
			c.username, c.token = "", ""
			c.mu.Unlock()
			slog.Debug("session closed")
		}
	}

	if c.mailbox.Deliver(resp) {
		return
	}
	if resp.Action == protocol.ActionCallData {
		if !resp.Status.OK() {
			c.callRejected(resp.Status)
		}
		return
	}
	if resp.Status.OK() && (resp.Action == protocol.ActionLogin || resp.Action == protocol.ActionLogout) {
		slog.Info("session changed after the command stopped waiting",
			"action", resp.Action, "username", c.Username())
		return
	}
	if !resp.Status.OK() {
		slog.Warn("request failed", "action", resp.Action, "status", resp.Status)
		return
	}
	slog.Debug("unpaired response", "action", resp.Action)
}

func (c *Client) handleUpdate(u protocol.Update) {
	self := c.Username()

	switch u := u.(type) {
	case *protocol.WhisperUpdate:
		if u.Sender == self {
			return
		}
		if c.OnWhisper != nil {
			c.OnWhisper(u.Sender, u.Content)
		}
	case *protocol.GroupMessageUpdate:
		if u.Sender == self {
			return
		}
		if c.OnGroupMessage != nil {
			c.OnGroupMessage(u.Group, u.Sender, u.Content)
		}
	case *protocol.VoiceMessageUpdate:
		msg := &VoiceMessage{
			Sender:     u.Sender,
			Channels:   u.Channels,
			SampleRate: u.SampleRate,
			Samples:    u.Samples,
		}
		c.mu.Lock()
		c.lastVoice = msg
		c.mu.Unlock()
		slog.Debug("voice message received", "from", u.Sender, "duration", msg.Duration())
		if c.OnVoiceMessage != nil {
			c.OnVoiceMessage(msg)
		}
	case *protocol.CallDataUpdate:
		c.callMu.Lock()
		cl := c.call
		c.callMu.Unlock()
		if cl == nil {
			return
		}
		cl.receive(u.Sender, u.Samples)
	default:
		slog.Warn("unhandled update", "kind", u.Kind())
	}
}
