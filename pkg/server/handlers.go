package server

import (
	"log/slog"

	"github.com/NicolasHaas/gowhisper/pkg/model"
	"github.com/NicolasHaas/gowhisper/pkg/protocol"
)

// Handlers validate connectivity, then the session token, then domain rules.

func (d *Dispatcher) handleRegister(_ model.Identity, r protocol.Request) *protocol.Response {
	req := r.(*protocol.RegisterRequest)
	code, err := d.dir.Register(req.Username, req.Password)
	if err != nil {
		return internal(req.Action(), err)
	}
	if code.OK() {
		d.metrics.Registrations.Add(1)
		slog.Info("user registered", "username", req.Username)
	}
	return status(req.Action(), code)
}

func (d *Dispatcher) handleLogin(from model.Identity, r protocol.Request) *protocol.Response {
	req := r.(*protocol.LoginRequest)
	code, err := d.registry.Login(from, req.Username, req.Password)
	if err != nil {
		return internal(req.Action(), err)
	}
	if !code.OK() {
		d.metrics.FailedLogin.Add(1)
		slog.Info("login failed", "username", req.Username, "identity", from, "status", code)
		return status(req.Action(), code)
	}

	d.metrics.SuccessfulLogin.Add(1)
	slog.Info("user logged in", "username", req.Username, "identity", from,
		"connections", len(d.registry.IdentitiesOf(req.Username)))
	return &protocol.Response{
		Action:   req.Action(),
		Status:   code,
		Username: req.Username,
		Token:    d.registry.Token(req.Username),
	}
}

func (d *Dispatcher) handleLogout(from model.Identity, r protocol.Request) *protocol.Response {
	req := r.(*protocol.LogoutRequest)
	code := d.registry.Logout(from, req.Username)
	if code.OK() {
		d.metrics.Logouts.Add(1)
		slog.Info("user logged out", "username", req.Username, "identity", from,
			"session_alive", d.registry.IsConnected(req.Username))
	}
	return status(req.Action(), code)
}

func (d *Dispatcher) handleAddContact(_ model.Identity, r protocol.Request) *protocol.Response {
	req := r.(*protocol.AddContactRequest)
	for _, name := range []string{req.Username, req.Contact} {
		ok, err := d.dir.UserExists(name)
		if err != nil {
			return internal(req.Action(), err)
		}
		if !ok {
			return status(req.Action(), model.StatusUserDoesNotExist)
		}
	}
	if code := d.registry.Authorize(req.Username, req.Token); !code.OK() {
		return status(req.Action(), code)
	}

	code, err := d.dir.AddContact(req.Username, req.Contact)
	if err != nil {
		return internal(req.Action(), err)
	}
	if code.OK() {
		slog.Info("contact added", "username", req.Username, "contact", req.Contact)
	}
	return status(req.Action(), code)
}

// authorizeDirect requires both ends of a one-to-one message to be connected
// before the sender's token is checked.
func (d *Dispatcher) authorizeDirect(creds protocol.Credentials, recipient string) model.StatusCode {
	if !d.registry.IsConnected(creds.Username) || !d.registry.IsConnected(recipient) {
		return model.StatusUserNotConnected
	}
	if !d.registry.ValidateToken(creds.Username, creds.Token) {
		return model.StatusUserIncorrectToken
	}
	return model.StatusSuccess
}

func (d *Dispatcher) handleWhisper(_ model.Identity, r protocol.Request) *protocol.Response {
	req := r.(*protocol.WhisperRequest)
	if code := d.authorizeDirect(req.Credentials, req.Recipient); !code.OK() {
		return status(req.Action(), code)
	}

	d.metrics.ChatMessagesSent.Add(1)
	d.fanout(d.registry.IdentitiesOf(req.Recipient), &protocol.WhisperUpdate{
		Sender:  req.Username,
		Content: req.Content,
	})
	return status(req.Action(), model.StatusSuccess)
}

func (d *Dispatcher) handleCreateGroup(_ model.Identity, r protocol.Request) *protocol.Response {
	req := r.(*protocol.CreateGroupRequest)
	if code := d.registry.Authorize(req.Username, req.Token); !code.OK() {
		return status(req.Action(), code)
	}

	code, err := d.dir.CreateGroup(req.Group, req.Username)
	if err != nil {
		return internal(req.Action(), err)
	}
	if code.OK() {
		d.metrics.GroupsCreated.Add(1)
		slog.Info("group created", "group", req.Group, "owner", req.Username)
	}
	return status(req.Action(), code)
}

func (d *Dispatcher) handleJoinGroup(_ model.Identity, r protocol.Request) *protocol.Response {
	req := r.(*protocol.JoinGroupRequest)
	if code := d.registry.Authorize(req.Username, req.Token); !code.OK() {
		return status(req.Action(), code)
	}

	code, err := d.dir.JoinGroup(req.Group, req.Username)
	if err != nil {
		return internal(req.Action(), err)
	}
	if code.OK() {
		d.metrics.GroupJoins.Add(1)
		slog.Info("group joined", "group", req.Group, "username", req.Username)
	}
	return status(req.Action(), code)
}

// handleGroupMessage relays to every connected member, the sender included.
func (d *Dispatcher) handleGroupMessage(_ model.Identity, r protocol.Request) *protocol.Response {
	req := r.(*protocol.GroupMessageRequest)
	if code := d.registry.Authorize(req.Username, req.Token); !code.OK() {
		return status(req.Action(), code)
	}
	g, code, err := d.groupAccess(req.Group, req.Username)
	if err != nil {
		return internal(req.Action(), err)
	}
	if !code.OK() {
		return status(req.Action(), code)
	}

	d.metrics.ChatMessagesSent.Add(1)
	d.fanout(d.memberIdentities(g, ""), &protocol.GroupMessageUpdate{
		Group:   req.Group,
		Sender:  req.Username,
		Content: req.Content,
	})
	return status(req.Action(), model.StatusSuccess)
}

func (d *Dispatcher) handleVoiceMessage(_ model.Identity, r protocol.Request) *protocol.Response {
	req := r.(*protocol.VoiceMessageRequest)
	if code := d.authorizeDirect(req.Credentials, req.Recipient); !code.OK() {
		return status(req.Action(), code)
	}

	d.metrics.VoiceMessages.Add(1)
	slog.Debug("voice message", "from", req.Username, "to", req.Recipient,
		"samples", len(req.Samples), "channels", req.Channels, "rate", req.SampleRate)
	d.fanout(d.registry.IdentitiesOf(req.Recipient), &protocol.VoiceMessageUpdate{
		Sender:     req.Username,
		Channels:   req.Channels,
		SampleRate: req.SampleRate,
		Samples:    req.Samples,
	})
	return status(req.Action(), model.StatusSuccess)
}

// handleCallData relays one audio block to every connected member except the
// sender's own connections.
func (d *Dispatcher) handleCallData(_ model.Identity, r protocol.Request) *protocol.Response {
	req := r.(*protocol.CallDataRequest)
	if code := d.registry.Authorize(req.Username, req.Token); !code.OK() {
		return status(req.Action(), code)
	}
	g, code, err := d.groupAccess(req.Group, req.Username)
	if err != nil {
		return internal(req.Action(), err)
	}
	if !code.OK() {
		return status(req.Action(), code)
	}

	d.metrics.CallFrames.Add(1)
	d.fanout(d.memberIdentities(g, req.Username), &protocol.CallDataUpdate{
		Sender:  req.Username,
		Samples: req.Samples,
	})
	return status(req.Action(), model.StatusSuccess)
}
