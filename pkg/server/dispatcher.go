package server

import (
	"errors"
	"log/slog"

	"github.com/NicolasHaas/gowhisper/pkg/directory"
	"github.com/NicolasHaas/gowhisper/pkg/model"
	"github.com/NicolasHaas/gowhisper/pkg/protocol"
	"github.com/NicolasHaas/gowhisper/pkg/transport"
)

// Sender writes one message to a connection identity.
type Sender interface {
	SendTo(id model.Identity, data []byte) error
}

type handlerFunc func(from model.Identity, req protocol.Request) *protocol.Response

// Dispatcher decodes requests, runs their handler, answers the sender and
// fans updates out to recipients. It is driven by a single loop and is not
// safe for concurrent Handle calls.
type Dispatcher struct {
	dir      *directory.Directory
	registry *Registry
	out      Sender
	metrics  *Metrics
	strict   bool

	handlers map[protocol.Action]handlerFunc
}

// NewDispatcher wires a dispatcher. In strict mode unknown actions and
// undecodable envelopes are answered with a status instead of dropped.
func NewDispatcher(dir *directory.Directory, reg *Registry, out Sender, metrics *Metrics, strict bool) *Dispatcher {
	if metrics == nil {
		metrics = NewMetrics(reg)
	}
	d := &Dispatcher{
		dir:      dir,
		registry: reg,
		out:      out,
		metrics:  metrics,
		strict:   strict,
	}
	d.handlers = map[protocol.Action]handlerFunc{
		protocol.ActionRegister:    d.handleRegister,
		protocol.ActionLogin:       d.handleLogin,
		protocol.ActionLogout:      d.handleLogout,
		protocol.ActionAddContact:  d.handleAddContact,
		protocol.ActionWhisper:     d.handleWhisper,
		protocol.ActionCreateGroup: d.handleCreateGroup,
		protocol.ActionJoinGroup:   d.handleJoinGroup,
		protocol.ActionMsgGroup:    d.handleGroupMessage,
		protocol.ActionVoiceMsg:    d.handleVoiceMessage,
		protocol.ActionCallData:    d.handleCallData,
	}
	return d
}

// Handle processes one packet from the transport.
func (d *Dispatcher) Handle(p transport.Packet) {
	if p.Closed {
		d.metrics.Disconnects.Add(1)
		if username := d.registry.Drop(p.From); username != "" {
			slog.Info("user connection lost", "username", username, "identity", p.From)
		}
		return
	}

	d.metrics.RequestsReceived.Add(1)
	action, req, err := protocol.ParseRequest(p.Data)
	if err != nil {
		d.reject(p.From, action, err)
		return
	}

	slog.Debug("request", "action", action, "identity", p.From)
	handler, ok := d.handlers[action]
	if !ok {
		slog.Warn("unsupported action", "action", action, "identity", p.From)
		d.drop(p.From, action, model.StatusUnsupportedAction)
		return
	}
	d.respond(p.From, handler(p.From, req))
}

// reject handles a request that never reached a handler. It is dropped
// unless strict.
func (d *Dispatcher) reject(from model.Identity, action protocol.Action, err error) {
	switch {
	case action.Known():
		slog.Warn("malformed request", "action", action, "identity", from, "err", err)
		d.drop(from, action, model.StatusMalformedRequest)
	case errors.Is(err, protocol.ErrUnknownAction):
		slog.Warn("unsupported action", "action", action, "identity", from)
		d.drop(from, action, model.StatusUnsupportedAction)
	default:
		slog.Warn("undecodable request", "identity", from, "err", err)
		d.drop(from, action, model.StatusMalformedRequest)
	}
}

func (d *Dispatcher) drop(from model.Identity, action protocol.Action, code model.StatusCode) {
	if d.strict {
		d.respond(from, status(action, code))
		return
	}
	d.metrics.PacketsDropped.Add(1)
}

func (d *Dispatcher) respond(to model.Identity, resp *protocol.Response) {
	if err := d.out.SendTo(to, resp.Encode()); err != nil {
		d.metrics.SendFailures.Add(1)
		slog.Warn("send response failed", "action", resp.Action, "identity", to, "err", err)
		return
	}
	d.metrics.ResponsesSent.Add(1)
	if !resp.Status.OK() {
		slog.Debug("request failed", "action", resp.Action, "status", resp.Status, "identity", to)
	}
}

// fanout sends one update to every identity in ids and returns how many
// sends succeeded. Failures are logged and never abort the loop.
func (d *Dispatcher) fanout(ids []model.Identity, u protocol.Update) int {
	if len(ids) == 0 {
		return 0
	}
	data := protocol.EncodeUpdate(u)
	sent := 0
	for _, id := range ids {
		if err := d.out.SendTo(id, data); err != nil {
			d.metrics.SendFailures.Add(1)
			slog.Warn("send update failed", "kind", u.Kind(), "identity", id, "err", err)
			continue
		}
		sent++
	}
	d.metrics.UpdatesSent.Add(int64(sent))
	return sent
}

// internal logs a storage failure and converts it into a response.
func internal(action protocol.Action, err error) *protocol.Response {
	slog.Error("directory failure", "action", action, "err", err)
	return status(action, model.StatusInternalError)
}

func status(action protocol.Action, code model.StatusCode) *protocol.Response {
	return &protocol.Response{Action: action, Status: code}
}

// groupAccess checks that group exists and username belongs to it.
func (d *Dispatcher) groupAccess(group, username string) (*model.Group, model.StatusCode, error) {
	g, err := d.dir.Group(group)
	if err != nil {
		return nil, model.StatusInternalError, err
	}
	if g == nil {
		return nil, model.StatusGroupDoesNotExist, nil
	}
	if !g.IsMember(username) {
		return nil, model.StatusGroupMemberDoesNotExist, nil
	}
	return g, model.StatusSuccess, nil
}

// memberIdentities lists every identity of every connected member of g
// other than except.
func (d *Dispatcher) memberIdentities(g *model.Group, except string) []model.Identity {
	var ids []model.Identity
	for _, m := range g.MemberList() {
		if m == except {
			continue
		}
		ids = append(ids, d.registry.IdentitiesOf(m)...)
	}
	return ids
}
