package protocol

import (
	"fmt"

	"github.com/NicolasHaas/gowhisper/pkg/model"
)

// ----- Requests -----

// Request is a client-to-server message.
type Request interface {
	Action() Action
	encode(e *Encoder)
	decode(d *Decoder) error
}

// Credentials identify the caller of a session-bound request.
type Credentials struct {
	Username string
	Token    string
}

func (c *Credentials) encodeCreds(e *Encoder) { e.PutString(c.Username).PutString(c.Token) }
func (c *Credentials) decodeCreds(d *Decoder) error {
	return readStrings(d, &c.Username, &c.Token)
}

type RegisterRequest struct {
	Username string
	Password string
}

type LoginRequest struct {
	Username string
	Password string
}

type LogoutRequest struct {
	Username string
}

type AddContactRequest struct {
	Credentials
	Contact string
}

type WhisperRequest struct {
	Credentials
	Recipient string
	Content   string
}

type CreateGroupRequest struct {
	Credentials
	Group string
}

type JoinGroupRequest struct {
	Credentials
	Group string
}

type GroupMessageRequest struct {
	Credentials
	Group   string
	Content string
}

// VoiceMessageRequest carries a recorded clip addressed to one user.
type VoiceMessageRequest struct {
	Credentials
	Recipient  string
	Channels   int
	SampleRate int
	Samples    []int16
}

// CallDataRequest carries one captured block for every other member of a group.
type CallDataRequest struct {
	Credentials
	Group   string
	Samples []int16
}

func (*RegisterRequest) Action() Action     { return ActionRegister }
func (*LoginRequest) Action() Action        { return ActionLogin }
func (*LogoutRequest) Action() Action       { return ActionLogout }
func (*AddContactRequest) Action() Action   { return ActionAddContact }
func (*WhisperRequest) Action() Action      { return ActionWhisper }
func (*CreateGroupRequest) Action() Action  { return ActionCreateGroup }
func (*JoinGroupRequest) Action() Action    { return ActionJoinGroup }
func (*GroupMessageRequest) Action() Action { return ActionMsgGroup }
func (*VoiceMessageRequest) Action() Action { return ActionVoiceMsg }
func (*CallDataRequest) Action() Action     { return ActionCallData }

func (r *RegisterRequest) encode(e *Encoder) { e.PutString(r.Username).PutString(r.Password) }
func (r *RegisterRequest) decode(d *Decoder) error {
	return readStrings(d, &r.Username, &r.Password)
}

func (r *LoginRequest) encode(e *Encoder) { e.PutString(r.Username).PutString(r.Password) }
func (r *LoginRequest) decode(d *Decoder) error {
	return readStrings(d, &r.Username, &r.Password)
}

func (r *LogoutRequest) encode(e *Encoder)       { e.PutString(r.Username) }
func (r *LogoutRequest) decode(d *Decoder) error { return readStrings(d, &r.Username) }

func (r *AddContactRequest) encode(e *Encoder) {
	r.encodeCreds(e)
	e.PutString(r.Contact)
}
func (r *AddContactRequest) decode(d *Decoder) error {
	if err := r.decodeCreds(d); err != nil {
		return err
	}
	return readStrings(d, &r.Contact)
}

func (r *WhisperRequest) encode(e *Encoder) {
	r.encodeCreds(e)
	e.PutString(r.Recipient).PutString(r.Content)
}
func (r *WhisperRequest) decode(d *Decoder) error {
	if err := r.decodeCreds(d); err != nil {
		return err
	}
	return readStrings(d, &r.Recipient, &r.Content)
}

func (r *CreateGroupRequest) encode(e *Encoder) {
	r.encodeCreds(e)
	e.PutString(r.Group)
}
func (r *CreateGroupRequest) decode(d *Decoder) error {
	if err := r.decodeCreds(d); err != nil {
		return err
	}
	return readStrings(d, &r.Group)
}

func (r *JoinGroupRequest) encode(e *Encoder) {
	r.encodeCreds(e)
	e.PutString(r.Group)
}
func (r *JoinGroupRequest) decode(d *Decoder) error {
	if err := r.decodeCreds(d); err != nil {
		return err
	}
	return readStrings(d, &r.Group)
}

func (r *GroupMessageRequest) encode(e *Encoder) {
	r.encodeCreds(e)
	e.PutString(r.Group).PutString(r.Content)
}
func (r *GroupMessageRequest) decode(d *Decoder) error {
	if err := r.decodeCreds(d); err != nil {
		return err
	}
	return readStrings(d, &r.Group, &r.Content)
}

func (r *VoiceMessageRequest) encode(e *Encoder) {
	r.encodeCreds(e)
	e.PutString(r.Recipient).
		PutInt(int64(r.Channels)).
		PutInt(int64(r.SampleRate)).
		PutSamples(r.Samples)
}
func (r *VoiceMessageRequest) decode(d *Decoder) error {
	if err := r.decodeCreds(d); err != nil {
		return err
	}
	if err := readStrings(d, &r.Recipient); err != nil {
		return err
	}
	var err error
	if r.Channels, r.SampleRate, err = readFormat(d); err != nil {
		return err
	}
	r.Samples, err = d.ReadSamples()
	return err
}

func (r *CallDataRequest) encode(e *Encoder) {
	r.encodeCreds(e)
	e.PutString(r.Group).PutSamples(r.Samples)
}
func (r *CallDataRequest) decode(d *Decoder) error {
	if err := r.decodeCreds(d); err != nil {
		return err
	}
	if err := readStrings(d, &r.Group); err != nil {
		return err
	}
	var err error
	r.Samples, err = d.ReadSamples()
	return err
}

func newRequest(a Action) Request {
	switch a {
	case ActionRegister:
		return &RegisterRequest{}
	case ActionLogin:
		return &LoginRequest{}
	case ActionLogout:
		return &LogoutRequest{}
	case ActionAddContact:
		return &AddContactRequest{}
	case ActionWhisper:
		return &WhisperRequest{}
	case ActionCreateGroup:
		return &CreateGroupRequest{}
	case ActionJoinGroup:
		return &JoinGroupRequest{}
	case ActionMsgGroup:
		return &GroupMessageRequest{}
	case ActionVoiceMsg:
		return &VoiceMessageRequest{}
	case ActionCallData:
		return &CallDataRequest{}
	}
	return nil
}

// EncodeRequest serializes r as [action, fields...].
func EncodeRequest(r Request) []byte {
	e := NewEncoder().PutString(string(r.Action()))
	r.encode(e)
	return e.Bytes()
}

// ParseRequest decodes a request. The action is returned whenever it could be
// read, even if the rest of the message is rejected, so callers can answer
// with the right action name.
func ParseRequest(data []byte) (Action, Request, error) {
	d := NewDecoder(data)
	name, err := d.ReadString()
	if err != nil {
		return "", nil, fmt.Errorf("%w: action: %w", ErrMalformed, err)
	}
	a := Action(name)
	r := newRequest(a)
	if r == nil {
		return a, nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	if err := r.decode(d); err != nil {
		return a, nil, malformed(a, err)
	}
	return a, r, nil
}

// ----- Responses -----

// Response answers exactly one request. Username and Token are only carried
// by a successful login.
type Response struct {
	Action   Action
	Status   model.StatusCode
	Username string
	Token    string
}

// Encode serializes the response as [response, action, status, payload...].
func (r *Response) Encode() []byte {
	e := NewEncoder().
		PutString(TagResponse).
		PutString(string(r.Action)).
		PutInt(int64(r.Status))
	if r.Action == ActionLogin && r.Status.OK() {
		e.PutString(r.Username).PutString(r.Token)
	}
	return e.Bytes()
}

func (r *Response) decode(d *Decoder) error {
	a, err := d.ReadString()
	if err != nil {
		return err
	}
	r.Action = Action(a)
	status, err := d.ReadInt()
	if err != nil {
		return err
	}
	r.Status = model.StatusCode(status)
	if r.Action == ActionLogin && r.Status.OK() {
		return readStrings(d, &r.Username, &r.Token)
	}
	return nil
}

// ----- Updates -----

// Update is a server-pushed notification produced by a fan-out action.
type Update interface {
	Kind() Action
	encode(e *Encoder)
	decode(d *Decoder) error
}

type WhisperUpdate struct {
	Sender  string
	Content string
}

type GroupMessageUpdate struct {
	Group   string
	Sender  string
	Content string
}

type VoiceMessageUpdate struct {
	Sender     string
	Channels   int
	SampleRate int
	Samples    []int16
}

type CallDataUpdate struct {
	Sender  string
	Samples []int16
}

func (*WhisperUpdate) Kind() Action      { return ActionWhisper }
func (*GroupMessageUpdate) Kind() Action { return ActionMsgGroup }
func (*VoiceMessageUpdate) Kind() Action { return ActionVoiceMsg }
func (*CallDataUpdate) Kind() Action     { return ActionCallData }

func (u *WhisperUpdate) encode(e *Encoder) { e.PutString(u.Sender).PutString(u.Content) }
func (u *WhisperUpdate) decode(d *Decoder) error {
	return readStrings(d, &u.Sender, &u.Content)
}

func (u *GroupMessageUpdate) encode(e *Encoder) {
	e.PutString(u.Group).PutString(u.Sender).PutString(u.Content)
}
func (u *GroupMessageUpdate) decode(d *Decoder) error {
	return readStrings(d, &u.Group, &u.Sender, &u.Content)
}

func (u *VoiceMessageUpdate) encode(e *Encoder) {
	e.PutString(u.Sender).
		PutInt(int64(u.Channels)).
		PutInt(int64(u.SampleRate)).
		PutSamples(u.Samples)
}
func (u *VoiceMessageUpdate) decode(d *Decoder) error {
	if err := readStrings(d, &u.Sender); err != nil {
		return err
	}
	var err error
	if u.Channels, u.SampleRate, err = readFormat(d); err != nil {
		return err
	}
	u.Samples, err = d.ReadSamples()
	return err
}

func (u *CallDataUpdate) encode(e *Encoder) { e.PutString(u.Sender).PutSamples(u.Samples) }
func (u *CallDataUpdate) decode(d *Decoder) error {
	if err := readStrings(d, &u.Sender); err != nil {
		return err
	}
	var err error
	u.Samples, err = d.ReadSamples()
	return err
}

func newUpdate(kind Action) Update {
	switch kind {
	case ActionWhisper:
		return &WhisperUpdate{}
	case ActionMsgGroup:
		return &GroupMessageUpdate{}
	case ActionVoiceMsg:
		return &VoiceMessageUpdate{}
	case ActionCallData:
		return &CallDataUpdate{}
	}
	return nil
}

// EncodeUpdate serializes u as [update, kind, fields...].
func EncodeUpdate(u Update) []byte {
	e := NewEncoder().PutString(TagUpdate).PutString(string(u.Kind()))
	u.encode(e)
	return e.Bytes()
}

// ParseServerMessage decodes a server-originated message. Exactly one of the
// returned response and update is non-nil on success.
func ParseServerMessage(data []byte) (*Response, Update, error) {
	d := NewDecoder(data)
	tag, err := d.ReadString()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: tag: %w", ErrMalformed, err)
	}

	switch tag {
	case TagResponse:
		r := &Response{}
		if err := r.decode(d); err != nil {
			return nil, nil, malformed(r.Action, err)
		}
		return r, nil, nil
	case TagUpdate:
		kind, err := d.ReadString()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: update kind: %w", ErrMalformed, err)
		}
		u := newUpdate(Action(kind))
		if u == nil {
			return nil, nil, fmt.Errorf("%w: update %q", ErrUnknownAction, kind)
		}
		if err := u.decode(d); err != nil {
			return nil, nil, malformed(Action(kind), err)
		}
		return nil, u, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
}

func readStrings(d *Decoder, dst ...*string) error {
	for _, p := range dst {
		s, err := d.ReadString()
		if err != nil {
			return err
		}
		*p = s
	}
	return nil
}

func readFormat(d *Decoder) (channels, sampleRate int, err error) {
	c, err := d.ReadInt()
	if err != nil {
		return 0, 0, err
	}
	r, err := d.ReadInt()
	if err != nil {
		return 0, 0, err
	}
	return int(c), int(r), nil
}
