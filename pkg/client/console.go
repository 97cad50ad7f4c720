package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gookit/color"

	"github.com/NicolasHaas/gowhisper/pkg/model"
)

const consoleHelp = `commands:
  /register <user> <password>   create an account
  /login <user> <password>      open a session
  /logout                       close the session
  /add <user>                   add a contact
  /w <user> <text>              whisper to a user
  /create <group>               create a group
  /join <group>                 join a group
  /g <group> <text>             message a group
  /record                       start recording a voice message
  /stop                         stop recording
  /review                       play back your recording
  /send <user>                  send the recording
  /play                         play the last voice message received
  /call <group>                 start a group call
  /hangup                       end the call
  /whoami                       show the session
  /help                         show this help
  /quit                         log out and exit`

// Console is a line-oriented front end for a Client. Updates from the
// listener are printed as they arrive.
type Console struct {
	client *Client
	in     io.Reader

	mu  sync.Mutex // serializes writes from the command loop and listener
	out io.Writer
}

// NewConsole attaches a console to c, taking over its callbacks.
func NewConsole(c *Client, in io.Reader, out io.Writer) *Console {
	con := &Console{client: c, in: in, out: out}

	c.OnWhisper = func(sender, text string) {
		con.println(color.FgMagenta, "[whisper] %s: %s", sender, text)
	}
	c.OnGroupMessage = func(group, sender, text string) {
		con.println(color.FgCyan, "[%s] %s: %s", group, sender, text)
	}
	c.OnVoiceMessage = func(msg *VoiceMessage) {
		con.println(color.FgYellow, "voice message from %s (%.1fs), /play to listen",
			msg.Sender, msg.Duration().Seconds())
	}
	c.OnCallRejected = func(group string, status model.StatusCode) {
		con.println(color.FgRed, "call with %s ended: %s", group, status)
	}
	c.OnDisconnect = func() {
		con.println(color.FgRed, "connection to server lost")
	}
	return con
}

// Run reads commands until /quit, end of input or ctx ends.
func (con *Console) Run(ctx context.Context) error {
	con.println(color.FgGray, "type /help for commands")

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(con.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if quit := con.Execute(ctx, line); quit {
				return nil
			}
		}
	}
}

// Execute runs one command line and reports whether the console should exit.
func (con *Console) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	cmd, rest, _ := strings.Cut(line, " ")
	c := con.client

	var err error
	switch cmd {
	case "/register":
		args := words(rest, 2)
		if err = c.Register(ctx, args[0], args[1]); err == nil {
			con.ok("registered %s", args[0])
		}
	case "/login":
		args := words(rest, 2)
		if err = c.Login(ctx, args[0], args[1]); err == nil {
			con.ok("logged in as %s", c.Username())
		}
	case "/logout":
		if err = c.Logout(ctx); err == nil {
			con.ok("logged out")
		}
	case "/add":
		args := words(rest, 1)
		if err = c.AddContact(ctx, args[0]); err == nil {
			con.ok("added contact %s", args[0])
		}
	case "/w":
		args := words(rest, 2)
		err = c.Whisper(ctx, args[0], args[1])
	case "/create":
		args := words(rest, 1)
		if err = c.CreateGroup(ctx, args[0]); err == nil {
			con.ok("created group %s", args[0])
		}
	case "/join":
		args := words(rest, 1)
		if err = c.JoinGroup(ctx, args[0]); err == nil {
			con.ok("joined group %s", args[0])
		}
	case "/g":
		args := words(rest, 2)
		err = c.MessageGroup(ctx, args[0], args[1])
	case "/record":
		if err = c.StartRecording(); err == nil {
			con.ok("recording, /stop to finish")
		}
	case "/stop":
		var msg *VoiceMessage
		if msg, err = c.StopRecording(); err == nil {
			con.ok("recorded %.1fs, /send <user> to deliver", msg.Duration().Seconds())
		}
	case "/review":
		err = c.PlayRecording(ctx)
	case "/send":
		args := words(rest, 1)
		if err = c.SendVoiceMessage(ctx, args[0]); err == nil {
			con.ok("voice message sent to %s", args[0])
		}
	case "/play":
		err = c.PlayVoiceMessage(ctx)
	case "/call":
		args := words(rest, 1)
		if err = c.StartCall(args[0]); err == nil {
			con.ok("in call with %s, /hangup to leave", args[0])
		}
	case "/hangup":
		if err = c.StopCall(); err == nil {
			con.ok("call ended")
		}
	case "/whoami":
		if u := c.Username(); u != "" {
			con.println(color.FgGray, "logged in as %s", u)
		} else {
			con.println(color.FgGray, "not logged in")
		}
	case "/help":
		con.println(color.FgGray, "%s", consoleHelp)
	case "/quit", "/exit":
		return true
	default:
		con.println(color.FgRed, "unknown command %q, /help for commands", cmd)
	}

	if err != nil {
		con.fail(cmd, err)
	}
	return false
}

func (con *Console) ok(format string, args ...any) {
	con.println(color.FgGreen, format, args...)
}

func (con *Console) fail(cmd string, err error) {
	var se *StatusError
	if errors.As(err, &se) {
		con.println(color.FgRed, "%s: %s", strings.TrimPrefix(cmd, "/"), se.Status)
		return
	}
	con.println(color.FgRed, "%s: %v", strings.TrimPrefix(cmd, "/"), err)
}

func (con *Console) println(style color.Color, format string, args ...any) {
	con.mu.Lock()
	defer con.mu.Unlock()
	_, _ = fmt.Fprintln(con.out, style.Sprintf(format, args...))
}

// words splits s into n fields; the last keeps any remaining text. Missing
// fields are empty.
func words(s string, n int) []string {
	out := make([]string, n)
	s = strings.TrimSpace(s)
	for i := 0; i < n-1; i++ {
		var w string
		w, s, _ = strings.Cut(s, " ")
		out[i] = w
		s = strings.TrimSpace(s)
	}
	out[n-1] = s
	return out
}
