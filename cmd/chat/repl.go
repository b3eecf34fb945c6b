package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/christopherjohns/chatsphere-client/internal/message"
	"github.com/christopherjohns/chatsphere-client/internal/session"
)

const helpText = `commands:
  /login <name>        log in and connect
  /to <user> <text>    send a private message
  /upload <path>       upload a file and share its link
  /reconnect           retry the connection now
  /logout              disconnect
  /quit                disconnect and exit
  anything else        broadcast to everyone`

type commandKind int

const (
	cmdNone commandKind = iota
	cmdBroadcast
	cmdPrivate
	cmdLogin
	cmdUpload
	cmdReconnect
	cmdLogout
	cmdQuit
	cmdHelp
	cmdInvalid
)

type command struct {
	kind   commandKind
	arg    string
	target string
}

// parseCommand turns one input line into a command. Lines that do not
// start with a slash are broadcasts.
func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: cmdNone}
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdBroadcast, arg: line}
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch name {
	case "/login":
		if rest == "" {
			return command{kind: cmdInvalid, arg: "usage: /login <name>"}
		}
		return command{kind: cmdLogin, arg: rest}
	case "/to", "/msg":
		target, text, _ := strings.Cut(rest, " ")
		text = strings.TrimSpace(text)
		if target == "" || text == "" {
			return command{kind: cmdInvalid, arg: "usage: /to <user> <text>"}
		}
		return command{kind: cmdPrivate, arg: text, target: target}
	case "/upload":
		if rest == "" {
			return command{kind: cmdInvalid, arg: "usage: /upload <path>"}
		}
		return command{kind: cmdUpload, arg: rest}
	case "/reconnect":
		return command{kind: cmdReconnect}
	case "/logout":
		return command{kind: cmdLogout}
	case "/quit", "/exit":
		return command{kind: cmdQuit}
	case "/help":
		return command{kind: cmdHelp}
	}
	return command{kind: cmdInvalid, arg: "unknown command " + name + " (try /help)"}
}

// engine is the part of session.Engine the prompt drives.
type engine interface {
	Login(username string) error
	SendBroadcast(text string) error
	SendPrivate(text, targetUser string) error
	SendFile(ctx context.Context, filename string, body io.Reader) error
	ReconnectNow() bool
	Disconnect()
}

// run applies cmd to e and reports whether the prompt should exit.
func run(ctx context.Context, e engine, cmd command, out io.Writer) bool {
	var err error
	switch cmd.kind {
	case cmdNone:
	case cmdBroadcast:
		err = e.SendBroadcast(cmd.arg)
	case cmdPrivate:
		err = e.SendPrivate(cmd.arg, cmd.target)
	case cmdLogin:
		err = e.Login(cmd.arg)
	case cmdUpload:
		err = uploadFile(ctx, e, cmd.arg)
	case cmdReconnect:
		if !e.ReconnectNow() {
			fmt.Fprintln(out, "not waiting to reconnect")
		}
	case cmdLogout:
		e.Disconnect()
	case cmdQuit:
		return true
	case cmdHelp:
		fmt.Fprintln(out, helpText)
	case cmdInvalid:
		fmt.Fprintln(out, cmd.arg)
	}
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
	}
	return false
}

func uploadFile(ctx context.Context, e engine, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return e.SendFile(ctx, filepath.Base(path), f)
}

// render prints state changes, new messages and notices as snapshots
// arrive.
func render(ctx context.Context, snaps <-chan session.Snapshot, out io.Writer) {
	var (
		printed int
		sess    uint64
		state   session.State
		notice  string
	)
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-snaps:
			if s.State != state {
				state = s.State
				fmt.Fprintln(out, formatState(s))
			}
			// A new login restarts the history, even if the snapshot that
			// showed it empty was replaced before we read it.
			if s.Session != sess {
				sess = s.Session
				printed = 0
			}
			if printed > len(s.Messages) {
				printed = len(s.Messages)
			}
			for _, m := range s.Messages[printed:] {
				fmt.Fprintln(out, formatMessage(m))
			}
			printed = len(s.Messages)
			if s.Notice != notice {
				notice = s.Notice
				if notice != "" {
					fmt.Fprintf(out, "! %s\n", notice)
				}
			}
		}
	}
}

func formatState(s session.Snapshot) string {
	switch s.State {
	case session.Connected:
		return fmt.Sprintf("-- connected as %s (online: %s)", s.Username, strings.Join(s.ActiveUsers, ", "))
	case session.Reconnecting:
		return fmt.Sprintf("-- connection lost, retrying in %s (attempt %d)", s.RetryIn, s.Attempt+1)
	}
	return "-- " + s.State.String()
}

func formatMessage(m message.Message) string {
	switch m.Type {
	case message.TypeLogin:
		return fmt.Sprintf("* %s joined", m.Sender)
	case message.TypeLogout:
		return fmt.Sprintf("* %s left", m.Sender)
	}

	from := m.Sender
	if m.Type == message.TypePrivate {
		from = m.Sender + " -> " + m.TargetUser
	}
	if name, url, ok := message.ParseFileMarker(m.Content); ok {
		return fmt.Sprintf("[%s] shared %s: %s", from, name, url)
	}
	return fmt.Sprintf("[%s] %s", from, m.Content)
}
