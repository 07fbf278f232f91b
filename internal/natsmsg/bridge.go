// Package natsmsg connects the dispatcher to NATS: it consumes
// repository-update notifications and command-channel requests, and
// publishes log lines, status subjects, and operator alerts.
package natsmsg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/docbot/internal/dispatch"
	"git.home.luguber.info/inful/docbot/internal/logfields"
)

// Subjects used by the bridge.
const (
	SubjectPush    = "docbot.git.push"
	SubjectCommand = "docbot.cmd"
	SubjectLog     = "docbot.log"
	SubjectStatus  = "docbot.status"
	SubjectAlert   = "docbot.alerts"
)

// PushEvent is the repository-update notification payload.
type PushEvent struct {
	Repository string `json:"repository"`
	Ref        string `json:"ref"`
}

// Command is a command-channel request: a sender identity and the textual
// command line.
type Command struct {
	From string `json:"from"`
	Body string `json:"body"`
}

// Bridge owns the NATS connection and subscriptions.
type Bridge struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

// Connect dials the NATS server.
func Connect(url string) (*Bridge, error) {
	conn, err := nats.Connect(url, nats.Name("docbot"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	slog.Info("Connected to NATS", logfields.URL(url))
	return &Bridge{conn: conn}, nil
}

// Announcer returns a dispatch.Announcer publishing over this connection.
func (b *Bridge) Announcer() dispatch.Announcer {
	return &announcer{conn: b.conn}
}

// Subscribe wires the dispatcher to the notification and command
// subjects. Notification handling runs on the NATS callback goroutine;
// the dispatcher's submit queue keeps builds off it.
func (b *Bridge) Subscribe(ctx context.Context, d *dispatch.Dispatcher) error {
	pushSub, err := b.conn.Subscribe(SubjectPush, func(m *nats.Msg) {
		var evt PushEvent
		if err := json.Unmarshal(m.Data, &evt); err != nil {
			slog.Warn("Malformed push notification", logfields.Error(err))
			return
		}
		d.HandleNotification(ctx, evt.Repository, evt.Ref)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", SubjectPush, err)
	}
	b.subs = append(b.subs, pushSub)

	cmdSub, err := b.conn.Subscribe(SubjectCommand, func(m *nats.Msg) {
		reply := b.handleCommand(d, m.Data)
		if reply == "" || m.Reply == "" {
			return
		}
		if err := m.Respond([]byte(reply)); err != nil {
			slog.Warn("Failed to reply on command channel", logfields.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", SubjectCommand, err)
	}
	b.subs = append(b.subs, cmdSub)

	return nil
}

// handleCommand gates the sender and dispatches the command line.
func (b *Bridge) handleCommand(d *dispatch.Dispatcher, data []byte) string {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		slog.Warn("Malformed command request", logfields.Error(err))
		return ""
	}
	if denial, ok := d.Authorize(cmd.From); !ok {
		return denial
	}
	return d.HandleCommand(cmd.Body)
}

// Close drains the subscriptions and closes the connection.
func (b *Bridge) Close() {
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn("Failed to unsubscribe", logfields.Error(err))
		}
	}
	b.conn.Close()
}

// announcer publishes dispatcher output on the transport subjects.
type announcer struct {
	conn *nats.Conn
}

func (a *announcer) Log(line string) {
	if err := a.conn.Publish(SubjectLog, []byte(line)); err != nil {
		slog.Warn("Failed to publish log line", logfields.Error(err))
	}
}

func (a *announcer) Status(subject string) {
	if err := a.conn.Publish(SubjectStatus, []byte(subject)); err != nil {
		slog.Warn("Failed to publish status", logfields.Error(err))
	}
}

func (a *announcer) OperatorAlert(message string) {
	if err := a.conn.Publish(SubjectAlert, []byte(message)); err != nil {
		slog.Warn("Failed to publish operator alert", logfields.Error(err))
	}
}
