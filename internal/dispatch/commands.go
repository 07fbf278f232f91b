package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// CommandHandler executes one command-channel verb and returns the reply
// text.
type CommandHandler func(args []string) string

// defaultCommands builds the verb table. Each verb is a plain function;
// new verbs register through RegisterCommand without touching the
// dispatcher core.
func defaultCommands(d *Dispatcher) map[string]CommandHandler {
	return map[string]CommandHandler{
		"rebuild": d.cmdRebuild,
		"reload":  d.cmdReload,
		"echo":    cmdEcho,
		"ping":    cmdPing,
	}
}

// RegisterCommand adds or replaces a command-channel verb.
func (d *Dispatcher) RegisterCommand(verb string, handler CommandHandler) {
	d.commands[verb] = handler
}

// HandleCommand parses a "<verb> <args...>" command line and dispatches
// it through the verb table. Unknown verbs yield a plain reply, not an
// error.
func (d *Dispatcher) HandleCommand(line string) string {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return ""
	}
	handler, ok := d.commands[fields[0]]
	if !ok {
		return fmt.Sprintf("Unknown command: %s", fields[0])
	}
	return handler(fields[1:])
}

func (d *Dispatcher) cmdRebuild(args []string) string {
	if len(args) != 1 {
		return "Usage: rebuild <project>"
	}
	if err := d.RebuildProject(args[0]); err != nil {
		var unknown *UnknownProjectError
		if errors.As(err, &unknown) {
			return unknown.Error()
		}
		return err.Error()
	}
	return "rebuild triggered"
}

func (d *Dispatcher) cmdReload(args []string) string {
	if err := d.Reload(); err != nil {
		// Surface the full error context to the requester.
		return err.Error()
	}
	return "reloaded"
}

func cmdEcho(args []string) string {
	return strings.Join(args, " ")
}

func cmdPing(args []string) string {
	return "pong"
}
