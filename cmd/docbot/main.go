package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docbot/internal/config"
	"git.home.luguber.info/inful/docbot/internal/daemon"
	"git.home.luguber.info/inful/docbot/internal/dispatch"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"docbot.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Run struct {
		NATSURL string `help:"NATS server URL" default:"nats://127.0.0.1:4222" name:"nats-url"`
		Listen  string `help:"Address for /metrics and /healthz" default:":9090"`
	} `cmd:"" help:"Run the build-trigger daemon"`

	Check struct{} `cmd:"" help:"Validate the configuration file and exit"`

	Rebuild struct {
		Project string `arg:"" help:"Project whose builds should run"`
	} `cmd:"" help:"Run all builds of a project once, locally"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	switch ctx.Command() {
	case "run":
		err = runDaemon()
	case "check":
		err = runCheck()
	case "rebuild <project>":
		err = runRebuild(CLI.Rebuild.Project)
	}
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func runDaemon() error {
	d, err := daemon.New(daemon.Options{
		ConfigPath: CLI.Config,
		NATSURL:    CLI.Run.NATSURL,
		ListenAddr: CLI.Run.Listen,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errChan := make(chan error, 1)
	go func() { errChan <- d.Start(ctx) }()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("daemon error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	return d.Stop(stopCtx)
}

func runCheck() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	decls, err := cfg.Assemble()
	if err != nil {
		return err
	}

	builds := 0
	for _, decl := range decls {
		builds += len(decl.Project.Targets())
	}
	slog.Info("Configuration OK",
		"projects", len(decls),
		"builds", builds,
		"authorized", len(cfg.Authorized))
	return nil
}

func runRebuild(projectName string) error {
	d, err := dispatch.New(dispatch.Options{
		ConfigPath: CLI.Config,
		Announcer:  consoleAnnouncer{},
	})
	if err != nil {
		return err
	}
	return d.RebuildProject(projectName)
}

// consoleAnnouncer renders dispatcher output on stdout for one-shot runs.
type consoleAnnouncer struct{}

func (consoleAnnouncer) Log(line string)          { fmt.Println(line) }
func (consoleAnnouncer) Status(subject string)    { fmt.Printf("-- %s\n", subject) }
func (consoleAnnouncer) OperatorAlert(msg string) { fmt.Fprintf(os.Stderr, "!! %s\n", msg) }
