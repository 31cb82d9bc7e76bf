// Command scaffold is the reference CLI for the cognitive scaffolding core:
// a REPL that drives one conversation through the turn pipeline, plus a
// status command that serves the SALUTE read surface for external
// observers.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/cogscaffold/core/pkg/config"
	"github.com/cogscaffold/core/pkg/statusserver"
)

// CLI defines the command-line interface.
type CLI struct {
	Chat    ChatCmd    `cmd:"" help:"Start an interactive turn-by-turn session on stdin/stdout."`
	Status  StatusCmd  `cmd:"" help:"Serve the read-only SALUTE status surface."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config string `short:"c" help:"Path to config file." type:"path" default:"scaffold.yaml"`
	Model  string `help:"Ollama model name for the turn loop's LLM backend." default:"llama3.2"`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("scaffold version %s\n", version)
	return nil
}

// ChatCmd runs one session's turns from stdin until EOF or interrupt.
type ChatCmd struct {
	Session string `help:"Session identifier; a fresh one is generated if omitted."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	pipeline, err := buildPipeline(cfg, cli.Model)
	if err != nil {
		return fmt.Errorf("scaffold: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	sessionID := c.Session
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sess := newSession(sessionID)

	fmt.Printf("session %s ready, type a message and press enter (Ctrl+C to exit)\n", sessionID)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		reply, err := pipeline.RunTurn(ctx, sess, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "turn error: %v\n", err)
			continue
		}
		fmt.Println(reply)
	}
	return scanner.Err()
}

// StatusCmd serves the read-only SALUTE observation surface over HTTP.
type StatusCmd struct{}

func (c *StatusCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if !cfg.StatusServer.Enabled {
		return fmt.Errorf("scaffold: status_server.enabled is false in %s", cli.Config)
	}

	pipeline, err := buildPipeline(cfg, cli.Model)
	if err != nil {
		return fmt.Errorf("scaffold: %w", err)
	}
	roleIDs := make([]string, 0, len(pipeline.OrgKernel.Roles))
	for id := range pipeline.OrgKernel.Roles {
		roleIDs = append(roleIDs, id)
	}

	srv := statusserver.New(pipeline.OrgKernel.Store, roleIDs)
	fmt.Printf("status server listening on %s\n", cfg.StatusServer.Addr)
	return http.ListenAndServe(cfg.StatusServer.Addr, srv)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("scaffold: loading config: %w", err)
	}
	cfg.SetDefaults()
	return cfg, nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("scaffold"),
		kong.Description("Cognitive scaffolding core reference CLI"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
