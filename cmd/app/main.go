package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	"github.com/starford/ansuz/internal/viewstate"
	"github.com/starford/ansuz/internal/wallet"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Serve(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runTUI(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunTUI(ctx, cfg)
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, cfg, version)
}

// oneShot connects a client, runs action and prints the resulting view.
func oneShot(action func(ctx context.Context, ctrl *viewstate.Controller, args []string) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		c, err := internal.NewClient(cfg, wallet.NewTerminalApprover())
		if err != nil {
			return err
		}
		defer c.Close()

		if c.Notice != "" {
			fmt.Fprintln(os.Stderr, c.Notice)
		}
		if err := c.Connect(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		if action != nil {
			if err := action(ctx, c.Controller, cmd.Args().Slice()); err != nil {
				return err
			}
		}
		printView(os.Stdout, c.Controller.View())
		return nil
	}
}

func submit(ctx context.Context, ctrl *viewstate.Controller, args []string) error {
	word := strings.TrimSpace(strings.Join(args, " "))
	if word == "" {
		return fmt.Errorf("usage: submit <word>")
	}
	return ctrl.SubmitWord(ctx, word)
}

func initialize(ctx context.Context, ctrl *viewstate.Controller, _ []string) error {
	return ctrl.InitializeOneTime(ctx)
}

func printView(w io.Writer, v viewstate.View) {
	fmt.Fprintf(w, "identity: %s\n", v.Identity)
	fmt.Fprintf(w, "state:    %s\n", v.Phase)
	if v.Err != nil {
		fmt.Fprintf(w, "error:    %v\n", v.Err)
	}
	switch v.Phase {
	case viewstate.Absent:
		fmt.Fprintln(w, "The record has not been initialized. Run `ansuz init` to create it.")
	case viewstate.Present:
		fmt.Fprintln(w, "words:")
		for _, e := range v.Entries {
			fmt.Fprintf(w, "  %s (%d)\n", e.Value, e.Weight)
		}
		fmt.Fprintln(w, "contributors:")
		for _, id := range v.Contributors {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
}

func newWallet(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	id, err := wallet.GenerateKeystore(cfg.Wallet.Keystore)
	if err != nil {
		return err
	}
	fmt.Printf("created keystore %s\nidentity: %s\n", cfg.Wallet.Keystore, id)
	return nil
}

func trustWallet(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	id, err := wallet.TrustKeystore(cfg.Wallet.Keystore)
	if err != nil {
		return err
	}
	fmt.Printf("trusted identity %s\n", id)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "ansuz",
		Usage:   "Shared word cloud with wallet-authenticated contributions",
		Version: version,
		Action:  runTUI,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the record node",
				Action: serve,
			},
			{
				Name:   "tui",
				Usage:  "Open the interactive word cloud (default)",
				Action: runTUI,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the word cloud as MCP tools over stdio",
				Action: runMCP,
			},
			{
				Name:   "show",
				Usage:  "Print the current word cloud",
				Action: oneShot(nil),
			},
			{
				Name:      "submit",
				Usage:     "Submit a word",
				ArgsUsage: "<word>",
				Action:    oneShot(submit),
			},
			{
				Name:   "init",
				Usage:  "Initialize the shared record",
				Action: oneShot(initialize),
			},
			{
				Name:  "wallet",
				Usage: "Manage the local keystore",
				Commands: []*cli.Command{
					{
						Name:   "new",
						Usage:  "Create a new keystore",
						Action: newWallet,
					},
					{
						Name:   "trust",
						Usage:  "Pre-authorize the keystore for silent connect",
						Action: trustWallet,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
