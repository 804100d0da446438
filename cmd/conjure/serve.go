package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/davenport-labs/conjure/internal/brain"
	"github.com/davenport-labs/conjure/internal/instance"
	"github.com/davenport-labs/conjure/internal/telegraph/discord"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Conjure daemon",
		Long:  "Connects to Discord, pumps channel messages into live instances and runs the reply, reap and purge sweeps until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "conjure.yaml", "path to config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to database %s\n", cfg.Database.Name)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adapter, err := discord.New(discord.AdapterOpts{BotToken: cfg.Discord.Token})
	if err != nil {
		return err
	}
	if err := adapter.Connect(ctx); err != nil {
		return err
	}
	defer adapter.Close()

	inbound, err := adapter.Listen(ctx)
	if err != nil {
		return err
	}

	creds := brain.Credentials{
		AnthropicAPIKey: cfg.Brains.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.Brains.OpenAIAPIKey,
		GeminiAPIKey:    cfg.Brains.GeminiAPIKey,
		CohereAPIKey:    cfg.Brains.CohereAPIKey,
	}
	engine, err := instance.New(instance.Opts{
		DB:      gormDB,
		Adapter: adapter,
		NewBrain: func(kind brain.Kind) (brain.ArenaBrain, error) {
			return brain.New(kind, creds)
		},
		Scheduler: cfg.Scheduler,
		Pricing:   cfg.Pricing,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Conjure daemon running. Ctrl-C to stop.")
	return engine.RunSweeps(ctx, inbound, cfg.Scheduler)
}
