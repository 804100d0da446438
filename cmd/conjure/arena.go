package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/davenport-labs/conjure/internal/arena"
	"github.com/davenport-labs/conjure/internal/brain"
	"github.com/davenport-labs/conjure/internal/credit"
	"github.com/davenport-labs/conjure/internal/telegraph/discord"
)

type fighterFlags struct {
	userID      string
	displayName string
	name        string
	description string
}

func newArenaCmd() *cobra.Command {
	var (
		configPath string
		channelID  string
		scenario   string
		split      bool
		payerUser  string
		payerGuild string
		f1, f2     fighterFlags
	)

	cmd := &cobra.Command{
		Use:   "arena",
		Short: "Run one battle in a channel",
		Long:  "Connects to Discord and referees a single battle between two fighters in the given channel, collecting their actions as messages until a winner is declared.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			kind, err := brain.ParseKind(cfg.Arena.ScenarioBrainKind)
			if err != nil {
				return err
			}
			b, err := brain.New(kind, brain.Credentials{
				AnthropicAPIKey: cfg.Brains.AnthropicAPIKey,
				OpenAIAPIKey:    cfg.Brains.OpenAIAPIKey,
				GeminiAPIKey:    cfg.Brains.GeminiAPIKey,
				CohereAPIKey:    cfg.Brains.CohereAPIKey,
			})
			if err != nil {
				return err
			}

			opts := arena.Opts{
				DB:        gormDB,
				Brain:     b,
				ChannelID: channelID,
				Scenario:  scenario,
				Fighters: [2]arena.Fighter{
					fighterFromFlags(f1),
					fighterFromFlags(f2),
				},
				Config: cfg.Arena,
			}
			if split {
				opts.Mode = arena.SplitEvenly
			} else {
				payer, err := methodFromFlags(payerUser, payerGuild)
				if err != nil {
					return err
				}
				opts.Mode = arena.SinglePayer
				opts.Payer = payer
			}

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
			if _, err := adapter.Listen(ctx); err != nil {
				return err
			}

			opts.Collector = adapter
			opts.Notifier = adapter
			ctrl, err := arena.New(opts)
			if err != nil {
				return err
			}

			if err := ctrl.Start(ctx); err != nil {
				return err
			}
			if err := ctrl.Run(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Battle finished.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "conjure.yaml", "path to config file")
	cmd.Flags().StringVar(&channelID, "channel", "", "channel the battle plays out in")
	cmd.Flags().StringVar(&scenario, "scenario", "", "battle scenario (invented by the referee when empty)")
	cmd.Flags().BoolVar(&split, "split", false, "split every charge across both fighters")
	cmd.Flags().StringVar(&payerUser, "payer-user", "", "user wallet that sponsors the battle")
	cmd.Flags().StringVar(&payerGuild, "payer-guild", "", "guild wallet that sponsors the battle")
	cmd.Flags().StringVar(&f1.userID, "fighter1-user", "", "first fighter's user ID")
	cmd.Flags().StringVar(&f1.displayName, "fighter1-display", "", "first fighter's display name (defaults to character name)")
	cmd.Flags().StringVar(&f1.name, "fighter1-name", "", "first fighter's character name")
	cmd.Flags().StringVar(&f1.description, "fighter1-desc", "", "first fighter's character description")
	cmd.Flags().StringVar(&f2.userID, "fighter2-user", "", "second fighter's user ID")
	cmd.Flags().StringVar(&f2.displayName, "fighter2-display", "", "second fighter's display name (defaults to character name)")
	cmd.Flags().StringVar(&f2.name, "fighter2-name", "", "second fighter's character name")
	cmd.Flags().StringVar(&f2.description, "fighter2-desc", "", "second fighter's character description")
	cmd.MarkFlagRequired("channel")
	cmd.MarkFlagRequired("fighter1-user")
	cmd.MarkFlagRequired("fighter1-name")
	cmd.MarkFlagRequired("fighter2-user")
	cmd.MarkFlagRequired("fighter2-name")
	return cmd
}

func fighterFromFlags(f fighterFlags) arena.Fighter {
	display := f.displayName
	if display == "" {
		display = f.name
	}
	return arena.Fighter{
		UserID:      f.userID,
		DisplayName: display,
		Character:   brain.Character{Name: f.name, Description: f.description},
		Payment:     credit.UserMethod(f.userID),
	}
}
