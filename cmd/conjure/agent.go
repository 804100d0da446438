package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/davenport-labs/conjure/internal/store"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Agent registry commands",
	}

	cmd.AddCommand(newAgentCreateCmd())
	cmd.AddCommand(newAgentListCmd())
	return cmd
}

func newAgentCreateCmd() *cobra.Command {
	var configPath string
	var opts store.CreateAgentOpts

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			agent, err := store.CreateAgent(gormDB, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created agent %s (%s)\n", agent.Identifier, agent.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "conjure.yaml", "path to config file")
	cmd.Flags().StringVar(&opts.CreatorID, "creator", "", "creator user ID")
	cmd.Flags().StringVar(&opts.Name, "name", "", "agent display name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "persona description (system prompt)")
	cmd.Flags().StringVar(&opts.AvatarURL, "avatar", "", "avatar image URL")
	cmd.Flags().Int64Var(&opts.PricePerInvocation, "price-invocation", 0, "credits charged per summon")
	cmd.Flags().Int64Var(&opts.PricePerReply, "price-reply", 5, "credits charged per reply")
	cmd.Flags().BoolVar(&opts.Public, "public", false, "anyone may summon this agent")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("description")
	return cmd
}

func newAgentListCmd() *cobra.Command {
	var configPath string
	var creator string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			agents, err := store.ListPublicAgents(gormDB)
			if creator != "" {
				agents, err = store.ListAgentsByCreator(gormDB, creator)
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "IDENTIFIER\tNAME\tPUBLIC\tINVOCATIONS\tREPLIES")
			for _, a := range agents {
				fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%d\n", a.Identifier, a.Name, a.Public, a.Invocations, a.Replies)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "conjure.yaml", "path to config file")
	cmd.Flags().StringVar(&creator, "creator", "", "list all agents by this creator instead of public ones")
	return cmd
}
