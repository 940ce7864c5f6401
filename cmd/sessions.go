package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/napclaw/internal/config"
	"github.com/nextlevelbuilder/napclaw/internal/store"
)

func sessionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent session activity",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "load config: %v\n", err)
				os.Exit(1)
			}
			if err := runSessions(cfg, limit); err != nil {
				fmt.Fprintf(os.Stderr, "sessions: %v\n", err)
				os.Exit(1)
			}
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max sessions to show")
	return cmd
}

func runSessions(cfg *config.Config, limit int) error {
	s, err := store.Open(config.ExpandHome(cfg.Sessions.Storage))
	if err != nil {
		return err
	}
	defer s.Close()

	records, err := s.List(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no sessions recorded")
		return nil
	}

	rows := [][]string{{"SESSION", "AGENT", "CHAT", "MSGS", "LAST ACTIVE"}}
	for _, rec := range records {
		rows = append(rows, []string{
			rec.Key,
			rec.AgentID,
			rec.ChatID,
			fmt.Sprintf("%d", rec.MessageCount),
			rec.LastActive.Format("2006-01-02 15:04:05"),
		})
	}
	printTable(rows)
	return nil
}
