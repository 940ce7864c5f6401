package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/napclaw/internal/channels/qq"
	"github.com/nextlevelbuilder/napclaw/internal/config"
)

func accountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List resolved QQ accounts without contacting the bridge",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "load config: %v\n", err)
				os.Exit(1)
			}
			runAccounts(cfg)
		},
	}
}

func runAccounts(cfg *config.Config) {
	rows := [][]string{{"ACCOUNT", "ENABLED", "TOKEN", "HTTP", "WS", "DM", "GROUP"}}
	for _, id := range qq.ListAccountIDs(cfg) {
		acct := qq.ResolveAccount(cfg, id)
		rows = append(rows, []string{
			id,
			yesNo(acct.Enabled),
			string(acct.TokenSource),
			acct.HTTPURL,
			orDash(acct.WSURL),
			orDash(acct.DMPolicy),
			orDash(acct.GroupPolicy),
		})
	}
	printTable(rows)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
