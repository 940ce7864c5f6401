package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/napclaw/internal/channels/qq"
	"github.com/nextlevelbuilder/napclaw/internal/config"
)

const probeTimeout = 10 * time.Second

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe every configured QQ bridge and report health",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "load config: %v\n", err)
				os.Exit(1)
			}
			if !runStatus(cfg) {
				os.Exit(1)
			}
		},
	}
}

// runStatus probes each account's bridge and prints a table. Returns false
// when any probe failed.
func runStatus(cfg *config.Config) bool {
	rows := [][]string{{"ACCOUNT", "ENABLED", "TOKEN", "SELF", "STATUS"}}
	allOK := true

	for _, id := range qq.ListAccountIDs(cfg) {
		acct := qq.ResolveAccount(cfg, id)

		if !acct.Enabled {
			rows = append(rows, []string{id, "no", string(acct.TokenSource), "-", "disabled"})
			continue
		}

		result := qq.NewProbeClient(acct).Probe(context.Background(), probeTimeout)
		self := "-"
		status := result.Status
		if result.OK {
			self = result.SelfID
			if result.Nickname != "" {
				self = fmt.Sprintf("%s (%s)", result.Nickname, result.SelfID)
			}
		} else {
			allOK = false
			status = "unreachable"
			if result.Err != nil {
				status = fmt.Sprintf("unreachable: %v", result.Err)
			}
		}
		rows = append(rows, []string{id, "yes", string(acct.TokenSource), self, status})
	}

	printTable(rows)
	return allOK
}

// printTable renders rows with columns padded by display width, so CJK
// nicknames line up.
func printTable(rows [][]string) {
	if len(rows) == 0 {
		return
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for _, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			b.WriteString(cell)
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell)+2))
			}
		}
		fmt.Println(b.String())
	}
}
