package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/napclaw/internal/channels/qq"
	"github.com/nextlevelbuilder/napclaw/internal/channels/qq/onebot"
	"github.com/nextlevelbuilder/napclaw/internal/config"
)

func sendCmd() *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "send <target> <text...>",
		Short: "Send a one-shot message through the bridge",
		Long:  "Send a message without running the gateway. Target is \"group:<id>\", \"user:<id>\", or a bare numeric group id.",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "load config: %v\n", err)
				os.Exit(1)
			}
			if err := runSend(cfg, accountID, args[0], strings.Join(args[1:], " ")); err != nil {
				fmt.Fprintf(os.Stderr, "send: %v\n", err)
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id (default: resolved primary)")
	return cmd
}

func runSend(cfg *config.Config, accountID, target, text string) error {
	acct := qq.ResolveAccount(cfg, accountID)
	if !acct.Configured() {
		return fmt.Errorf("account %q is not configured", acct.ID)
	}

	isGroup, id := qq.ParseTarget(target)
	if id == "" {
		return fmt.Errorf("empty target id in %q", target)
	}

	client := qq.NewProbeClient(acct)
	segments := []onebot.Segment{onebot.TextSegment(text)}

	var messageID string
	var err error
	if isGroup {
		messageID, err = client.SendGroupMsg(context.Background(), id, segments)
	} else {
		messageID, err = client.SendPrivateMsg(context.Background(), id, segments)
	}
	if err != nil {
		return err
	}

	fmt.Printf("sent (message_id %s)\n", messageID)
	return nil
}
