/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/longkey1/chatline/internal/chatline"
	"github.com/longkey1/chatline/internal/chatline/conversation"
	"github.com/longkey1/chatline/internal/chatline/render"
	"github.com/spf13/cobra"
)

var plainOutput bool

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send one message and print the reply",
	Long: `Send a single message to the chat webhook and print the reply.

For an interactive conversation with voice calls, use 'chatline start' instead.

If no message is provided as an argument, it reads from stdin.
The command always prints a reply: the webhook's answer, a fallback when the
answer is empty, or an apology when the request fails. A failed request is
reported in the log, not through the exit status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg, os.Stderr)

		// Get message from arguments or stdin
		var message string
		if len(args) > 0 {
			message = strings.Join(args, " ")
		} else {
			input, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading from stdin: %w", err)
			}
			message = strings.TrimSpace(string(input))
		}
		if message == "" {
			return fmt.Errorf("message is empty")
		}

		timeout, _ := cfg.Timeout()
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		coord := newCoordinator(cfg, logger)
		outcome := coord.StartChat(ctx, message)

		reply := lastReply(coord.Timeline())
		if plainOutput {
			fmt.Println(render.Plain(reply))
		} else {
			fmt.Println(render.Markup(reply, render.NewPrinter(os.Stdout).Emphasis()))
		}

		if outcome == conversation.OutcomeFailed {
			logger.Debug().Msg("reply is the apology")
		}
		return nil
	},
}

// lastReply returns the content of the newest assistant message
func lastReply(timeline []chatline.Message) string {
	for i := len(timeline) - 1; i >= 0; i-- {
		if timeline[i].Sender == chatline.SenderAssistant {
			return timeline[i].Content
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().BoolVar(&plainOutput, "plain", false, "Print the reply without emphasis styling")
}
