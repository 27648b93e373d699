package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forkline-ai/forkline"
	"github.com/forkline-ai/forkline/nodes"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run a local chat session",
	Long:  `Runs a single conversation thread in the terminal against an in-memory store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		levelRaw, _ := cmd.Flags().GetString("log-level")
		logger := forkline.NewLogger(parseLogLevel(levelRaw))
		userID, _ := cmd.Flags().GetString("user")

		graph, err := nodes.Build(defaultDeps(logger))
		if err != nil {
			return err
		}
		engine, err := forkline.NewEngine(forkline.EngineOptions{
			Graph:  graph,
			Store:  forkline.NewMemoryStore(),
			Logger: logger,
		})
		if err != nil {
			return err
		}

		threadID := forkline.NewThreadID()
		formatter := forkline.NewEventFormatter()

		color.Cyan("Forkline chat. Thread %s. Type \"exit\" to quit.", threadID)

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				break
			}

			sink := forkline.NewChannelSink(256)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for event := range sink.Events() {
					formatter.Print(event)
				}
			}()

			result, err := engine.SubmitTurn(cmd.Context(), threadID, forkline.State{
				forkline.ChannelMessages:      []forkline.Message{forkline.UserMessage(line)},
				forkline.ChannelSessionID:     threadID,
				forkline.ChannelUserID:        userID,
				forkline.ChannelSourceChannel: "cli",
			}, sink)
			sink.Close()
			<-done
			if err != nil {
				color.Red("turn failed: %v", err)
				continue
			}
			if msg, ok := forkline.LastAssistantMessage(result.Snapshot.Messages(forkline.ChannelMessages)); ok {
				color.Green(msg.Content)
			}
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("user", "local", "User ID for preference storage")
}
