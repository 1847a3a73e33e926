package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Extract and reconcile memories from a conversation turn",
	RunE:  runWrite,
}

func init() {
	rootCmd.AddCommand(writeCmd)
	writeCmd.Flags().String("user", "", "user id to scope the written memories to")
	writeCmd.Flags().String("user-message", "", "the user's message for this turn")
	writeCmd.Flags().String("assistant-message", "", "the assistant's reply for this turn")
}

func runWrite(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	userMessage, _ := cmd.Flags().GetString("user-message")
	assistantMessage, _ := cmd.Flags().GetString("assistant-message")
	if userMessage == "" && assistantMessage == "" {
		return fmt.Errorf("--user-message or --assistant-message is required")
	}

	ctx := context.Background()
	svc, err := buildService(ctx)
	if err != nil {
		return err
	}

	written, err := svc.Write(ctx, nil, userMessage, assistantMessage, userID)
	if err != nil {
		return err
	}
	return printJSON(written)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
