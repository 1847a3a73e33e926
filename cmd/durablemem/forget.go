package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Delete every memory for a user",
	RunE:  runForget,
}

func init() {
	rootCmd.AddCommand(forgetCmd)
	forgetCmd.Flags().String("user", "", "user id to forget")
}

func runForget(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		return fmt.Errorf("--user is required")
	}

	ctx := context.Background()
	svc, err := buildService(ctx)
	if err != nil {
		return err
	}

	count, err := svc.ForgetUser(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Printf("{\"deleted\": %d}\n", count)
	return nil
}
