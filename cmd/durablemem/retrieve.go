package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oceanbase/durablemem-go/pkg/vectorindex"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Retrieve the top memories matching a query",
	RunE:  runRetrieve,
}

func init() {
	rootCmd.AddCommand(retrieveCmd)
	retrieveCmd.Flags().String("user", "", "restrict results to this user id")
	retrieveCmd.Flags().String("query", "", "the query text")
	retrieveCmd.Flags().Int("top-k", 10, "maximum number of results")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	query, _ := cmd.Flags().GetString("query")
	topK, _ := cmd.Flags().GetInt("top-k")
	if query == "" {
		return fmt.Errorf("--query is required")
	}

	ctx := context.Background()
	svc, err := buildService(ctx)
	if err != nil {
		return err
	}

	var filter vectorindex.Payload
	if userID != "" {
		filter = vectorindex.Payload{"user_id": userID}
	}

	results, err := svc.Retrieve(ctx, query, topK, filter)
	if err != nil {
		return err
	}
	return printJSON(results)
}
