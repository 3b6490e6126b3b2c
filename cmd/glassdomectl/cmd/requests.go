package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type requestView struct {
	ID           string `json:"id"`
	Action       string `json:"action"`
	User         string `json:"user"`
	Status       string `json:"status"`
	DenialReason string `json:"denial_reason,omitempty"`
}

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List requests that have passed through the request gate",
	RunE:  runRequests,
}

func runRequests(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverAddr)
	var resp struct {
		Requests []requestView `json:"requests"`
	}
	if err := client.get(context.Background(), "/requests", &resp); err != nil {
		printError("%v", err)
		return err
	}

	if output == "json" {
		data, _ := json.MarshalIndent(resp.Requests, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(resp.Requests) == 0 {
		printInfo("no requests recorded yet")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "ACTION", "USER", "STATUS", "REASON"})
	table.SetBorder(false)
	for _, r := range resp.Requests {
		table.Append([]string{r.ID, r.Action, r.User, r.Status, r.DenialReason})
	}
	table.Render()
	return nil
}
