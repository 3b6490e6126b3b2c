package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type statusResponse struct {
	VMCount      int `json:"vm_count"`
	HostCount    int `json:"host_count"`
	MissionCount int `json:"mission_count"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show overall Overseer status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverAddr)
	var resp statusResponse
	if err := client.get(context.Background(), "/status", &resp); err != nil {
		printError("%v", err)
		return err
	}

	if output == "json" {
		data, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	printInfo("VMs: %d", resp.VMCount)
	printInfo("Hosts: %d", resp.HostCount)
	printInfo("Active missions: %d", resp.MissionCount)
	return nil
}
