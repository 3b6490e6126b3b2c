package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type hostView struct {
	Platform      string `json:"platform"`
	Identifier    string `json:"identifier"`
	Status        string `json:"status"`
	CPUAvailable  int    `json:"cpu_available"`
	MemoryAvailMB int    `json:"memory_avail_mb"`
	DiskAvailGB   int    `json:"disk_avail_gb"`
}

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "List known hosts and their available resources",
	RunE:  runHosts,
}

func runHosts(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverAddr)
	var resp struct {
		Hosts []hostView `json:"hosts"`
	}
	if err := client.get(context.Background(), "/hosts", &resp); err != nil {
		printError("%v", err)
		return err
	}

	if output == "json" {
		data, _ := json.MarshalIndent(resp.Hosts, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(resp.Hosts) == 0 {
		printInfo("no hosts known to the Overseer")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"PLATFORM", "HOST", "STATUS", "CPU AVAIL", "MEM AVAIL (MB)", "DISK AVAIL (GB)"})
	table.SetBorder(false)
	for _, h := range resp.Hosts {
		table.Append([]string{
			h.Platform, h.Identifier, h.Status,
			fmt.Sprintf("%d", h.CPUAvailable),
			fmt.Sprintf("%d", h.MemoryAvailMB),
			fmt.Sprintf("%d", h.DiskAvailGB),
		})
	}
	table.Render()
	return nil
}
