package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type vmView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Platform     string `json:"platform"`
	Status       string `json:"status"`
	IP           string `json:"ip"`
	IsProduction bool   `json:"is_production"`
}

var vmsCmd = &cobra.Command{
	Use:   "vms",
	Short: "List known VMs",
	RunE:  runVMs,
}

func runVMs(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverAddr)
	var resp struct {
		VMs []vmView `json:"vms"`
	}
	if err := client.get(context.Background(), "/vms", &resp); err != nil {
		printError("%v", err)
		return err
	}

	if output == "json" {
		data, _ := json.MarshalIndent(resp.VMs, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(resp.VMs) == 0 {
		printInfo("no VMs known to the Overseer")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "NAME", "PLATFORM", "STATUS", "IP", "PRODUCTION"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, vm := range resp.VMs {
		table.Append([]string{vm.ID, vm.Name, vm.Platform, vm.Status, vm.IP, fmt.Sprintf("%t", vm.IsProduction)})
	}
	table.Render()
	return nil
}

var vmCmd = &cobra.Command{
	Use:   "vm <id>",
	Short: "Show one VM's detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runVM,
}

func runVM(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverAddr)
	var vm vmView
	if err := client.get(context.Background(), "/vms/"+args[0], &vm); err != nil {
		printError("%v", err)
		return err
	}
	data, _ := json.MarshalIndent(vm, "", "  ")
	fmt.Println(string(data))
	return nil
}
