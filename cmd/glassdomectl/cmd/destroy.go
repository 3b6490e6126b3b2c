package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	destroyForceProduction bool
	destroyUser            string
)

var destroyCmd = &cobra.Command{
	Use:   "destroy <vm-id>",
	Short: "Submit a destroy_vm request through the request gate",
	Args:  cobra.ExactArgs(1),
	RunE:  runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyForceProduction, "force-production", false, "allow destroying a VM flagged as production")
	destroyCmd.Flags().StringVar(&destroyUser, "user", "glassdomectl", "requesting user")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverAddr)
	body := map[string]interface{}{
		"vm_id":            args[0],
		"force_production": destroyForceProduction,
		"user":             destroyUser,
	}

	var decision struct {
		Approved  bool   `json:"approved"`
		RequestID string `json:"request_id"`
		Reason    string `json:"reason"`
	}
	if err := client.post(context.Background(), "/destroy", body, &decision); err != nil {
		printError("%v", err)
		return err
	}

	if !decision.Approved {
		printError("request %s denied: %s", decision.RequestID, decision.Reason)
		return fmt.Errorf("request denied: %s", decision.Reason)
	}
	printSuccess("request %s approved", decision.RequestID)
	return nil
}
