package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	deployPlatform string
	deployOS       string
	deployCores    int
	deployMemMiB   int
	deployDiskGiB  int
	deployCount    int
	deployUser     string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Submit a deploy_vm request through the request gate",
	RunE:  runDeploy,
}

func init() {
	deployCmd.Flags().StringVar(&deployPlatform, "platform", "", "target platform (proxmox|esxi|aws|azure)")
	deployCmd.Flags().StringVar(&deployOS, "os", "", "guest OS")
	deployCmd.Flags().IntVar(&deployCores, "cores", 2, "CPU cores")
	deployCmd.Flags().IntVar(&deployMemMiB, "memory-mib", 2048, "memory in MiB")
	deployCmd.Flags().IntVar(&deployDiskGiB, "disk-gib", 20, "disk in GiB")
	deployCmd.Flags().IntVar(&deployCount, "count", 1, "number of VMs to deploy")
	deployCmd.Flags().StringVar(&deployUser, "user", "glassdomectl", "requesting user")
	deployCmd.MarkFlagRequired("platform")
	deployCmd.MarkFlagRequired("os")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverAddr)
	body := map[string]interface{}{
		"platform": deployPlatform,
		"os":       deployOS,
		"specs": map[string]interface{}{
			"cores":      deployCores,
			"memory_mib": deployMemMiB,
			"disk_gib":   deployDiskGiB,
		},
		"count": deployCount,
		"user":  deployUser,
	}

	var decision struct {
		Approved      bool   `json:"approved"`
		RequestID     string `json:"request_id"`
		Reason        string `json:"reason"`
		QueuePosition int    `json:"queue_position"`
	}
	if err := client.post(context.Background(), "/deploy", body, &decision); err != nil {
		printError("%v", err)
		return err
	}

	if !decision.Approved {
		printError("request %s denied: %s", decision.RequestID, decision.Reason)
		return fmt.Errorf("request denied: %s", decision.Reason)
	}
	printSuccess("request %s approved, queue position %d", decision.RequestID, decision.QueuePosition)
	return nil
}
