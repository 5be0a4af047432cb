package cmd

import (
	"errors"
	"fmt"

	"github.com/khulnasoft-lab/vulnmap-api-import/internal/utils"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/vulnmap"
	"github.com/spf13/cobra"
)

var orgsNotificationsCmd = &cobra.Command{
	Use:   "orgs:notifications",
	Short: "Disable every notification of an org",
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, _ := cmd.Flags().GetString("orgId")
		if orgID == "" {
			return errors.New("--orgId is required")
		}
		client, err := orgsClient()
		if err != nil {
			return err
		}
		if err := client.SetNotificationPreferences(cmd.Context(), orgID, vulnmap.DisabledNotifications()); err != nil {
			return err
		}
		utils.Log.Infof("Disabled notifications for org %s", orgID)
		return nil
	},
}

var orgsDeleteCmd = &cobra.Command{
	Use:   "orgs:delete",
	Short: "Delete an org and everything in it",
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, _ := cmd.Flags().GetString("orgId")
		yes, _ := cmd.Flags().GetBool("yes")
		if orgID == "" {
			return errors.New("--orgId is required")
		}
		if !yes {
			return fmt.Errorf("refusing to delete org %s without --yes", orgID)
		}
		client, err := orgsClient()
		if err != nil {
			return err
		}
		if err := client.DeleteOrg(cmd.Context(), orgID); err != nil {
			return err
		}
		utils.Log.Infof("Deleted org %s", orgID)
		return nil
	},
}

func orgsClient() (*vulnmap.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newVulnmapClient(cfg, "vulnmap-api-import:orgs")
}

func init() {
	rootCmd.AddCommand(orgsNotificationsCmd)
	rootCmd.AddCommand(orgsDeleteCmd)
	orgsNotificationsCmd.Flags().String("orgId", "", "Public id of the organization in Vulnmap")
	orgsDeleteCmd.Flags().String("orgId", "", "Public id of the organization in Vulnmap")
	orgsDeleteCmd.Flags().Bool("yes", false, "Confirm the deletion")
}
