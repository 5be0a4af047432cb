package cmd

import (
	"fmt"
	"os"

	"github.com/khulnasoft-lab/vulnmap-api-import/internal/utils"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/importlog"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/manifests"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/projectsync"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Bring the projects of a target in line with a local checkout",
	Long: `Compares the projects Vulnmap monitors for a target with the manifests in a
local checkout of it. Manifests with no project are listed for import; projects
whose manifest is gone are deactivated or deleted depending on --mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, _ := cmd.Flags().GetString("orgId")
		targetName, _ := cmd.Flags().GetString("target")
		repoPath, _ := cmd.Flags().GetString("repoPath")
		includeContainer, _ := cmd.Flags().GetBool("includeContainer")
		branch, _ := cmd.Flags().GetString("branch")
		modeName, _ := cmd.Flags().GetString("mode")

		mode, err := projectsync.ParseMode(modeName)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newVulnmapClient(cfg, "vulnmap-api-import:sync")
		if err != nil {
			return err
		}

		// The failed sync log is optional here.
		loggingPath := ""
		if cfg.LogPath != "" {
			if loggingPath, err = importlog.LoggingPath(cfg.LogPath); err != nil {
				return err
			}
		}

		types := manifests.DefaultTypes()
		if includeContainer {
			types = manifests.TypesWithContainer()
		}

		res, err := projectsync.Run(cmd.Context(), projectsync.Config{
			Client:        client,
			OrgID:         orgID,
			TargetName:    targetName,
			RepoPath:      repoPath,
			ManifestTypes: types,
			Branch:        branch,
			Mode:          mode,
			LoggingPath:   loggingPath,
			Concurrency:   cfg.Concurrency,
			Log:           utils.Log,
		})
		if err != nil {
			return err
		}

		printSyncResult(res, mode)
		if len(res.Failed) > 0 {
			fmt.Fprintf(os.Stderr, "%d project update(s) failed\n", len(res.Failed))
			os.Exit(1)
		}
		return nil
	},
}

func printSyncResult(res *projectsync.Result, mode projectsync.Mode) {
	fmt.Printf("Target %s (%s)\n", res.Target.DisplayName, res.Target.ID)

	fmt.Printf("Manifests to import: %d\n", len(res.Actions.Import))
	for _, m := range res.Actions.Import {
		fmt.Printf("  + %s\n", m)
	}
	fmt.Printf("Projects to remove: %d\n", len(res.Actions.Remove))
	for _, p := range res.Actions.Remove {
		fmt.Printf("  - %s (%s)\n", p.Name, p.ID)
	}

	switch mode {
	case projectsync.Deactivate:
		fmt.Printf("Deactivated %d project(s)\n", len(res.Deactivated))
	case projectsync.Delete:
		fmt.Printf("Deleted %d project(s)\n", len(res.Deleted))
	}
	if len(res.Updated) > 0 {
		fmt.Printf("Moved %d project(s) to a new branch\n", len(res.Updated))
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().String("orgId", "", "Public id of the organization in Vulnmap")
	syncCmd.Flags().String("target", "", "Display name of the target, e.g. owner/repo")
	syncCmd.Flags().String("repoPath", ".", "Path to a local checkout of the target")
	syncCmd.Flags().Bool("includeContainer", false, "Also reconcile Dockerfile projects")
	syncCmd.Flags().String("branch", "", "Move the remaining projects to this branch")
	syncCmd.Flags().String("mode", string(projectsync.DryRun), "What to do with stale projects: dry-run, deactivate or delete")
}
