package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/khulnasoft-lab/vulnmap-api-import/internal/config"
	"github.com/khulnasoft-lab/vulnmap-api-import/internal/utils"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/importlog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listPendingCmd = &cobra.Command{
	Use:   "list:pending",
	Short: "Print the targets of an import file that are not imported yet",
	Long: `Reads import-projects.json (--file or VULNMAP_IMPORT_PATH) and drops every
target already listed in the imported targets log under VULNMAP_LOG_PATH.
The remaining targets are printed as an import file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		if file == "" {
			file = cfg.ImportPath
		}
		importFile, err := importlog.ImportProjectsFile(file)
		if err != nil {
			return err
		}
		loggingPath, err := importlog.LoggingPath(cfg.LogPath)
		if err != nil {
			return err
		}

		pending, skipped, err := importlog.Pending(importFile, filepath.Join(loggingPath, importlog.ImportLogName))
		if err != nil {
			return err
		}
		utils.Log.Infof("Skipping %d already imported target(s), %d left", skipped, len(pending))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]interface{}{"targets": pending}); err != nil {
			return fmt.Errorf("could not print pending targets: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listPendingCmd)
	listPendingCmd.Flags().String("file", "", "Path to import-projects.json or the folder holding it")
}
