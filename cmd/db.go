package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"text/tabwriter"
	"time"

	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/storage"
	"github.com/spf13/cobra"
)

var dbPath string

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the imported targets database",
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints how many targets each org has in the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openExistingDB(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(context.Background())
		if err != nil {
			return err
		}

		if len(stats) == 0 {
			fmt.Println("No data in the database to generate stats.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "ORG\tINTEGRATIONS\tTARGETS\t")

		var totalTargets int
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%d\t\n", s.OrgID, s.IntegrationCount, s.TargetCount)
			totalTargets += s.TargetCount
		}

		fmt.Fprintln(w, " \t \t \t")
		fmt.Fprintf(w, "TOTAL\t \t%d\t\n", totalTargets)

		w.Flush()

		return nil
	},
}

// targetsCmd represents the targets command
var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Lists the imported targets stored in the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, _ := cmd.Flags().GetString("orgId")

		db, err := openExistingDB(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		list, err := db.ListImportedTargets(context.Background(), orgID)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No targets in the database.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ORG\tINTEGRATION\tTARGET\tBRANCH\tLAST SEEN")
		for _, t := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				t.OrgID, t.IntegrationID, targetLabel(t), t.Target.Branch, t.LastSeenAt.Format(time.RFC3339))
		}
		w.Flush()
		return nil
	},
}

func targetLabel(t storage.ImportedTarget) string {
	switch {
	case t.Target.ProjectKey != "":
		return t.Target.ProjectKey + "/" + t.Target.RepoSlug
	case t.Target.Owner != "":
		return t.Target.Owner + "/" + t.Target.Name
	}
	return t.Target.Name
}

func openExistingDB(path string) (*storage.DB, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database file not found: %s", path)
	}
	return storage.Open(path)
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd)
	dbCmd.AddCommand(statsCmd)
	dbCmd.AddCommand(targetsCmd)
	dbCmd.PersistentFlags().StringVar(&dbPath, "dbpath", "vulnmap-imported.sqlite", "Path to SQLite DB file")
	targetsCmd.Flags().String("orgId", "", "Only list targets of this org")
}
