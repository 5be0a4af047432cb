package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/khulnasoft-lab/vulnmap-api-import/internal/utils"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/imported"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/importlog"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/storage"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/targets"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/vulnmap"
	"github.com/spf13/cobra"
)

// commandResult is what a command prints and how it exits.
type commandResult struct {
	FileName string
	ExitCode int
	Message  string
	Warning  string
}

var listImportedCmd = &cobra.Command{
	Use:   "list:imported",
	Short: "List all targets imported in Vulnmap for a given group or org",
	Long: `List all targets imported in Vulnmap for a given group & source type.
An analysis is performed on all current organizations and their projects to generate this.
The generated file can be used to skip previously imported targets when importing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		groupID, _ := cmd.Flags().GetString("groupId")
		orgID, _ := cmd.Flags().GetString("orgId")
		typeNames, _ := cmd.Flags().GetStringSlice("integrationType")
		dbPath, _ := cmd.Flags().GetString("db")

		utils.Log.Debugf("Options: groupId=%q orgId=%q integrationType=%v db=%q", groupID, orgID, typeNames, dbPath)

		res := runListImported(cmd.Context(), groupID, orgID, typeNames, dbPath)
		if res.Warning != "" {
			fmt.Fprintln(os.Stderr, res.Warning)
		}
		if res.ExitCode != 0 {
			utils.Log.Debugf("Failed to list imported targets.\n%s", res.Message)
			fmt.Fprintln(os.Stderr, res.Message)
			os.Exit(res.ExitCode)
		}
		fmt.Println(res.Message)
		return nil
	},
}

func runListImported(ctx context.Context, groupID, orgID string, typeNames []string, dbPath string) commandResult {
	types, err := parseIntegrationTypes(typeNames)
	if err != nil {
		return listImportedError(err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return listImportedError(err)
	}
	loggingPath, err := importlog.LoggingPath(cfg.LogPath)
	if err != nil {
		return listImportedError(err)
	}
	client, err := newVulnmapClient(cfg, "vulnmap-api-import:list")
	if err != nil {
		return listImportedError(err)
	}

	var sink imported.Sink = &importlog.FileSink{Dir: loggingPath}
	if dbPath != "" {
		db, err := storage.Open(dbPath)
		if err != nil {
			return listImportedError(fmt.Errorf("could not open database %s: %w", dbPath, err))
		}
		defer db.Close()
		sink = imported.MultiSink{sink, storage.NewSink(db)}
	}

	return createListImported(ctx, imported.Config{
		Client:      client,
		Sink:        sink,
		LoggingPath: loggingPath,
		Concurrency: cfg.Concurrency,
		Log:         utils.Log,
		OnOrgDone: func(org vulnmap.Org, added int) {
			utils.Log.Debugf("Org %s done, %d targets written", org.Label(), added)
		},
	}, imported.Scope{GroupID: groupID, OrgID: orgID}, types)
}

// createListImported runs the listing and turns the outcome into the text
// shown to the user.
func createListImported(ctx context.Context, cfg imported.Config, scope imported.Scope, types []targets.IntegrationType) commandResult {
	if len(types) == 0 {
		types = targets.AllIntegrationTypes()
	}
	res, err := imported.Generate(ctx, cfg, scope, types)
	if err != nil {
		return listImportedError(err)
	}

	out := commandResult{
		FileName: res.FileName,
		Message:  targetsMessage(len(res.Targets), res.FileName, scope, types),
	}
	if len(res.FailedOrgs) > 0 {
		ids := make([]string, len(res.FailedOrgs))
		for i, org := range res.FailedOrgs {
			ids[i] = org.ID
		}
		out.Warning = "Failed to process the following orgs: " + strings.Join(ids, ",")
	}
	return out
}

func targetsMessage(found int, fileName string, scope imported.Scope, types []targets.IntegrationType) string {
	entity := integrationEntity(types)
	if found > 0 {
		return fmt.Sprintf("Found %d %s(s). Written the data to file: %s", found, entity, fileName)
	}
	entityMessage := fmt.Sprintf("Org %s", scope.OrgID)
	if scope.GroupID != "" {
		entityMessage = fmt.Sprintf("Group %s ", scope.GroupID)
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return fmt.Sprintf("⚠ No %s(s) %s and integration type(s) %s!", entity, entityMessage, strings.Join(names, ", "))
}

// integrationEntity names what a listing counts: repos or images for a
// single integration type, targets when several are mixed.
func integrationEntity(types []targets.IntegrationType) string {
	if len(types) != 1 {
		return "target"
	}
	if types[0].IsImage() {
		return "images"
	}
	return "repo"
}

func parseIntegrationTypes(names []string) ([]targets.IntegrationType, error) {
	var out []targets.IntegrationType
	for _, n := range names {
		t, err := targets.ParseIntegrationType(strings.TrimSpace(n))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func listImportedError(err error) commandResult {
	return commandResult{
		ExitCode: 1,
		Message:  "ERROR! Failed to list imported targets in Vulnmap. Try running with `--loglevel debug` for more info.\nERROR: " + err.Error(),
	}
}

func init() {
	rootCmd.AddCommand(listImportedCmd)

	names := make([]string, 0)
	for _, t := range targets.AllIntegrationTypes() {
		names = append(names, string(t))
	}
	listImportedCmd.Flags().String("groupId", "", "Public id of the group in Vulnmap (available on group settings)")
	listImportedCmd.Flags().String("orgId", "", "Public id of the organization in Vulnmap (available in organization settings)")
	listImportedCmd.Flags().StringSlice("integrationType", names, "The configured integration type (source of the projects in Vulnmap e.g. github, github-enterprise). Choices: "+strings.Join(names, ", "))
	listImportedCmd.Flags().String("db", "", "Also record the imported targets in this SQLite database")
}
