package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/khulnasoft-lab/vulnmap-api-import/internal/config"
	"github.com/khulnasoft-lab/vulnmap-api-import/internal/utils"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/vulnmap"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/whttp"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const configName = ".vulnmap-api-import"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vulnmap-api-import",
	Short: "Bulk import helpers for Vulnmap organizations.",
	Long: `vulnmap-api-import lists what is already imported into Vulnmap, keeps the
projects of a repository in line with its manifests and tidies up orgs.

Credentials are read from VULNMAP_TOKEN, a .env file or $HOME/` + configName + `.yaml.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/"+configName+".yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	viper.BindPFlag(config.KeyProxy, rootCmd.PersistentFlags().Lookup("proxy"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Real environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error reading .env file: %s\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())
	if err := config.Bind(viper.GetViper()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := filepath.Join(home, configName+".yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

// loadConfig returns the run configuration, failing when no token is set.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireToken(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newVulnmapClient wires the HTTP collaborator for one command.
func newVulnmapClient(cfg *config.Config, userAgent string) (*vulnmap.Client, error) {
	hc, err := whttp.NewClient(whttp.Options{
		Token:             cfg.Token,
		APIURL:            cfg.APIURL,
		RESTURL:           cfg.RESTURL,
		UserAgent:         userAgent,
		Proxy:             cfg.Proxy,
		Timeout:           cfg.Timeout,
		RetryMax:          cfg.Retries,
		RequestsPerSecond: cfg.RPS,
		Logger:            utils.RetryLogger{L: utils.Log},
	})
	if err != nil {
		return nil, err
	}
	return vulnmap.NewClient(hc), nil
}
