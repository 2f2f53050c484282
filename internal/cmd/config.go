package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/changelog-weaver/weaver/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or create weaver configuration",
	Long: `View or create weaver configuration.

Without arguments, displays the current configuration.
Use subcommands to locate or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at $XDG_CONFIG_HOME/weaver/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

const redacted = "********"

// redact hides secrets before a config is printed.
func redact(cfg config.Config) config.Config {
	if cfg.Project.AccessToken != "" {
		cfg.Project.AccessToken = redacted
	}
	if cfg.Model.APIKey != "" {
		cfg.Model.APIKey = redacted
	}
	return cfg
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults and environment)")
	}

	b, err := yaml.Marshal(redact(*cfg))
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(b)
	return err
}

const configHeader = `# Weaver configuration
#
# Every key can also be set through WEAVER_<SECTION>_<KEY> environment
# variables, e.g. WEAVER_PROJECT_ACCESS_TOKEN or WEAVER_RESOLVER_BATCH_SIZE.
# The platform is detected from project.url:
#   https://github.com/<owner>/<repo>
#   https://dev.azure.com/<organization>/<project>

`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	b, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("failed to encode default configuration: %w", err)
	}
	if err := os.WriteFile(configFile, append([]byte(configHeader), b...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Set project.url and project.access_token before running 'weaver generate'.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintln(out, "  1. --config flag")
	fmt.Fprintf(out, "  2. ./%s (current directory)\n", localConfigFile)
	fmt.Fprintf(out, "  3. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s)\n", config.EnvPrefix, config.EnvName("project.url"))

	return nil
}
