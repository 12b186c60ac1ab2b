package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pendergraft/buildcfg/internal/project"
	"github.com/pendergraft/buildcfg/pkg/client"
)

const defaultServer = "http://localhost:8080"

var (
	projectFile string
	server      string
	apiKey      string

	cliVersion = "dev"
)

// Execute runs the CLI
func Execute(version string) error {
	cliVersion = version
	rootCmd := &cobra.Command{
		Use:     "buildcfg",
		Short:   "Smart contract build configuration tool",
		Long:    `buildcfg loads, checks and exports the build/deploy configuration of a smart contract project and shares it through a snapshot registry.`,
		Version: version,
		// Errors are printed once by main.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&projectFile, "file", "f", "", "project file (default: buildcfg.toml, buildcfg.yaml or buildcfg.json; built-in defaults when none exists)")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "registry URL (default from BUILDCFG_SERVER or ~/.buildcfg/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "registry API key")

	rootCmd.AddCommand(createCheckCmd())
	rootCmd.AddCommand(createShowCmd())
	rootCmd.AddCommand(createExportCmd())
	rootCmd.AddCommand(createInitCmd())
	rootCmd.AddCommand(createNetworksCmd())
	rootCmd.AddCommand(createCompilersCmd())
	rootCmd.AddCommand(createPushCmd())
	rootCmd.AddCommand(createPullCmd())
	rootCmd.AddCommand(createHistoryCmd())
	rootCmd.AddCommand(createDeleteCmd())
	rootCmd.AddCommand(createAuthCmd())

	return rootCmd.Execute()
}

// UserConfig is the per-user CLI configuration in ~/.buildcfg/config.yaml.
type UserConfig struct {
	Server string `yaml:"server"`
}

func userConfigPath() string {
	return filepath.Join(credentialsDir(), "config.yaml")
}

func loadUserConfig() *UserConfig {
	data, err := os.ReadFile(userConfigPath())
	if err != nil {
		return nil
	}
	var cfg UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil
	}
	return &cfg
}

// getServer returns the registry URL from flag, env, user config, or default
func getServer() string {
	// 1. Command line flag
	if server != "" {
		return server
	}

	// 2. Environment variable
	if env := os.Getenv("BUILDCFG_SERVER"); env != "" {
		return env
	}

	// 3. User config file
	if cfg := loadUserConfig(); cfg != nil && cfg.Server != "" {
		return cfg.Server
	}

	// 4. Default
	return defaultServer
}

// getAPIKey returns the API key from flag, env, or credentials file
func getAPIKey() string {
	// 1. Command line flag
	if apiKey != "" {
		return apiKey
	}

	// 2. Environment variable
	if env := os.Getenv("BUILDCFG_API_KEY"); env != "" {
		return env
	}

	// 3. Credentials file (keyed by server URL)
	return getCredential(getServer())
}

func newClient() *client.Client {
	return client.New(getServer(), getAPIKey(), client.WithUserAgent("buildcfg/"+cliVersion))
}

// resolveProjectFile returns the --file path, or the project file found in
// the working directory. An empty path means none exists.
func resolveProjectFile() (string, error) {
	if projectFile != "" {
		return projectFile, nil
	}
	path, err := project.FindProjectFile(".")
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return path, nil
}

// loadRecord loads the project file, or the built-in defaults when there is
// none, expanding references from the process environment.
func loadRecord() (*project.Record, string, error) {
	path, err := resolveProjectFile()
	if err != nil {
		return nil, "", err
	}
	env := project.OSEnv()
	if path == "" {
		r, err := project.Load(env)
		return r, "", err
	}
	r, err := project.LoadFile(path, env)
	return r, path, err
}

// readDocument returns the raw project document and its format. Without a
// project file it is the defaults template, in TOML.
func readDocument() ([]byte, project.Format, string, error) {
	path, err := resolveProjectFile()
	if err != nil {
		return nil, "", "", err
	}
	if path == "" {
		data, err := project.EncodeDocument(project.Template(), project.FormatTOML)
		return data, project.FormatTOML, "", err
	}
	format, err := project.FormatFromPath(path)
	if err != nil {
		return nil, "", "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", "", fmt.Errorf("reading %s: %w", path, err)
	}
	return data, format, path, nil
}

func sourceName(path string) string {
	if path == "" {
		return "built-in defaults"
	}
	return path
}
