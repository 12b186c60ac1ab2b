package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/buildcfg/internal/project"
	"github.com/pendergraft/buildcfg/internal/validation"
)

func createCheckCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration",
		Long: `Load the project file, expand ${VAR} references from the environment and
validate the result. Without a project file the built-in defaults are checked.

EXAMPLES:
  # Check buildcfg.toml in the current directory
  buildcfg check

  # Check a specific file and re-check on every save
  buildcfg check --file deploy/buildcfg.yaml --watch
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return runCheckWatch(ctx, cmd.OutOrStdout())
			}
			return runCheck(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "re-check whenever the project file changes")

	return cmd
}

func runCheck(w io.Writer) error {
	r, path, err := loadRecord()
	if err != nil {
		return err
	}
	printCheckResult(w, sourceName(path), r, nil)
	return nil
}

func runCheckWatch(ctx context.Context, w io.Writer) error {
	path, err := resolveProjectFile()
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New("--watch needs a project file; run 'buildcfg init' or pass --file")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	fmt.Fprintf(w, "Watching %s (Ctrl+C to stop)\n", path)
	return project.Watch(ctx, path, project.OSEnv(), logger, func(r *project.Record, err error) {
		printCheckResult(w, path, r, err)
	})
}

func printCheckResult(w io.Writer, source string, r *project.Record, err error) {
	if err != nil {
		fmt.Fprintf(w, "❌ %s: %v\n", source, err)
		return
	}
	fmt.Fprintf(w, "✅ %s is valid\n", source)
	fmt.Fprintf(w, "   networks:  %s\n", strings.Join(r.NetworkNames(), ", "))
	versions := make([]string, len(r.Compilers))
	for i, c := range r.Compilers {
		versions[i] = c.Version
	}
	fmt.Fprintf(w, "   compilers: %s\n", strings.Join(versions, ", "))
	for _, name := range r.NetworkNames() {
		if _, err := r.RequireSigner(name); err != nil {
			fmt.Fprintf(w, "   ⚠️  %v\n", err)
		}
	}
	if !r.VerificationEnabled() {
		fmt.Fprintf(w, "   ⚠️  source verification disabled (set %s)\n", project.EnvEtherscan)
	}
}

func createShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration with secrets masked",
		Long: `Show the resolved configuration. Credentials and the explorer key are
masked; the address each credential signs as is shown instead.

EXAMPLES:
  buildcfg show
  buildcfg show --json
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, path, err := loadRecord()
			if err != nil {
				return err
			}
			return runShow(cmd.OutOrStdout(), r, path, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runShow(w io.Writer, r *project.Record, path string, jsonOutput bool) error {
	redacted := r.Redacted()
	if jsonOutput {
		data, err := project.Encode(redacted, project.FormatJSON)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	signers := r.Signers()

	fmt.Fprintf(w, "Source:       %s\n", sourceName(path))
	if r.DefaultNetwork != "" {
		fmt.Fprintf(w, "Default:      %s\n", r.DefaultNetwork)
	}
	if r.VerificationEnabled() {
		fmt.Fprintln(w, "Verification: enabled")
	} else {
		fmt.Fprintln(w, "Verification: disabled")
	}
	fmt.Fprintf(w, "Plugins:      %s\n", strings.Join(r.Plugins, ", "))

	fmt.Fprintln(w, "\nNetworks:")
	for _, n := range redacted.Networks {
		fmt.Fprintf(w, "  %s\n", n.Name)
		fmt.Fprintf(w, "    url:       %s\n", n.URL)
		if n.GasPrice != nil {
			fmt.Fprintf(w, "    gas price: %d wei\n", *n.GasPrice)
		}
		if n.ChainID != 0 {
			fmt.Fprintf(w, "    chain id:  %d\n", n.ChainID)
		}
		for i, account := range n.Accounts {
			addr := signers[n.Name][i]
			if addr == "" {
				addr = "not a private key"
			}
			fmt.Fprintf(w, "    signer:    %s (%s)\n", addr, account)
		}
		if len(n.Accounts) == 0 {
			fmt.Fprintf(w, "    signer:    %s\n", signerStatus(r, n.Name))
		}
	}

	fmt.Fprintln(w, "\nCompilers:")
	for _, c := range r.Compilers {
		fmt.Fprintf(w, "  %s%s\n", c.Version, optimizerSummary(c))
	}

	fmt.Fprintln(w, "\nPaths:")
	for _, role := range project.PathRoles {
		fmt.Fprintf(w, "  %-10s %s\n", role+":", r.Paths.Get(role))
	}
	return nil
}

func signerStatus(r *project.Record, network string) string {
	accounts, err := r.RequireSigner(network)
	switch {
	case err != nil:
		return fmt.Sprintf("missing (set %s)", project.EnvPrivateKey)
	case len(accounts) == 0:
		return "node accounts"
	default:
		return fmt.Sprintf("%d configured", len(accounts))
	}
}

func optimizerSummary(c project.CompilerConfig) string {
	var parts []string
	if c.Optimizer.Enabled {
		parts = append(parts, fmt.Sprintf("optimizer, %d runs", c.Optimizer.Runs))
	}
	if c.EVMVersion != "" {
		parts = append(parts, "evm "+c.EVMVersion)
	}
	if c.ViaIR {
		parts = append(parts, "via-ir")
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, "; ") + ")"
}

func createExportCmd() *cobra.Command {
	var format string
	var redact bool
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the resolved configuration",
		Long: `Export the resolved configuration as JSON, TOML or YAML, in the shape the
build tooling reads. References are expanded, so the output holds real
credentials unless --redact is given.

EXAMPLES:
  # JSON for the build tooling
  buildcfg export --format json --output build.config.json

  # Masked YAML for a bug report
  buildcfg export --format yaml --redact
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := project.ParseFormat(format)
			if err != nil {
				return err
			}
			r, _, err := loadRecord()
			if err != nil {
				return err
			}
			if output == "" {
				return runExport(cmd.OutOrStdout(), r, f, redact)
			}
			out, err := os.OpenFile(output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := runExport(out, r, f, redact); err != nil {
				out.Close()
				return err
			}
			return out.Close()
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "output format: json, toml or yaml")
	cmd.Flags().BoolVar(&redact, "redact", false, "mask credentials and the explorer key")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")

	return cmd
}

func runExport(w io.Writer, r *project.Record, format project.Format, redact bool) error {
	if redact {
		r = r.Redacted()
	}
	data, err := project.Encode(r, format)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func createInitCmd() *cobra.Command {
	var format string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a project file from the defaults",
		Long: `Write buildcfg.toml (or .yaml/.json) holding the default configuration.
The signing key and explorer key are written as ${PRIVATE_KEY} and
${ETHERSCAN} references, never as values.

EXAMPLES:
  buildcfg init
  buildcfg init --format yaml --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.OutOrStdout(), ".", format, force)
		},
	}

	cmd.Flags().StringVar(&format, "format", "toml", "file format: toml, yaml or json")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing project file")

	return cmd
}

func runInit(w io.Writer, dir, format string, force bool) error {
	f, err := project.ParseFormat(format)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "buildcfg."+string(f))

	if !force {
		if existing, err := project.FindProjectFile(dir); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", existing)
		}
	}

	if err := project.WriteFile(path, project.Template(), 0644); err != nil {
		return err
	}

	fmt.Fprintf(w, "✅ Created %s\n", path)
	fmt.Fprintf(w, "   Set %s and %s in your environment before deploying.\n", project.EnvPrivateKey, project.EnvEtherscan)
	return nil
}

func createNetworksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List network targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := loadRecord()
			if err != nil {
				return err
			}
			return runNetworks(cmd.OutOrStdout(), r)
		},
	}
}

func runNetworks(out io.Writer, r *project.Record) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tURL\tGAS PRICE\tSIGNER")
	for _, n := range r.Networks {
		gas := "auto"
		if n.GasPrice != nil {
			gas = fmt.Sprintf("%d", *n.GasPrice)
		}
		marker := ""
		if n.Name == r.DefaultNetwork {
			marker = " *"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", n.Name, marker, n.URL, gas, signerStatus(r, n.Name))
	}
	return w.Flush()
}

func createCompilersCmd() *cobra.Command {
	var supported bool

	cmd := &cobra.Command{
		Use:   "compilers",
		Short: "List configured compilers",
		Long: `List the configured compilers, or with --supported the solc releases
the configuration accepts.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if supported {
				return runSupportedCompilers(cmd.OutOrStdout())
			}
			r, _, err := loadRecord()
			if err != nil {
				return err
			}
			return runCompilers(cmd.OutOrStdout(), r)
		},
	}

	cmd.Flags().BoolVar(&supported, "supported", false, "list supported solc releases")

	return cmd
}

func runCompilers(out io.Writer, r *project.Record) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tOPTIMIZER\tRUNS\tEVM\tVIA-IR")
	for _, c := range r.Compilers {
		optimizer, runs := "off", "-"
		if c.Optimizer.Enabled {
			optimizer, runs = "on", fmt.Sprintf("%d", c.Optimizer.Runs)
		}
		evm := c.EVMVersion
		if evm == "" {
			evm = "default"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", c.Version, optimizer, runs, evm, c.ViaIR)
	}
	return w.Flush()
}

func runSupportedCompilers(w io.Writer) error {
	versions := validation.SupportedCompilerVersions()
	latest := validation.ResolveLatest(versions)
	for _, v := range versions {
		switch v {
		case latest:
			fmt.Fprintf(w, "%s (latest)\n", v)
		case project.DefaultSolcVersion:
			fmt.Fprintf(w, "%s (default)\n", v)
		default:
			fmt.Fprintln(w, v)
		}
	}
	return nil
}
