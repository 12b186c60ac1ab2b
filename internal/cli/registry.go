package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/buildcfg/internal/project"
	"github.com/pendergraft/buildcfg/pkg/client"
)

func createPushCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "push <project>",
		Short: "Publish the project file as a new snapshot",
		Long: `Publish the project file to the registry as the project's next snapshot.
The document is sent as written: ${VAR} references stay references and a
document holding a literal credential is refused by the server.

Pushing a document identical to the latest snapshot is reported and skipped.

EXAMPLES:
  buildcfg push token-sale

  # Ask the server to check the document without storing it
  buildcfg push token-sale --dry-run
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd.Context(), cmd.OutOrStdout(), newClient(), args[0], dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate on the server without publishing")

	return cmd
}

func runPush(ctx context.Context, w io.Writer, c *client.Client, name string, dryRun bool) error {
	data, format, path, err := readDocument()
	if err != nil {
		return err
	}

	// Catch local mistakes before the round trip.
	doc, err := project.ParseDocument(data, format)
	if err != nil {
		return fmt.Errorf("%s: %w", sourceName(path), err)
	}
	if secrets := doc.LiteralSecrets(); len(secrets) > 0 {
		return fmt.Errorf("%s holds literal secrets at %v; replace them with ${VAR} references", sourceName(path), secrets)
	}

	if dryRun {
		v, err := c.Validate(ctx, data, string(format))
		if err != nil {
			return fmt.Errorf("failed to validate: %w", err)
		}
		if !v.Valid {
			if v.Error != nil {
				return fmt.Errorf("server rejected %s: %s", sourceName(path), v.Error.Message)
			}
			return fmt.Errorf("server rejected %s: literal secrets at %v", sourceName(path), v.LiteralSecrets)
		}
		fmt.Fprintf(w, "✅ %s would be accepted (fingerprint %s)\n", sourceName(path), v.Fingerprint)
		return nil
	}

	snap, err := c.Push(ctx, name, data, string(format))
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && client.IsUnchanged(err) {
			fmt.Fprintf(w, "Already up to date: %s\n", apiErr.Message)
			return nil
		}
		return fmt.Errorf("failed to push: %w", err)
	}

	fmt.Fprintf(w, "✅ Pushed %s revision %d\n", snap.Project, snap.Revision)
	fmt.Fprintf(w, "   id:          %s\n", snap.ID)
	fmt.Fprintf(w, "   fingerprint: %s\n", snap.Fingerprint)
	return nil
}

func createPullCmd() *cobra.Command {
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "pull <project> [snapshot-id]",
		Short: "Download a snapshot",
		Long: `Download a snapshot's document, the latest one unless an id is given.

EXAMPLES:
  # Print the latest snapshot as TOML
  buildcfg pull token-sale

  # Save a specific snapshot as the local project file
  buildcfg pull token-sale 3f0c... --format yaml --output buildcfg.yaml
`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := "latest"
			if len(args) == 2 {
				id = args[1]
			}
			f, err := project.ParseFormat(format)
			if err != nil {
				return err
			}
			return runPull(cmd.Context(), cmd.OutOrStdout(), newClient(), args[0], id, f, output)
		},
	}

	cmd.Flags().StringVar(&format, "format", "toml", "document format: toml, yaml or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")

	return cmd
}

func runPull(ctx context.Context, w io.Writer, c *client.Client, name, id string, format project.Format, output string) error {
	doc, err := c.Pull(ctx, name, id, string(format))
	if err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("no snapshot %s for %s", id, name)
		}
		return fmt.Errorf("failed to pull: %w", err)
	}

	if output == "" {
		_, err := w.Write(doc.Data)
		return err
	}
	if err := os.WriteFile(output, doc.Data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintf(w, "✅ Saved %s revision %d to %s\n", name, doc.Revision, output)
	return nil
}

func createHistoryCmd() *cobra.Command {
	var limit int
	var cursor string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history [project]",
		Short: "List snapshots of a project, or projects in the registry",
		Long: `List a project's snapshots, newest first. Without a project, list the
projects in the registry.

EXAMPLES:
  buildcfg history
  buildcfg history token-sale --limit 5
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := client.ListOptions{Limit: limit, Cursor: cursor}
			if len(args) == 0 {
				return runProjects(cmd.Context(), cmd.OutOrStdout(), newClient(), opts, jsonOutput)
			}
			return runHistory(cmd.Context(), cmd.OutOrStdout(), newClient(), args[0], opts, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of items to show")
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue from a previous page")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runHistory(ctx context.Context, out io.Writer, c *client.Client, name string, opts client.ListOptions, jsonOutput bool) error {
	resp, err := c.History(ctx, name, opts)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	if jsonOutput {
		return writeIndentedJSON(out, resp)
	}

	if len(resp.Data) == 0 {
		fmt.Fprintf(out, "No snapshots for %s\n", name)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REVISION\tID\tFINGERPRINT\tNETWORKS\tCREATED")
	for _, s := range resp.Data {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", s.Revision, s.ID, shortFingerprint(s.Fingerprint), len(s.Networks), s.CreatedAt)
	}
	w.Flush()

	if resp.Pagination.HasMore {
		fmt.Fprintf(out, "\n(more available: --cursor %s)\n", resp.Pagination.NextCursor)
	}
	return nil
}

func runProjects(ctx context.Context, out io.Writer, c *client.Client, opts client.ListOptions, jsonOutput bool) error {
	resp, err := c.Projects(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if jsonOutput {
		return writeIndentedJSON(out, resp)
	}

	if len(resp.Data) == 0 {
		fmt.Fprintln(out, "No projects found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tLATEST\tSNAPSHOTS\tUPDATED")
	for _, p := range resp.Data {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", p.Name, p.LatestRevision, p.Snapshots, p.UpdatedAt)
	}
	w.Flush()

	if resp.Pagination.HasMore {
		fmt.Fprintf(out, "\n(more available: --cursor %s)\n", resp.Pagination.NextCursor)
	}
	return nil
}

func createDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <project> <snapshot-id>",
		Short: "Delete a snapshot",
		Long: `Delete a snapshot from the registry. Only the project's owner can delete.
Revision numbers are never reused.

EXAMPLES:
  buildcfg delete token-sale 3f0c... --force
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to delete %s/%s without --force", args[0], args[1])
			}
			if err := newClient().Delete(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("failed to delete: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Deleted %s/%s\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "confirm the deletion")

	return cmd
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
