package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/workbook/internal/config"
)

type sectionInfo struct {
	Name      string     `json:"name"`
	Title     string     `json:"title"`
	Key       string     `json:"key"`
	Lists     []string   `json:"lists"`
	Creatable bool       `json:"creatable"`
	Count     int        `json:"count"`
	Aggregate any        `json:"aggregate"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// lastUpdated returns the most recent section write, or the zero time when
// nothing has been written.
func lastUpdated(sections []sectionInfo) time.Time {
	var last time.Time
	for _, s := range sections {
		if s.UpdatedAt != nil && s.UpdatedAt.After(last) {
			last = *s.UpdatedAt
		}
	}
	return last
}

func fetchSections(ctx context.Context, client *apiClient) ([]sectionInfo, error) {
	resp, err := client.get(ctx, "/sections")
	if err != nil {
		return nil, err
	}
	var sections []sectionInfo
	if err := decodeJSON(resp, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// parseFields turns key=value arguments into a JSON object. Values that parse
// as JSON keep their type; anything else is a string.
func parseFields(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q, expected key=value", arg)
		}
		var v any
		if json.Unmarshal([]byte(value), &v) == nil {
			fields[key] = v
		} else {
			fields[key] = value
		}
	}
	return fields, nil
}

// requestBody returns the --json flag contents when set, otherwise the parsed
// key=value fields.
func requestBody(cmd *cobra.Command, fieldArgs []string) (any, error) {
	raw, _ := cmd.Flags().GetString("json")
	if raw != "" {
		if len(fieldArgs) > 0 {
			return nil, fmt.Errorf("use either --json or key=value fields, not both")
		}
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("--json is not valid JSON")
		}
		return json.RawMessage(raw), nil
	}
	if len(fieldArgs) == 0 {
		return nil, fmt.Errorf("no fields given")
	}
	return parseFields(fieldArgs)
}

func entryPath(section, id string) string {
	return "/sections/" + url.PathEscape(section) + "/entries/" + url.PathEscape(id)
}

// parseEntryID accepts any non-negative id; planner hours start at 0.
func parseEntryID(s string) (string, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return "", fmt.Errorf("invalid entry id %q", s)
	}
	return strconv.FormatInt(id, 10), nil
}

// printResult prints a mutation response, reporting "unchanged" statuses as
// warnings.
func printResult(resp *http.Response, what string) error {
	var result json.RawMessage
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}
	var status struct {
		Status string `json:"status"`
	}
	if json.Unmarshal(result, &status) == nil && status.Status != "" {
		if status.Status == "unchanged" {
			printWarning("%s: nothing changed", what)
			return nil
		}
		printSuccess("%s: %s", what, status.Status)
		return nil
	}
	return printJSON(os.Stdout, result)
}

// --- sections ---

var sectionsCmd = &cobra.Command{
	Use:   "sections [name]",
	Short: "List workbook sections or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			resp, err := client.get(cmd.Context(), "/sections/"+url.PathEscape(args[0]))
			if err != nil {
				return err
			}
			var info any
			if err := decodeJSON(resp, &info); err != nil {
				return err
			}
			return printJSON(os.Stdout, info)
		}

		sections, err := fetchSections(cmd.Context(), client)
		if err != nil {
			return err
		}
		for _, s := range sections {
			updated := "-"
			if s.UpdatedAt != nil {
				updated = s.UpdatedAt.Local().Format(time.DateTime)
			}
			fmt.Printf("%-22s %5d  %-19s  %s\n", colorize(colorCyan, s.Name), s.Count, updated, s.Title)
		}
		return nil
	},
}

// --- entries ---

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Read and edit section entries",
}

var entriesListCmd = &cobra.Command{
	Use:   "list <section>",
	Short: "List entries of a section as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/sections/%s/entries?limit=%d&offset=%d", url.PathEscape(args[0]), limit, offset)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		total := resp.Header.Get("X-Total-Count")

		var entries []json.RawMessage
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No entries found.")
			return nil
		}
		if err := printJSON(os.Stdout, entries); err != nil {
			return err
		}
		if total != "" && total != strconv.Itoa(len(entries)) {
			printStatus("Showing", "%d of %s", len(entries), total)
		}
		return nil
	},
}

var entriesShowCmd = &cobra.Command{
	Use:   "show <section> <id>",
	Short: "Show a single entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseEntryID(args[1])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), entryPath(args[0], id))
		if err != nil {
			return err
		}
		var entry any
		if err := decodeJSON(resp, &entry); err != nil {
			return err
		}
		return printJSON(os.Stdout, entry)
	},
}

var entriesAddCmd = &cobra.Command{
	Use:   "add <section> [key=value...]",
	Short: "Create an entry",
	Long: `Create an entry in a section.

Examples:
  workbook entries add selfendorse downing="I did nothing" endorsing="I rested"
  workbook entries add proscons --json '{"decision":"move","pros":[{"description":"sun","weight":8}]}'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := requestBody(cmd, args[1:])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/sections/"+url.PathEscape(args[0])+"/entries", body)
		if err != nil {
			return err
		}
		var created struct {
			ID int64 `json:"id"`
		}
		if err := decodeJSON(resp, &created); err != nil {
			return err
		}
		printSuccess("Created %s entry %d", args[0], created.ID)
		return nil
	},
}

var entriesPatchCmd = &cobra.Command{
	Use:   "patch <section> <id> [key=value...]",
	Short: "Update fields of an entry",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseEntryID(args[1])
		if err != nil {
			return err
		}
		body, err := requestBody(cmd, args[2:])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), entryPath(args[0], id), body)
		if err != nil {
			return err
		}
		return printResult(resp, fmt.Sprintf("%s entry %s", args[0], id))
	},
}

var entriesDeleteCmd = &cobra.Command{
	Use:   "delete <section> <id>",
	Short: "Delete an entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseEntryID(args[1])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), entryPath(args[0], id))
		if err != nil {
			return err
		}
		return printResult(resp, fmt.Sprintf("%s entry %s", args[0], id))
	},
}

func init() {
	entriesListCmd.Flags().Int("limit", 0, "maximum number of entries (0 for all)")
	entriesListCmd.Flags().Int("offset", 0, "number of entries to skip")
	entriesAddCmd.Flags().String("json", "", "entry as a JSON object")
	entriesPatchCmd.Flags().String("json", "", "patch as a JSON object")

	entriesCmd.AddCommand(entriesListCmd)
	entriesCmd.AddCommand(entriesShowCmd)
	entriesCmd.AddCommand(entriesAddCmd)
	entriesCmd.AddCommand(entriesPatchCmd)
	entriesCmd.AddCommand(entriesDeleteCmd)
}

// --- items ---

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Edit list items inside an entry (pros, cons, risks, steps...)",
}

var itemsAddCmd = &cobra.Command{
	Use:   "add <section> <id> <list> [key=value...]",
	Short: "Append an item to an entry's list",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseEntryID(args[1])
		if err != nil {
			return err
		}
		body, err := requestBody(cmd, args[3:])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), entryPath(args[0], id)+"/"+url.PathEscape(args[2]), body)
		if err != nil {
			return err
		}
		return printResult(resp, fmt.Sprintf("%s entry %s %s", args[0], id, args[2]))
	},
}

var itemsPatchCmd = &cobra.Command{
	Use:   "patch <section> <id> <list> <item> [key=value...]",
	Short: "Update an item in an entry's list",
	Args:  cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseEntryID(args[1])
		if err != nil {
			return err
		}
		body, err := requestBody(cmd, args[4:])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := entryPath(args[0], id) + "/" + url.PathEscape(args[2]) + "/" + url.PathEscape(args[3])
		resp, err := client.patch(cmd.Context(), path, body)
		if err != nil {
			return err
		}
		return printResult(resp, fmt.Sprintf("%s item %s", args[2], args[3]))
	},
}

var itemsDeleteCmd = &cobra.Command{
	Use:   "delete <section> <id> <list> <item>",
	Short: "Remove an item from an entry's list",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseEntryID(args[1])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := entryPath(args[0], id) + "/" + url.PathEscape(args[2]) + "/" + url.PathEscape(args[3])
		resp, err := client.delete(cmd.Context(), path)
		if err != nil {
			return err
		}
		return printResult(resp, fmt.Sprintf("%s item %s", args[2], args[3]))
	},
}

func init() {
	itemsAddCmd.Flags().String("json", "", "item as a JSON object")
	itemsPatchCmd.Flags().String("json", "", "patch as a JSON object")

	itemsCmd.AddCommand(itemsAddCmd)
	itemsCmd.AddCommand(itemsPatchCmd)
	itemsCmd.AddCommand(itemsDeleteCmd)
}

// --- summary ---

var summaryCmd = &cobra.Command{
	Use:   "summary <section> <id>",
	Short: "Show the computed summary of an entry (scores, totals)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseEntryID(args[1])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), entryPath(args[0], id)+"/summary")
		if err != nil {
			return err
		}
		var result struct {
			Summary any `json:"summary"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		return printJSON(os.Stdout, result.Summary)
	},
}

// --- data ---

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Export, import, back up or purge stored data",
}

var dataExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all sections as a JSON snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var writer io.Writer = os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		}

		if err := exportSnapshot(cmd.Context(), client, writer); err != nil {
			return err
		}
		if output != "" {
			printSuccess("Data exported to %s", output)
		}
		return nil
	},
}

func exportSnapshot(ctx context.Context, client *apiClient, w io.Writer) error {
	resp, err := client.get(ctx, "/export")
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return decodeJSON(resp, nil)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

var dataImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Restore sections from a JSON snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		restored, err := importSnapshot(cmd.Context(), client, data)
		if err != nil {
			return err
		}
		printSuccess("Restored %d sections", restored)
		return nil
	},
}

func importSnapshot(ctx context.Context, client *apiClient, data []byte) (int, error) {
	resp, err := client.send(ctx, http.MethodPost, "/import", bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	var result struct {
		Restored map[string]int `json:"restored"`
		Skipped  []string       `json:"skipped"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return 0, err
	}
	for _, key := range result.Skipped {
		printWarning("Skipped unknown slot %s", key)
	}
	return len(result.Restored), nil
}

var dataBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Queue a snapshot export to the configured backup destination",
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetBool("wait")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/backups", nil)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		id := result["id"]
		if !wait {
			printSuccess("Queued backup %s", id)
			return nil
		}

		printStep("Waiting for backup %s...", id)
		waitCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		st, err := waitForBackup(waitCtx, client, id, time.Second)
		if err != nil {
			return err
		}
		if st.Status == "failed" {
			return fmt.Errorf("backup %s failed after %d attempts: %s", id, st.Attempts, st.LastError)
		}
		printSuccess("Backup %s completed", id)
		return nil
	},
}

type backupStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"lastError"`
}

// waitForBackup polls a queued backup until it completes or fails for good.
func waitForBackup(ctx context.Context, client *apiClient, id string, every time.Duration) (backupStatus, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		resp, err := client.get(ctx, "/backups/"+url.PathEscape(id))
		if err != nil {
			return backupStatus{}, err
		}
		var st backupStatus
		if err := decodeJSON(resp, &st); err != nil {
			return backupStatus{}, err
		}
		if st.Status == "completed" || st.Status == "failed" {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, fmt.Errorf("backup %s still %s: %w", id, st.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

var dataPurgeCmd = &cobra.Command{
	Use:   "purge [section...]",
	Short: "Delete all entries (of every section, or only the named ones)",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL entries. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		names := args
		if len(names) == 0 {
			sections, err := fetchSections(cmd.Context(), client)
			if err != nil {
				return err
			}
			for _, s := range sections {
				names = append(names, s.Name)
			}
		}

		printStep("Clearing %d sections...", len(names))
		failures, err := purgeSections(cmd.Context(), client, names)
		if err != nil {
			return err
		}
		if failures > 0 {
			return fmt.Errorf("%d sections could not be cleared", failures)
		}
		printSuccess("All data purged")
		return nil
	},
}

func purgeSections(ctx context.Context, client *apiClient, names []string) (int, error) {
	failures := 0
	for _, name := range names {
		resp, err := client.delete(ctx, "/sections/"+url.PathEscape(name))
		if err != nil {
			return failures, err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			printError("Failed to clear %s: %v", name, err)
			failures++
		}
	}
	return failures, nil
}

func init() {
	dataExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	dataPurgeCmd.Flags().Bool("confirm", false, "confirm data purge")
	dataBackupCmd.Flags().Bool("wait", false, "wait until the backup has been written")
	dataBackupCmd.Flags().Duration("timeout", 2*time.Minute, "how long --wait waits")
	dataCmd.AddCommand(dataExportCmd)
	dataCmd.AddCommand(dataImportCmd)
	dataCmd.AddCommand(dataBackupCmd)
	dataCmd.AddCommand(dataPurgeCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "$"+k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
