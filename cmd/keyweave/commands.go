package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/keyweave/internal/config"
	"github.com/kalambet/keyweave/internal/textimport"
	"github.com/kalambet/keyweave/internal/workspace"
)

type workspaceView struct {
	workspace.Snapshot
	SessionID  string `json:"session_id"`
	GaugeInfo  string `json:"gauge_info"`
	SearchInfo string `json:"search_info"`
}

type storyResponse struct {
	Story string `json:"story"`
}

// --- story ---

var storyCmd = &cobra.Command{
	Use:   "story",
	Short: "Show or change the story",
}

var storyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the story, gauge and completed keywords",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/v1/workspace")
		if err != nil {
			return err
		}
		var view workspaceView
		if err := decodeJSON(resp, &view); err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}
		printWorkspace(cmd.OutOrStdout(), view)
		return nil
	},
}

var storySetCmd = &cobra.Command{
	Use:   "set [text]",
	Short: "Replace the story (reads stdin when no text is given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if len(args) == 0 {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			text = strings.TrimRight(string(data), "\n")
		}
		return setStory(cmd, text)
	},
}

var storyImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the story with text extracted from a .txt, .md, .pdf or .html file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textimport.ExtractFile(args[0])
		if err != nil {
			return err
		}
		return setStory(cmd, text)
	},
}

var storyExampleCmd = &cobra.Command{
	Use:   "example <n>",
	Short: fmt.Sprintf("Replace the story with example 1-%d", len(workspace.ExampleStories)),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("example must be a number: %q", args[0])
		}
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), fmt.Sprintf("/v1/story/example/%d", n), nil)
		if err != nil {
			return err
		}
		var result storyResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Story)
		return nil
	},
}

func setStory(cmd *cobra.Command, text string) error {
	client, err := newAPIClient(cmd)
	if err != nil {
		return err
	}
	resp, err := client.put(cmd.Context(), "/v1/story", map[string]string{"text": text})
	if err != nil {
		return err
	}
	if err := decodeJSON(resp, &storyResponse{}); err != nil {
		return err
	}
	printSuccess("Story updated (%d characters)", len([]rune(text)))
	return nil
}

func printWorkspace(w io.Writer, v workspaceView) {
	fmt.Fprintln(w, v.Story)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s %s\n", colorize(colorBold, "Diversity:"), gaugeBar(v.Gauge.Value), v.Gauge.Width)
	if len(v.Completed) > 0 {
		fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Inserted:"), strings.Join(v.Completed, ", "))
	}
	if v.Alert != "" {
		fmt.Fprintln(w, colorize(colorRed, v.Alert))
	}
}

func init() {
	storyShowCmd.Flags().Bool("json", false, "print the full workspace snapshot as JSON")
	storyCmd.AddCommand(storyShowCmd, storySetCmd, storyImportCmd, storyExampleCmd)
}

// --- keyword ---

var keywordCmd = &cobra.Command{
	Use:     "keyword",
	Aliases: []string{"kw"},
	Short:   "List, open and insert keywords",
}

var keywordListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the keyword panel",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/v1/workspace")
		if err != nil {
			return err
		}
		var view workspaceView
		if err := decodeJSON(resp, &view); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if view.Search.Label != "" {
			fmt.Fprintln(out, colorize(colorDim, view.Search.Label))
		}
		for _, k := range view.Keywords {
			printKeyword(out, k.Label, string(k.Phase), k.InsertCompleted)
		}
		return nil
	},
}

var keywordAddCmd = &cobra.Command{
	Use:   "add <keyword>",
	Short: "Add a keyword to the panel",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := strings.Join(args, " ")
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/v1/keywords", map[string]string{"keyword": label})
		if err != nil {
			return err
		}
		var k workspace.Keyword
		if err := decodeJSON(resp, &k); err != nil {
			return err
		}
		printSuccess("Added %s", k.Label)
		return nil
	},
}

var keywordOpenCmd = &cobra.Command{
	Use:   "open <keyword>",
	Short: "Open a keyword and show its concept detail",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleKeyword(cmd, strings.Join(args, " "), true)
	},
}

var keywordCloseCmd = &cobra.Command{
	Use:   "close <keyword>",
	Short: "Close a keyword",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleKeyword(cmd, strings.Join(args, " "), false)
	},
}

var keywordInsertCmd = &cobra.Command{
	Use:   "insert <keyword>",
	Short: "Merge a keyword's concept detail into the story",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := strings.Join(args, " ")
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}

		if err := toggleKeyword(cmd, label, true); err != nil {
			return err
		}

		printStep("Merging %s into the story...", label)
		resp, err := client.post(cmd.Context(), keywordPath(label, "insert"), nil)
		if err != nil {
			return err
		}
		var result storyResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Story)
		return nil
	},
}

// toggleKeyword brings label's tooltip to the wanted state. Opening always
// goes through /open so a stale detail is refreshed.
func toggleKeyword(cmd *cobra.Command, label string, open bool) error {
	client, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	var st workspace.KeywordState
	if open {
		resp, err := client.post(cmd.Context(), keywordPath(label, "open"), nil)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}
	} else {
		if st, err = keywordState(cmd, client, label); err != nil {
			return err
		}
		if st.TooltipOpen {
			resp, err := client.post(cmd.Context(), keywordPath(label, "toggle"), nil)
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, &st); err != nil {
				return err
			}
		}
	}

	if !open {
		printSuccess("Closed %s", label)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), st.Detail)
	if st.Detail == workspace.FailedDetail {
		return errors.New("concept detail unavailable; open the keyword again to retry")
	}
	return nil
}

func keywordState(cmd *cobra.Command, client *apiClient, label string) (workspace.KeywordState, error) {
	resp, err := client.get(cmd.Context(), "/v1/workspace")
	if err != nil {
		return workspace.KeywordState{}, err
	}
	var view workspaceView
	if err := decodeJSON(resp, &view); err != nil {
		return workspace.KeywordState{}, err
	}
	for _, k := range view.Keywords {
		if k.Label == label {
			return k, nil
		}
	}
	return workspace.KeywordState{}, fmt.Errorf("keyword %q is not listed", label)
}

func init() {
	keywordCmd.AddCommand(keywordListCmd, keywordAddCmd, keywordOpenCmd, keywordCloseCmd, keywordInsertCmd)
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Replace the keyword panel with keywords found for a query",
	Long:  workspace.SearchInfo,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/v1/search?query="+url.QueryEscape(query))
		if err != nil {
			return err
		}
		var result struct {
			Label    string              `json:"label"`
			Keywords []workspace.Keyword `json:"keywords"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, colorize(colorDim, result.Label))
		if len(result.Keywords) == 0 {
			fmt.Fprintln(out, "No keywords found.")
		}
		for _, k := range result.Keywords {
			fmt.Fprintf(out, "  %s\n", k.Label)
		}
		return nil
	},
}

// --- diversity ---

var diversityCmd = &cobra.Command{
	Use:   "diversity",
	Short: "Score how much the story changed since the last check",
	Long:  workspace.GaugeInfo,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/v1/diversity", nil)
		if err != nil {
			return err
		}
		var reading workspace.GaugeReading
		if err := decodeJSON(resp, &reading); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", gaugeBar(reading.Value), reading.Width)
		return nil
	},
}

// --- session ---

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the CLI session",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a fresh session and make it current",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		client.sessionID = ""
		resp, err := client.post(cmd.Context(), "/v1/session", nil)
		if err != nil {
			return err
		}
		var result struct {
			SessionID string `json:"session_id"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Started session %s", result.SessionID)
		return nil
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "End the current session and discard its story",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		if client.sessionID == "" {
			printWarning("No current session")
			return nil
		}
		id := client.sessionID
		resp, err := client.delete(cmd.Context(), "/v1/session")
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		client.forgetSession()
		printSuccess("Ended session %s", id)
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionNewCmd, sessionResetCmd)
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

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Stored in %s\n", colorize(colorDim, config.StoreLocation()))
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
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

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a stored configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> [value]",
	Short: "Store a secret in the platform secret store (reads stdin when no value is given)",
	Long:  "Store a secret in the platform secret store. Secret keys:\n  " + strings.Join(config.SecretKeys(), "\n  "),
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		var value string
		if len(args) == 2 {
			value = args[1]
		} else {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			value = strings.TrimSpace(string(data))
		}
		if value == "" {
			return fmt.Errorf("value for %s is empty", key)
		}

		if err := config.SetSecret(key, value); err != nil {
			return err
		}

		printSuccess("Stored %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configUnsetCmd, configSetSecretCmd)
}
