package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomefetch/tomefetch/internal/config"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show settings and their descriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		showPath, _ := cmd.Flags().GetBool("path")
		if showPath {
			fmt.Fprintln(cmd.OutOrStdout(), settingsPath())
			return nil
		}
		settings, err := config.LoadSettingsFrom(settingsPath())
		if err != nil {
			return err
		}
		return printSettings(cmd.OutOrStdout(), settings)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting and save it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.LoadSettingsFrom(settingsPath())
		if err != nil {
			return err
		}
		if err := settings.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := config.SaveSettingsTo(settingsJSONPath(), settings); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
		value, _ := settings.Value(args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], value)
		return nil
	},
}

func init() {
	settingsCmd.Flags().Bool("path", false, "Print the settings file path and exit")
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func settingsPath() string {
	if globalConfigPath != "" {
		return globalConfigPath
	}
	return config.GetSettingsPath()
}

// settingsJSONPath is where set writes. Hand-written YAML files are never
// rewritten; their changes go to the app dir settings.json instead.
func settingsJSONPath() string {
	if globalConfigPath != "" && !isYAMLPath(globalConfigPath) {
		return globalConfigPath
	}
	return config.GetSettingsPath()
}

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func printSettings(w io.Writer, settings *config.Settings) error {
	meta := config.GetSettingsMetadata()
	for i, category := range config.CategoryOrder() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "[%s]\n", category)
		for _, m := range meta[category] {
			value, err := settings.Value(m.Key)
			if err != nil {
				return err
			}
			if value == "" {
				value = "(default)"
			}
			fmt.Fprintf(w, "  %s = %s\n", m.Key, value)
			fmt.Fprintf(w, "      %s\n", m.Description)
		}
	}
	return nil
}
