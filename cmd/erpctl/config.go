package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (cli *CLI) addConfigCommand() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration file",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := make(map[string]any, len(configKeys))
			for _, k := range configKeys {
				var v any = cli.viperInst.GetString(k.key)
				switch {
				case k.key == "demo":
					v = cli.viperInst.GetBool(k.key)
				case k.key == "password" && v != "":
					v = "********"
				}
				settings[k.key] = v
			}
			settings["config_file"] = cli.configPath()
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(settings)
		},
	}

	setCmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a setting in the configuration file",
		Long:  "Store a setting in the configuration file. Keys:\n" + keyHelp(),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isConfigKey(args[0]) {
				return &CLIError{Operation: "set configuration", Cause: fmt.Sprintf("unknown key %q", args[0]),
					Suggestions: []string{"valid keys:\n" + keyHelp()}}
			}
			path := cli.configPath()
			if err := setConfigValue(path, args[0], args[1]); err != nil {
				return &CLIError{Operation: "set configuration", Underlying: err}
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s written to %s\n", args[0], path)
			return err
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), cli.configPath())
			return err
		},
	}

	configCmd.AddCommand(showCmd, setCmd, pathCmd)
	cli.rootCmd.AddCommand(configCmd)
}

// configPath returns the file in use, or the per-user default
func (cli *CLI) configPath() string {
	if used := cli.viperInst.ConfigFileUsed(); used != "" {
		return used
	}
	if env := os.Getenv("ERPCTL_CONFIG"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "erpctl.yaml"
	}
	return filepath.Join(home, ".erpctl", "erpctl.yaml")
}

// setConfigValue rewrites path with key set, holding an exclusive lock
// so concurrent invocations do not lose updates
func setConfigValue(path, key, value string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock config file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	settings := make(map[string]any)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if settings == nil {
			settings = make(map[string]any)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	settings[key] = value

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Rename(tmp, path)
}

func isConfigKey(key string) bool {
	for _, k := range configKeys {
		if k.key == key {
			return true
		}
	}
	return false
}

func keyHelp() string {
	keys := append(configKeys[:0:0], configKeys...)
	sort.Slice(keys, func(i, j int) bool { return keys[i].key < keys[j].key })
	width := 0
	for _, k := range keys {
		width = max(width, len(k.key))
	}
	var help strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&help, "  %-*s  %s\n", width, k.key, k.usage)
	}
	return help.String()
}
