package main

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/arthur-debert/erprecord/erprecord"
	"github.com/arthur-debert/erprecord/erprecord/catalog"
	"github.com/arthur-debert/erprecord/erprecord/rpc"
	"github.com/arthur-debert/erprecord/erprecord/rpc/memrpc"
)

//go:embed demo/catalog.yaml
var demoCatalog []byte

//go:embed demo/data.yaml
var demoData []byte

// configKeys lists the settings accepted in config files and by
// "config set", with their flag descriptions
var configKeys = []struct {
	key, usage string
}{
	{"url", "Server URL, e.g. https://erp.example.com"},
	{"db", "Database name"},
	{"user", "Login"},
	{"password", "Password or API key"},
	{"catalog", "Catalog file declaring the record types"},
	{"format", "Output format (table|markdown|json|yaml)"},
	{"log-level", "Log level (debug|info|warn|error)"},
	{"timeout", "Timeout for each command"},
	{"demo", "Use the built-in in-memory demo database"},
}

// CLI is the erpctl command tree bound to one viper instance
type CLI struct {
	rootCmd   *cobra.Command
	viperInst *viper.Viper
	log       *zap.Logger
	client    *erprecord.Client
	configErr error
}

// NewCLI creates the command tree
func NewCLI() *CLI {
	cli := &CLI{viperInst: viper.New(), log: zap.NewNop()}
	cli.setupViperConfig()
	cli.createRootCommand()
	cli.addCommands()
	return cli
}

// Execute runs the CLI with os.Args
func (cli *CLI) Execute() error {
	defer func() { _ = cli.log.Sync() }()
	return cli.rootCmd.Execute()
}

// setupViperConfig configures Viper with environment variables and config files
func (cli *CLI) setupViperConfig() {
	// ERPCTL_CONFIG names a config file explicitly
	if configFile := os.Getenv("ERPCTL_CONFIG"); configFile != "" {
		cli.viperInst.SetConfigFile(configFile)
	} else {
		cli.viperInst.SetConfigName("erpctl")
		cli.viperInst.SetConfigType("yaml")
		cli.viperInst.AddConfigPath(".")
		cli.viperInst.AddConfigPath("$HOME/.erpctl")
		cli.viperInst.AddConfigPath("/etc/erpctl")
	}

	cli.viperInst.SetEnvPrefix("ERPCTL")
	cli.viperInst.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cli.viperInst.AutomaticEnv()

	// Missing config files are fine; flags and env still apply. A file
	// that exists but does not parse is reported when a command runs.
	if err := cli.viperInst.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			cli.configErr = err
		}
	}
}

func (cli *CLI) createRootCommand() {
	cli.rootCmd = &cobra.Command{
		Use:   "erpctl",
		Short: "Query and edit records on an ERP server",
		Long: `erpctl reads and writes records through the typed record layer.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (ERPCTL_*)
3. Configuration file (ERPCTL_CONFIG, ./erpctl.yaml, ~/.erpctl/erpctl.yaml, /etc/erpctl/erpctl.yaml)

Examples:
  # Try it against the built-in demo database
  erpctl --demo search res.partner is_company = true
  erpctl --demo get res.partner 11 --fields name,parent_name

  # Real server
  export ERPCTL_URL=https://erp.example.com ERPCTL_DB=prod ERPCTL_USER=admin
  erpctl --catalog models.yaml search res.partner name ilike azure or ref = AZ001`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cli.configErr != nil && cmd.Name() != "path" {
				return &CLIError{
					Operation:   "read configuration",
					Underlying:  cli.configErr,
					Suggestions: []string{"fix or remove " + cli.configPath()},
				}
			}
			log, err := newLogger(cli.viperInst.GetString("log-level"), cli.viperInst.GetBool("verbose"))
			if err != nil {
				return err
			}
			cli.log = log
			return nil
		},
	}
	cli.addGlobalFlags()
}

func (cli *CLI) addGlobalFlags() {
	flags := cli.rootCmd.PersistentFlags()

	flags.String("url", "", "Server URL")
	flags.String("db", "", "Database name")
	flags.StringP("user", "u", "", "Login")
	flags.String("password", "", "Password or API key (prefer ERPCTL_PASSWORD)")
	flags.StringP("catalog", "c", "", "Catalog file declaring the record types")
	flags.StringP("format", "f", "table", "Output format (table|markdown|json|yaml)")
	flags.String("log-level", "warn", "Log level (debug|info|warn|error)")
	flags.BoolP("verbose", "v", false, "Log remote calls (same as --log-level debug)")
	flags.Duration("timeout", 30*time.Second, "Timeout for each command")
	flags.Bool("demo", false, "Use the built-in in-memory demo database")

	for _, key := range []string{"url", "db", "user", "password", "catalog", "format", "log-level", "verbose", "timeout", "demo"} {
		_ = cli.viperInst.BindPFlag(key, flags.Lookup(key))
	}
}

func (cli *CLI) addCommands() {
	cli.addTypesCommand()
	cli.addSearchCommand()
	cli.addFindCommand()
	cli.addGetCommand()
	cli.addCreateCommand()
	cli.addUpdateCommand()
	cli.addDeleteCommand()
	cli.addConfigCommand()
}

// context returns the command context bounded by the configured timeout
func (cli *CLI) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout := cli.viperInst.GetDuration("timeout"); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// registry loads the record types from the configured catalog
func (cli *CLI) registry() (*erprecord.Registry, error) {
	if path := cli.viperInst.GetString("catalog"); path != "" {
		return catalog.LoadFile(path)
	}
	if cli.viperInst.GetBool("demo") {
		return catalog.Load(bytes.NewReader(demoCatalog))
	}
	return nil, &CLIError{
		Operation: "load record types",
		Cause:     "no catalog configured",
		Suggestions: []string{
			"pass --catalog models.yaml or set ERPCTL_CATALOG",
			"use --demo to try the built-in demo database",
		},
	}
}

// session opens the remote session, or the demo server
func (cli *CLI) session(ctx context.Context) (erprecord.Session, error) {
	if cli.viperInst.GetBool("demo") {
		srv, err := memrpc.Load(bytes.NewReader(demoData))
		if err != nil {
			return nil, err
		}
		return srv, nil
	}

	cfg := rpc.Config{
		URL:      cli.viperInst.GetString("url"),
		Database: cli.viperInst.GetString("db"),
		Username: cli.viperInst.GetString("user"),
		Password: cli.viperInst.GetString("password"),
		Timeout:  cli.viperInst.GetDuration("timeout"),
	}
	var missing []string
	for key, val := range map[string]string{"url": cfg.URL, "db": cfg.Database, "user": cfg.Username} {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &CLIError{
			Operation: "connect",
			Cause:     fmt.Sprintf("missing connection settings: %s", strings.Join(missing, ", ")),
			Suggestions: []string{
				"pass --url, --db and --user, or set ERPCTL_URL, ERPCTL_DB and ERPCTL_USER",
				"store them with: erpctl config set url https://erp.example.com",
			},
		}
	}
	client, err := rpc.Dial(ctx, cfg, rpc.WithLogger(cli.log))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// connect builds the client once per process
func (cli *CLI) connect(ctx context.Context) (*erprecord.Client, error) {
	if cli.client != nil {
		return cli.client, nil
	}
	reg, err := cli.registry()
	if err != nil {
		return nil, err
	}
	sess, err := cli.session(ctx)
	if err != nil {
		return nil, err
	}
	client, err := erprecord.NewClient(sess, reg, erprecord.WithLogger(cli.log))
	if err != nil {
		return nil, err
	}
	cli.client = client
	return client, nil
}

// manager connects and returns the manager for model
func (cli *CLI) manager(ctx context.Context, model string) (*erprecord.Manager, error) {
	client, err := cli.connect(ctx)
	if err != nil {
		return nil, err
	}
	m, err := client.Model(model)
	if err != nil {
		return nil, &CLIError{
			Operation:   "find model",
			Cause:       fmt.Sprintf("model %q is not in the catalog", model),
			Suggestions: []string{"run 'erpctl types' to list the declared models"},
			Underlying:  err,
		}
	}
	return m, nil
}
