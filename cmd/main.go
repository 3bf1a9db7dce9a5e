// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	"github.com/gemini-shop/shop-agent/gollm"
	"github.com/gemini-shop/shop-agent/pkg/agent"
	"github.com/gemini-shop/shop-agent/pkg/catalog"
	"github.com/gemini-shop/shop-agent/pkg/journal"
	"github.com/gemini-shop/shop-agent/pkg/ui"
)

// Using the defaults from goreleaser as per https://goreleaser.com/cookbooks/using-main.version/
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// envPrefix prefixes the environment overrides, e.g. SHOP_AGENT_MODEL_ID.
const envPrefix = "SHOP_AGENT"

func BuildRootCommand(opt *Options) (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "shop-agent",
		Short: "A customer-service chat agent for the Gemini Shop store",
		Long:  "shop-agent answers questions about products, orders and store policies. It lets a language model call local store tools until it can give a final answer.",
		Args:  cobra.MaximumNArgs(1), // Only one positional arg is allowed.
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunRootCommand(cmd.Context(), *opt, args)
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of shop-agent",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("version: %s\ncommit: %s\ndate: %s\n", version, commit, date)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "providers",
		Short: "List the language model providers shop-agent can talk to",
		Run: func(cmd *cobra.Command, args []string) {
			for _, id := range gollm.Providers() {
				fmt.Println(id)
			}
		},
	})

	if err := opt.bindCLIFlags(rootCmd.Flags()); err != nil {
		return nil, err
	}
	return rootCmd, nil
}

// Options are read from the config file, then SHOP_AGENT_* environment variables
// (field names split at word boundaries, e.g. SHOP_AGENT_TOOL_DELAY), then flags.
type Options struct {
	ProviderID string `json:"llmProvider,omitempty" split_words:"true"`
	ModelID    string `json:"model,omitempty" split_words:"true"`
	// APIKey is the explicit credential. When empty the provider's own
	// environment variables are consulted (DEEPSEEK_API_KEY or GEMINI_API_KEY, then API_KEY).
	APIKey  string `json:"apiKey,omitempty" split_words:"true"`
	BaseURL string `json:"baseURL,omitempty" split_words:"true"`

	// DataFile is a YAML file with products, orders and policies replacing the demo data.
	DataFile               string `json:"dataFile,omitempty" split_words:"true"`
	PromptTemplateFilePath string `json:"promptTemplateFilePath,omitempty" split_words:"true"`
	TracePath              string `json:"tracePath,omitempty" split_words:"true"`

	// Quiet flag indicates if the agent should run in non-interactive mode.
	// It requires a query to be provided as a positional argument or on stdin.
	Quiet     bool `json:"quiet,omitempty" split_words:"true"`
	MCPServer bool `json:"mcpServer,omitempty" split_words:"true"`

	ToolDelay       Duration `json:"toolDelay,omitempty" split_words:"true"`
	DispatchTimeout Duration `json:"dispatchTimeout,omitempty" split_words:"true"`

	// SkipVerifySSL is a flag to skip verifying the SSL certificate of the LLM provider.
	SkipVerifySSL bool `json:"skipVerifySSL,omitempty" split_words:"true"`
}

// Duration is a time.Duration written as "500ms" in config files, environment variables and flags.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) Set(s string) error {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) Type() string {
	return "duration"
}

func (d *Duration) UnmarshalText(b []byte) error {
	return d.Set(string(b))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

var defaultConfigPaths = []string{
	filepath.Join("{CONFIG}", "shop-agent", "config.yaml"),
	filepath.Join("{HOME}", ".config", "shop-agent", "config.yaml"),
}

func (o *Options) InitDefaults() {
	o.ProviderID = agent.DefaultProviderID
	// empty means the provider's default model
	o.ModelID = ""
	o.APIKey = ""
	o.BaseURL = ""
	o.DataFile = ""
	o.PromptTemplateFilePath = ""
	o.TracePath = filepath.Join(os.TempDir(), "shop-agent-trace.yaml")
	o.Quiet = false
	o.MCPServer = false
	o.ToolDelay = Duration(agent.DefaultToolDelay)
	// no timeout, a hung provider call can be interrupted with Ctrl+C
	o.DispatchTimeout = 0
	o.SkipVerifySSL = false
}

func (o *Options) LoadConfiguration(b []byte) error {
	if err := yaml.Unmarshal(b, &o); err != nil {
		return fmt.Errorf("parsing configuration: %w", err)
	}
	return nil
}

func (o *Options) LoadConfigurationFile() error {
	for _, configPath := range defaultConfigPaths {
		pathWithPlaceholdersExpanded := configPath

		if strings.Contains(pathWithPlaceholdersExpanded, "{CONFIG}") {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("getting user config directory (for config file path %q): %w", configPath, err)
			}
			pathWithPlaceholdersExpanded = strings.ReplaceAll(pathWithPlaceholdersExpanded, "{CONFIG}", configDir)
		}

		if strings.Contains(pathWithPlaceholdersExpanded, "{HOME}") {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("getting user home directory (for config file path %q): %w", configPath, err)
			}
			pathWithPlaceholdersExpanded = strings.ReplaceAll(pathWithPlaceholdersExpanded, "{HOME}", homeDir)
		}

		configPath = filepath.Clean(pathWithPlaceholdersExpanded)
		configBytes, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				fmt.Fprintf(os.Stderr, "warning: could not load defaults from %q: %v\n", configPath, err)
			}
		} else if len(configBytes) > 0 {
			if err := o.LoadConfiguration(configBytes); err != nil {
				fmt.Fprintf(os.Stderr, "warning: error loading configuration from %q: %v\n", configPath, err)
			}
		}
	}
	return nil
}

// LoadEnvironment applies SHOP_AGENT_* overrides. Unset variables leave the value alone.
func (o *Options) LoadEnvironment() error {
	if err := envconfig.Process(envPrefix, o); err != nil {
		return fmt.Errorf("reading %s_* environment: %w", envPrefix, err)
	}
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		// restore default behavior for a second signal
		signal.Stop(make(chan os.Signal))
		cancel()
		klog.Flush()
	}()

	if err := run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// klog setup must happen before Cobra parses any flags
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)

	klogFlags.Set("logtostderr", "false")
	klogFlags.Set("log_file", filepath.Join(os.TempDir(), "shop-agent.log"))

	defer klog.Flush()

	var opt Options

	opt.InitDefaults()

	if err := opt.LoadConfigurationFile(); err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}
	if err := opt.LoadEnvironment(); err != nil {
		return err
	}

	rootCmd, err := BuildRootCommand(&opt)
	if err != nil {
		return err
	}

	// We add just the klog flags we want, not all the klog flags (there are a lot, most of them are very niche)
	rootCmd.PersistentFlags().AddGoFlag(klogFlags.Lookup("v"))
	rootCmd.PersistentFlags().AddGoFlag(klogFlags.Lookup("alsologtostderr"))

	// do this early, before the third-party code logs anything.
	redirectStdLogToKlog()

	return rootCmd.ExecuteContext(ctx)
}

func (opt *Options) bindCLIFlags(f *pflag.FlagSet) error {
	f.StringVar(&opt.ProviderID, "llm-provider", opt.ProviderID, "language model provider, one of: "+strings.Join(gollm.Providers(), ", "))
	f.StringVar(&opt.ModelID, "model", opt.ModelID, "language model, e.g. deepseek-chat or gemini-2.5-flash (defaults to the provider's default)")
	f.StringVar(&opt.APIKey, "api-key", opt.APIKey, "API key of the provider; falls back to the provider's environment variables")
	f.StringVar(&opt.BaseURL, "base-url", opt.BaseURL, "override the provider endpoint")
	f.StringVar(&opt.DataFile, "data-file", opt.DataFile, "YAML file with products, orders and policies")
	f.StringVar(&opt.PromptTemplateFilePath, "prompt-template-file-path", opt.PromptTemplateFilePath, "path to custom prompt template file")
	f.StringVar(&opt.TracePath, "trace-path", opt.TracePath, "path to the trace file, empty to log events instead")
	f.BoolVar(&opt.Quiet, "quiet", opt.Quiet, "run in non-interactive mode, requires a query to be provided as a positional argument")
	f.BoolVar(&opt.MCPServer, "mcp-server", opt.MCPServer, "run in MCP server mode, exposing the store tools over stdio")
	f.Var(&opt.ToolDelay, "tool-delay", "simulated processing time of each tool call")
	f.Var(&opt.DispatchTimeout, "dispatch-timeout", "timeout of each call to the provider, 0 for none")
	f.BoolVar(&opt.SkipVerifySSL, "skip-verify-ssl", opt.SkipVerifySSL, "skip verifying the SSL certificate of the LLM provider")
	return nil
}

func RunRootCommand(ctx context.Context, opt Options, args []string) error {
	store, err := loadStore(ctx, opt.DataFile)
	if err != nil {
		return err
	}

	if opt.MCPServer {
		if err := startMCPServer(ctx, store); err != nil {
			return fmt.Errorf("failed to start MCP server: %w", err)
		}
		return nil
	}

	// After reading stdin, it is consumed
	hasInputData, err := hasStdInData()
	if err != nil {
		return fmt.Errorf("failed to check if stdin has data: %w", err)
	}

	queryFromCmd, err := resolveQueryInput(hasInputData, args, os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to resolve query input: %w", err)
	}
	if opt.Quiet && queryFromCmd == "" {
		return fmt.Errorf("--quiet requires a query, as an argument or on stdin")
	}

	klog.InfoS("Application started", "pid", os.Getpid(), "provider", opt.ProviderID)

	var recorder journal.Recorder
	if opt.TracePath != "" {
		recorder, err = journal.NewFileRecorder(opt.TracePath)
		if err != nil {
			return fmt.Errorf("creating trace recorder: %w", err)
		}
	} else {
		recorder = &journal.LogRecorder{}
	}

	conversation, err := agent.New(ctx, agent.Options{
		ProviderID:         opt.ProviderID,
		APIKey:             opt.APIKey,
		Model:              opt.ModelID,
		BaseURL:            opt.BaseURL,
		SkipVerifySSL:      opt.SkipVerifySSL,
		Store:              store,
		Recorder:           recorder,
		PromptTemplateFile: opt.PromptTemplateFilePath,
		ToolDelay:          time.Duration(opt.ToolDelay),
		DispatchTimeout:    time.Duration(opt.DispatchTimeout),
	})
	if err != nil {
		recorder.Close()
		return fmt.Errorf("starting shop agent: %w", err)
	}
	defer conversation.Close()

	if opt.Quiet {
		return runQuiet(ctx, conversation, queryFromCmd, os.Stdout, os.Stderr)
	}

	// since stdin is already consumed, we use TTY for taking input from user
	userInterface, err := ui.NewTerminalUI(conversation, os.Stdin, os.Stdout, hasInputData)
	if err != nil {
		return fmt.Errorf("creating terminal UI: %w", err)
	}
	defer userInterface.Close()

	return repl(ctx, queryFromCmd, userInterface)
}

func loadStore(ctx context.Context, dataFile string) (*catalog.Store, error) {
	if dataFile == "" {
		return catalog.NewStore(catalog.Default()), nil
	}
	snapshot, err := catalog.LoadFile(dataFile)
	if err != nil {
		return nil, fmt.Errorf("loading data file: %w", err)
	}
	klog.FromContext(ctx).Info("Loaded store data", "path", dataFile,
		"products", len(snapshot.Products), "orders", len(snapshot.Orders), "policies", len(snapshot.Policies))
	return catalog.NewStore(snapshot), nil
}

// runQuiet answers a single query; status updates go to stderr so stdout only carries the answer.
func runQuiet(ctx context.Context, a agent.Agent, query string, stdout, stderr io.Writer) error {
	answer, err := a.HandleTurn(ctx, query, func(status string) {
		fmt.Fprintln(stderr, status)
	})
	if err != nil {
		return fmt.Errorf("handling query: %w", err)
	}
	fmt.Fprintln(stdout, answer)
	return nil
}

// repl is a read-eval-print loop for the chat session.
func repl(ctx context.Context, initialQuery string, u *ui.TerminalUI) error {
	if initialQuery != "" {
		if err := u.RunQuery(ctx, initialQuery); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}

	err := u.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// Redirect standard log output to our custom klog writer
// This is primarily to suppress warning messages from
// genai library https://github.com/googleapis/go-genai/blob/6ac4afc0168762dc3b7a4d940fc463cc1854f366/types.go#L1633
func redirectStdLogToKlog() {
	log.SetOutput(klogWriter{})

	// klog adds its own prefix.
	log.SetFlags(0)
}

// klogWriter forwards messages to klog.Warning
type klogWriter struct{}

func (writer klogWriter) Write(data []byte) (n int, err error) {
	// We trim the trailing newline because klog adds its own.
	message := string(bytes.TrimSuffix(data, []byte("\n")))
	klog.Warning(message)
	return len(data), nil
}

func hasStdInData() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("checking stdin: %w", err)
	}
	return (stat.Mode() & os.ModeCharDevice) == 0, nil
}

// resolveQueryInput determines the query input from positional args and/or stdin.
// It supports:
// - 1 positional arg only -> shop-agent "有耳机吗"
// - stdin only -> echo "有耳机吗" | shop-agent
// - 1 positional arg + stdin (combined) -> shop-agent "这个订单呢" <<< "ORD-1001"
// As default no positional arg nor stdin
func resolveQueryInput(hasStdInData bool, args []string, stdin io.Reader) (string, error) {
	var parts []string
	if len(args) == 1 {
		parts = append(parts, args[0])
	}
	if hasStdInData {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		parts = append(parts, string(b))
	}
	if len(parts) == 0 {
		return "", nil
	}

	query := strings.TrimSpace(strings.Join(parts, "\n"))
	if query == "" {
		return "", fmt.Errorf("no query provided")
	}
	return query, nil
}
