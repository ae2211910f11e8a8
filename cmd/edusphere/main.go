package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stellarlinkco/edusphere/internal/chat"
	"github.com/stellarlinkco/edusphere/internal/config"
	"github.com/stellarlinkco/edusphere/internal/gateway"
	"github.com/stellarlinkco/edusphere/internal/logging"
	"github.com/stellarlinkco/edusphere/internal/nav"
	"github.com/stellarlinkco/edusphere/internal/school"
)

// CLIOptions carries the dependencies of the one-shot commands (allows
// injection in tests).
type CLIOptions struct {
	BackendFactory gateway.BackendFactory
	Logger         *zap.Logger
	Stdin          io.Reader
	Stdout         io.Writer
	Stderr         io.Writer
}

func (o CLIOptions) withDefaults() CLIOptions {
	if o.BackendFactory == nil {
		o.BackendFactory = gateway.DefaultBackendFactory
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	return o
}

var rootCmd = &cobra.Command{
	Use:   "edusphere",
	Short: "edusphere - school dashboard with EduBot and the strategic advisor",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the full gateway (API + chat channels + insights)",
	RunE:  runServe,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to EduBot with a single message or in REPL mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChatWithOptions(CLIOptions{}, messageFlag)
	},
}

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Ask the strategic advisor one question",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdviseWithOptions(CLIOptions{}, queryFlag)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the school data to an .xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(outputFlag, cmd.OutOrStdout())
	},
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnboard(cmd.OutOrStdout())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show edusphere status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd.OutOrStdout())
	},
}

var (
	messageFlag string
	queryFlag   string
	outputFlag  string
)

func init() {
	chatCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single message to send")
	adviseCmd.Flags().StringVarP(&queryFlag, "query", "q", "", "Question for the advisor")
	_ = adviseCmd.MarkFlagRequired("query")
	exportCmd.Flags().StringVarP(&outputFlag, "output", "o", "roster.xlsx", "Workbook path")
	rootCmd.AddCommand(serveCmd, chatCmd, adviseCmd, exportCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	gw, err := gateway.NewWithOptions(cfg, gateway.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func components(opts CLIOptions) (*gateway.Components, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	backend, err := opts.BackendFactory(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return gateway.NewComponents(cfg, backend, opts.Logger)
}

// printReply writes the reply text with nav directives as "-> Go to X"
// lines.
func printReply(w io.Writer, text string) {
	segments := nav.Parse(text)
	fmt.Fprintln(w, strings.TrimSpace(nav.PlainText(segments)))
	for _, key := range nav.Keys(segments) {
		fmt.Fprintf(w, "-> %s\n", nav.Label(key))
	}
}

// runChatWithOptions runs EduBot with injectable dependencies for testing
func runChatWithOptions(opts CLIOptions, message string) error {
	opts = opts.withDefaults()
	c, err := components(opts)
	if err != nil {
		return err
	}
	ctx := context.Background()

	// Single message mode
	if message != "" {
		printReply(opts.Stdout, c.Chat.Send(ctx, "cli", message).Text)
		return nil
	}

	// REPL mode
	fmt.Fprintln(opts.Stdout, "EduBot (type 'exit' to quit, 'reset' to start over)")
	printReply(opts.Stdout, chat.Greeting)
	scanner := bufio.NewScanner(opts.Stdin)
	for {
		fmt.Fprint(opts.Stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "reset":
			c.Chat.Reset("cli-repl")
			fmt.Fprintln(opts.Stdout, "Conversation cleared.")
			continue
		}

		reply := c.Chat.Send(ctx, "cli-repl", input)
		printReply(opts.Stdout, reply.Text)
	}
	return scanner.Err()
}

func runAdviseWithOptions(opts CLIOptions, query string) error {
	opts = opts.withDefaults()
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query is required")
	}
	c, err := components(opts)
	if err != nil {
		return err
	}

	advice := c.Advisor.Advise(context.Background(), query)
	fmt.Fprintln(opts.Stdout, advice.Text)
	if advice.Model != "" {
		fmt.Fprintf(opts.Stderr, "(model: %s)\n", advice.Model)
	}
	return nil
}

func runExport(path string, stdout io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := gateway.BuildStore(cfg.Data)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := school.WriteWorkbook(f, store); err != nil {
		f.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	stats := store.Stats()
	fmt.Fprintf(stdout, "Wrote %s (%d students, %d teachers)\n", path, stats.TotalStudents, stats.TotalTeachers)
	return nil
}

func runOnboard(stdout io.Writer) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(stdout, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(stdout, "Config already exists: %s\n", cfgPath)
	}

	fmt.Fprintln(stdout, "\nNext steps:")
	fmt.Fprintf(stdout, "  1. Edit %s to set your API key\n", cfgPath)
	fmt.Fprintln(stdout, "  2. Or set GEMINI_API_KEY environment variable")
	fmt.Fprintln(stdout, "  3. Run 'edusphere chat -m \"Where are the teachers?\"' to test")
	return nil
}

func runStatus(stdout io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stdout, "Config: error (%v)\n", err)
		return nil
	}

	fmt.Fprintf(stdout, "Config: %s\n", config.ConfigPath())
	fmt.Fprintf(stdout, "Provider: %s\n", cfg.Provider.Type)
	fmt.Fprintf(stdout, "Chat model: %s\n", cfg.Chat.Model)
	fmt.Fprintf(stdout, "Advisor models: %s (fallback %s)\n", cfg.Advisor.PrimaryModel, cfg.Advisor.FallbackModel)
	fmt.Fprintf(stdout, "API Key: %s\n", maskKey(cfg.Provider.APIKey))
	fmt.Fprintf(stdout, "API: enabled=%v port=%d\n", cfg.API.Enabled, cfg.API.Port)
	fmt.Fprintf(stdout, "WebUI: enabled=%v port=%d\n", cfg.Channels.WebUI.Enabled, cfg.Gateway.Port)
	fmt.Fprintf(stdout, "Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Fprintf(stdout, "Insights: enabled=%v schedule=%q\n", cfg.Insights.Enabled, cfg.Insights.Schedule)

	store, err := gateway.BuildStore(cfg.Data)
	if err != nil {
		fmt.Fprintf(stdout, "Dataset: error (%v)\n", err)
		return nil
	}
	stats := store.Stats()
	fmt.Fprintf(stdout, "Dataset: %d students, %d teachers\n", stats.TotalStudents, stats.TotalTeachers)
	return nil
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "not set"
	case len(key) > 8:
		return key[:4] + "..." + key[len(key)-4:]
	default:
		return "set"
	}
}
