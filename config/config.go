// Package config defines the per-subcommand options, their CLI flags
// and the classifier environment settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Extract captures all options of the keyword extraction stage.
type Extract struct {
	MboxPath    string
	TargetEmail string
	OutputDir   string
	LogFile     string
	PatternFile string
	StateDir    string
	Limit       int
	FromOnly    bool
	ReplyOnly   bool
	DryRun      bool
	Resume      bool
	LogLevel    string
}

// RegisterExtractFlags attaches the extract flags to the command.
func RegisterExtractFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("mbox", "", "Path to the .mbox archive to scan")
	flags.String("email", "", "Target email address (case-insensitive); empty processes all messages")
	flags.String("output", "./output", "Output directory for matched EML files")
	flags.String("log-file", "extraction_log.csv", "CSV log file path")
	flags.String("patterns", "", "Pattern file overriding the built-in lexicon (one regex per line)")
	flags.String("state-dir", "", "Directory for resume state (defaults under the output directory)")
	flags.Int("email-limit", 0, "Maximum number of messages to process (0 = unlimited)")
	flags.Bool("from-only", false, "Match the target address against From only, ignoring To/Cc/Reply-To")
	flags.Bool("reply-only", false, "Search only the immediate reply above the first quote boundary")
	flags.Bool("dry-run", false, "Count matches only, do not write files")
	flags.Bool("resume", false, "Skip messages already routed by a previous run")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")

	return cmd.MarkFlagRequired("mbox")
}

// LoadExtract converts the parsed flags into an Extract config with
// validation.
func LoadExtract(cmd *cobra.Command) (Extract, error) {
	flags := cmd.Flags()

	mboxPath, err := flags.GetString("mbox")
	if err != nil {
		return Extract{}, err
	}
	targetEmail, err := flags.GetString("email")
	if err != nil {
		return Extract{}, err
	}
	outputDir, err := flags.GetString("output")
	if err != nil {
		return Extract{}, err
	}
	logFile, err := flags.GetString("log-file")
	if err != nil {
		return Extract{}, err
	}
	patternFile, err := flags.GetString("patterns")
	if err != nil {
		return Extract{}, err
	}
	stateDir, err := flags.GetString("state-dir")
	if err != nil {
		return Extract{}, err
	}
	limit, err := flags.GetInt("email-limit")
	if err != nil {
		return Extract{}, err
	}
	fromOnly, err := flags.GetBool("from-only")
	if err != nil {
		return Extract{}, err
	}
	replyOnly, err := flags.GetBool("reply-only")
	if err != nil {
		return Extract{}, err
	}
	dryRun, err := flags.GetBool("dry-run")
	if err != nil {
		return Extract{}, err
	}
	resume, err := flags.GetBool("resume")
	if err != nil {
		return Extract{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Extract{}, err
	}

	if stateDir == "" {
		stateDir = filepath.Join(outputDir, ".state")
	}

	cfg := Extract{
		MboxPath:    mboxPath,
		TargetEmail: strings.ToLower(strings.TrimSpace(targetEmail)),
		OutputDir:   filepath.Clean(outputDir),
		LogFile:     logFile,
		PatternFile: patternFile,
		StateDir:    filepath.Clean(stateDir),
		Limit:       limit,
		FromOnly:    fromOnly,
		ReplyOnly:   replyOnly,
		DryRun:      dryRun,
		Resume:      resume,
		LogLevel:    normalizeLogLevel(logLevel),
	}

	if cfg.MboxPath == "" {
		return Extract{}, fmt.Errorf("--mbox is required")
	}
	if cfg.TargetEmail != "" && !strings.Contains(cfg.TargetEmail, "@") {
		return Extract{}, fmt.Errorf("invalid email address: %s", targetEmail)
	}
	if cfg.Limit < 0 {
		return Extract{}, fmt.Errorf("--email-limit must not be negative")
	}
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return Extract{}, err
	}

	return cfg, nil
}

// Filter captures all options of the classifier stage.
type Filter struct {
	InputDir         string
	OutputDir        string
	LogFile          string
	SystemPromptPath string
	UserPromptPath   string
	Limit            int
	Debug            bool
	LogLevel         string
}

// RegisterFilterFlags attaches the filter flags to the command.
func RegisterFilterFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("input", "", "Directory of EML files to classify")
	flags.String("output", "./filtered", "Output directory (matched/, rejected/, failed/ are created inside)")
	flags.String("log-file", "filter_log.csv", "CSV log file path")
	flags.String("system-prompt", "", "File with the system prompt (built-in default when empty)")
	flags.String("user-prompt", "", "File with the user prompt (built-in default when empty)")
	flags.Int("email-limit", 0, "Maximum number of messages to classify (0 = unlimited)")
	flags.Bool("debug", false, "Log the exact text sent to the classifier")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")

	return cmd.MarkFlagRequired("input")
}

// LoadFilter converts the parsed flags into a Filter config with
// validation.
func LoadFilter(cmd *cobra.Command) (Filter, error) {
	flags := cmd.Flags()

	inputDir, err := flags.GetString("input")
	if err != nil {
		return Filter{}, err
	}
	outputDir, err := flags.GetString("output")
	if err != nil {
		return Filter{}, err
	}
	logFile, err := flags.GetString("log-file")
	if err != nil {
		return Filter{}, err
	}
	systemPrompt, err := flags.GetString("system-prompt")
	if err != nil {
		return Filter{}, err
	}
	userPrompt, err := flags.GetString("user-prompt")
	if err != nil {
		return Filter{}, err
	}
	limit, err := flags.GetInt("email-limit")
	if err != nil {
		return Filter{}, err
	}
	debug, err := flags.GetBool("debug")
	if err != nil {
		return Filter{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Filter{}, err
	}

	cfg := Filter{
		InputDir:         inputDir,
		OutputDir:        filepath.Clean(outputDir),
		LogFile:          logFile,
		SystemPromptPath: systemPrompt,
		UserPromptPath:   userPrompt,
		Limit:            limit,
		Debug:            debug,
		LogLevel:         normalizeLogLevel(logLevel),
	}

	if cfg.InputDir == "" {
		return Filter{}, fmt.Errorf("--input is required")
	}
	if cfg.Limit < 0 {
		return Filter{}, fmt.Errorf("--email-limit must not be negative")
	}
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return Filter{}, err
	}

	return cfg, nil
}

// Convert captures the options of the EML-to-mbox conversion.
type Convert struct {
	EMLDir   string
	MboxPath string
	LogLevel string
}

// RegisterConvertFlags attaches the convert flags to the command.
func RegisterConvertFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("eml-dir", "", "Directory of EML files to pack")
	flags.String("mbox", "", "Path of the mbox file to create")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")

	if err := cmd.MarkFlagRequired("eml-dir"); err != nil {
		return err
	}
	return cmd.MarkFlagRequired("mbox")
}

// LoadConvert converts the parsed flags into a Convert config.
func LoadConvert(cmd *cobra.Command) (Convert, error) {
	flags := cmd.Flags()

	emlDir, err := flags.GetString("eml-dir")
	if err != nil {
		return Convert{}, err
	}
	mboxPath, err := flags.GetString("mbox")
	if err != nil {
		return Convert{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Convert{}, err
	}

	cfg := Convert{
		EMLDir:   emlDir,
		MboxPath: mboxPath,
		LogLevel: normalizeLogLevel(logLevel),
	}

	if cfg.EMLDir == "" {
		return Convert{}, fmt.Errorf("--eml-dir is required")
	}
	if cfg.MboxPath == "" {
		return Convert{}, fmt.Errorf("--mbox is required")
	}
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return Convert{}, err
	}

	return cfg, nil
}

// Classifier holds the Azure OpenAI settings read from the environment
// or a .env file in the working directory.
type Classifier struct {
	Endpoint    string
	APIKey      string
	Deployment  string
	APIVersion  string
	PriceInput  float64
	PriceOutput float64
}

// LoadClassifier reads the classifier settings. A missing .env file is
// fine as long as the variables are set some other way; missing
// required variables are a fatal configuration error.
func LoadClassifier() (Classifier, error) {
	// Ignore the error: .env is optional.
	_ = godotenv.Load()

	cfg := Classifier{
		Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
		APIVersion: envOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-15-preview"),
	}

	var err error
	cfg.PriceInput, err = envPrice("AZURE_OPENAI_PRICE_INPUT", 0.15)
	if err != nil {
		return Classifier{}, err
	}
	cfg.PriceOutput, err = envPrice("AZURE_OPENAI_PRICE_OUTPUT", 0.60)
	if err != nil {
		return Classifier{}, err
	}

	if cfg.Endpoint == "" {
		return Classifier{}, fmt.Errorf("AZURE_OPENAI_ENDPOINT is not set")
	}
	if cfg.APIKey == "" {
		return Classifier{}, fmt.Errorf("AZURE_OPENAI_API_KEY is not set")
	}
	if cfg.Deployment == "" {
		return Classifier{}, fmt.Errorf("AZURE_OPENAI_DEPLOYMENT is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envPrice(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if price < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return price, nil
}

func normalizeLogLevel(level string) string {
	level = strings.ToLower(level)
	if level == "warning" {
		level = "warn"
	}
	return level
}

func validateLogLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("invalid --log-level: %s", level)
	}
}
