package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "extract", RunE: func(*cobra.Command, []string) error { return nil }}
	require.NoError(t, RegisterExtractFlags(cmd))
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return cmd
}

func TestLoadExtract(t *testing.T) {
	cmd := extractCommand(t,
		"--mbox", "archive.mbox",
		"--email", " Jan.Novak@Firma.CZ ",
		"--output", "./out/",
		"--reply-only",
		"--email-limit", "50",
	)

	cfg, err := LoadExtract(cmd)
	require.NoError(t, err)
	assert.Equal(t, "archive.mbox", cfg.MboxPath)
	assert.Equal(t, "jan.novak@firma.cz", cfg.TargetEmail)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, "out/.state", cfg.StateDir)
	assert.True(t, cfg.ReplyOnly)
	assert.Equal(t, 50, cfg.Limit)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadExtractRejectsBadInput(t *testing.T) {
	cmd := extractCommand(t, "--mbox", "a.mbox", "--email", "not-an-address")
	_, err := LoadExtract(cmd)
	assert.ErrorContains(t, err, "invalid email address")

	cmd = extractCommand(t, "--mbox", "a.mbox", "--log-level", "loud")
	_, err = LoadExtract(cmd)
	assert.ErrorContains(t, err, "invalid --log-level")
}

func TestLoadExtractNormalizesWarning(t *testing.T) {
	cmd := extractCommand(t, "--mbox", "a.mbox", "--log-level", "WARNING")
	cfg, err := LoadExtract(cmd)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadClassifier(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com/")
	t.Setenv("AZURE_OPENAI_API_KEY", "key")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o-mini")
	t.Setenv("AZURE_OPENAI_API_VERSION", "")
	t.Setenv("AZURE_OPENAI_PRICE_INPUT", "0.25")
	t.Setenv("AZURE_OPENAI_PRICE_OUTPUT", "")

	cfg, err := LoadClassifier()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-15-preview", cfg.APIVersion)
	assert.Equal(t, 0.25, cfg.PriceInput)
	assert.Equal(t, 0.60, cfg.PriceOutput)
}

func TestLoadClassifierMissingRequired(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")
	t.Setenv("AZURE_OPENAI_API_KEY", "key")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o-mini")

	_, err := LoadClassifier()
	assert.ErrorContains(t, err, "AZURE_OPENAI_ENDPOINT")
}

func TestLoadClassifierBadPrice(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com/")
	t.Setenv("AZURE_OPENAI_API_KEY", "key")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o-mini")
	t.Setenv("AZURE_OPENAI_PRICE_INPUT", "cheap")

	_, err := LoadClassifier()
	assert.ErrorContains(t, err, "AZURE_OPENAI_PRICE_INPUT")
}
