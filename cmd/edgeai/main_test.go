package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("EDGEAI_CONFIG", "")
	t.Setenv("PROGRAM_ID", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestDerive_ConfigOnly(t *testing.T) {
	out, err := execute(t, "derive")
	require.NoError(t, err)

	assert.Contains(t, out, "program:      JG8fS89RdsLUGUst41UTj8kFFEjBxQKV6yzPaBmAEwL")
	assert.Contains(t, out, "config:")
	assert.NotContains(t, out, "subscription:")
}

func TestDerive_WithWallet(t *testing.T) {
	out, err := execute(t, "derive", "11111111111111111111111111111111")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], "subscription: "))
}

func TestDerive_InvalidWallet(t *testing.T) {
	_, err := execute(t, "derive", "not-a-wallet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet")
}

func TestBoost_RequiresSlug(t *testing.T) {
	_, err := execute(t, "boost")
	require.Error(t, err)
}
