package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueueCmd_Subcommands(t *testing.T) {
	cmd := newQueueCmd()
	assert.Equal(t, "queue", cmd.Use)

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.ElementsMatch(t, []string{"list", "pause", "resume", "cancel"}, names)
}

func TestRunQueueCancel_RequiresTargetOrAll(t *testing.T) {
	ctx := context.WithValue(t.Context(), cliContextKey{}, &CLIContext{})
	err := runQueueCancel(ctx, nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all")
}

func TestNewQueueCancelCmd_AllFlag(t *testing.T) {
	cmd := newQueueCancelCmd()
	flag := cmd.Flags().Lookup("all")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
