package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServeCmd_Structure(t *testing.T) {
	cmd := newServeCmd()
	assert.Equal(t, "serve", cmd.Use)

	flag := cmd.Flags().Lookup("addr")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
}
