package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRefreshCmd_Structure(t *testing.T) {
	cmd := newRefreshCmd()
	assert.Equal(t, "refresh", cmd.Use)

	flag := cmd.Flags().Lookup("side")
	assert.NotNil(t, flag)
	assert.Equal(t, "both", flag.DefValue)
}
