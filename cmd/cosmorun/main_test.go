package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wanjochan/cosmorun"
	"github.com/wanjochan/cosmorun/pkg/config"
)

func TestSafeTruncate(t *testing.T) {
	assert.Equal(t, "abc", safeTruncate("abc", 7))
	assert.Equal(t, "abcdefg", safeTruncate("abcdefghij", 7))
}

func TestCosmorunNewWiresAllCollaborators(t *testing.T) {
	cfg := config.Default()

	coordinator := cosmorun.New(cfg, t.TempDir())
	assert.NotNil(t, coordinator)
}
