package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestDependencyGraph(t *testing.T) {
	require.NoError(t, fx.ValidateApp(options()...))
}

func TestRegisterSnowflake(t *testing.T) {
	node := RegisterSnowflake()
	require.NotNil(t, node)
	require.NotEqual(t, node.Generate(), node.Generate())
}
