package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/incant/internal/domain"
)

func TestHashContext_EmptyIsSentinel(t *testing.T) {
	require.Empty(t, domain.HashContext(nil))
	require.Empty(t, domain.HashContext([]string{}))
}

func TestHashContext_Deterministic(t *testing.T) {
	responses := []string{"ls -la", "du -sh *"}
	require.Equal(t, domain.HashContext(responses), domain.HashContext(responses))
}

func TestHashContext_OrderSensitive(t *testing.T) {
	require.NotEqual(t,
		domain.HashContext([]string{"a", "b"}),
		domain.HashContext([]string{"b", "a"}))
}

func TestHashContext_DistinctInputs(t *testing.T) {
	require.NotEqual(t,
		domain.HashContext([]string{"r1"}),
		domain.HashContext([]string{"r2"}))
}

func TestHashContext_LowercaseHex(t *testing.T) {
	h := domain.HashContext([]string{"pwd"})
	require.Len(t, h, 64)
	require.Regexp(t, "^[0-9a-f]+$", h)
}
