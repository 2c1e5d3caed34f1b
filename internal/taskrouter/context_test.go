package taskrouter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOwnerIDFromContextAbsent(t *testing.T) {
	_, ok := OwnerIDFromContext(context.Background())
	require.False(t, ok)
}

func TestOwnerIDFromContextEmptyStringIsNotOK(t *testing.T) {
	ctx := WithOwnerID(context.Background(), "")
	_, ok := OwnerIDFromContext(ctx)
	require.False(t, ok, "an empty owner id must not be treated as authenticated")
}

func TestOwnerIDFromContextPresent(t *testing.T) {
	ctx := WithOwnerID(context.Background(), "owner1")
	got, ok := OwnerIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "owner1", got)
}

func TestDefaultServerTaskCapabilities(t *testing.T) {
	caps := DefaultServerTaskCapabilities()
	require.True(t, caps.List)
	require.True(t, caps.Cancel)
	require.True(t, caps.Result)
}
