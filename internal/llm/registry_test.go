package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func echoProvider(name string) Provider {
	return NewMock(name, func(ctx context.Context, prompt string, opts Options) (Response, error) {
		return Response{Text: prompt}, nil
	})
}

func TestRegistryGetReturnsRegisteredProvider(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("anthropic", echoProvider("anthropic")))

	p, ok := reg.Get("anthropic")
	require.True(t, ok)
	require.Equal(t, "anthropic", p.Name())
}

func TestRegistryGetUnknownNameReturnsFalse(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Get("does-not-exist")
	require.False(t, ok)
}

func TestRegistrySetPrimaryRejectsUnregisteredProvider(t *testing.T) {
	reg := NewRegistry()
	err := reg.SetPrimary("anthropic")
	require.Error(t, err)
}

func TestRegistryPrimaryReturnsDesignatedProvider(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("anthropic", echoProvider("anthropic")))
	require.NoError(t, reg.Register("openai", echoProvider("openai")))
	require.NoError(t, reg.SetPrimary("openai"))

	p, err := reg.Primary()
	require.NoError(t, err)
	require.Equal(t, "openai", p.Name())
}

func TestRegistryPrimaryBeforeSetPrimaryIsAnError(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("anthropic", echoProvider("anthropic")))

	_, err := reg.Primary()
	require.Error(t, err)
}
