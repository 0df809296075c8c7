package fcm

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientWithoutCredentialsIsDisabled(t *testing.T) {
	c, err := NewClient(context.Background(), Options{}, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, c.IsEnabled())

	err = c.SendMulticast(context.Background(), []string{"tok"}, "t", "b", nil)
	assert.Error(t, err)
}

func TestNilClientIsDisabled(t *testing.T) {
	var c *Client
	assert.False(t, c.IsEnabled())
}
