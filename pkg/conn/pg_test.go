package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequiresConnString(t *testing.T) {
	_, err := New(Option{})
	assert.Error(t, err)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.DB())
	assert.NoError(t, c.Close())
}
