package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromValues_RequiredFields(t *testing.T) {
	_, err := FromValues(map[string]any{"command": "true"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id")

	_, err = FromValues(map[string]any{"id": "web"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command")
}

func TestFromValues_Defaults(t *testing.T) {
	r, err := FromValues(map[string]any{"id": "web", "command": "/bin/web"})
	require.NoError(t, err)
	assert.True(t, r.Enable)
	assert.False(t, r.Exclusive)
	assert.False(t, r.KeepAlive)
}

func TestFromValues_EnableFalse(t *testing.T) {
	r, err := FromValues(map[string]any{"id": "web", "command": "/bin/web", "enable": false})
	require.NoError(t, err)
	assert.False(t, r.Enable)
}

func TestFromValues_IDValidation(t *testing.T) {
	_, err := FromValues(map[string]any{"id": "web/server", "command": "true"})
	require.Error(t, err)

	longID := make([]byte, MaxIDLength+1)
	for i := range longID {
		longID[i] = 'a'
	}
	_, err = FromValues(map[string]any{"id": string(longID), "command": "true"})
	require.Error(t, err)
}

func TestFromValues_IdentityExclusivity(t *testing.T) {
	_, err := FromValues(map[string]any{
		"id": "web", "command": "true",
		"uid": int64(100), "user_name": "www",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_name")
}

func TestFromValues_BeforeAfter(t *testing.T) {
	r, err := FromValues(map[string]any{
		"id": "c", "command": "true",
		"before": []any{"x"},
		"after":  []any{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, r.Before)
	assert.Equal(t, []string{"a", "b"}, r.After)
}

func TestFromValues_UnknownKeysBecomeOptions(t *testing.T) {
	r, err := FromValues(map[string]any{
		"id": "web", "command": "true",
		"nonstandard_flag": "yes",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"nonstandard_flag=yes"}, r.Options)
}

func TestFromValues_Umask(t *testing.T) {
	r, err := FromValues(map[string]any{"id": "web", "command": "true", "umask": "022"})
	require.NoError(t, err)
	assert.Equal(t, uint32(0o22), r.Umask)
}
