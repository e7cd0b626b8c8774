package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContextCarriesRequestFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(&buf, "debug")

	ctx := NewContext(context.Background(), WithField("request_id", "req-1"))
	FromContext(ctx).Info("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "info", line["level"])
}

func TestFromContextWithoutEntry(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(&buf, "bogus")

	FromContext(context.Background()).Debug("hidden")
	assert.Empty(t, buf.String(), "invalid level falls back to info")
}
