// internal/service/promo/domain/status_test.go
package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"enabled", "ENABLED", "Enabled"} {
		status, err := ParseStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, StatusEnabled, status)
	}

	_, err := ParseStatus("archived")
	assert.Error(t, err)
}

func TestStatusJSONIsLowercase(t *testing.T) {
	data, err := json.Marshal(StatusPending)
	require.NoError(t, err)
	assert.Equal(t, `"pending"`, string(data))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"ENDED"`), &s))
	assert.Equal(t, StatusEnded, s)

	assert.Error(t, json.Unmarshal([]byte(`"bogus"`), &s))
}
