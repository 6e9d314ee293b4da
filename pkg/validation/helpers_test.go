package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func marshalJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
