package interventions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mbd888/riskwatch/internal/pagination"
)

func mustDecode(t *testing.T, cursor string) *pagination.Cursor {
	t.Helper()
	c, err := pagination.Decode(cursor)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}
