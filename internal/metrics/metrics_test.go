package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncRecordsTotal(t *testing.T) {
	before := testutil.ToFloat64(SyncRecordsTotal.WithLabelValues("customers"))
	SyncRecordsTotal.WithLabelValues("customers").Add(5)
	assert.Equal(t, before+5, testutil.ToFloat64(SyncRecordsTotal.WithLabelValues("customers")))
}

func TestWriteTextfile(t *testing.T) {
	CircuitOpen.WithLabelValues("test-identity").Set(1)

	path := filepath.Join(t.TempDir(), "ledgersync.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ledgersync_circuit_open")
	assert.Contains(t, string(data), `identity="test-identity"`)
}
