package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
)

// mockTokens implements driving.TokenLifecycle for testing.
type mockTokens struct {
	status      domain.TokenStatus
	acquireErr  error
	refreshErr  error
	disconnErr  error
	acquired    int
	refreshed   int
	disconnects int
}

func (m *mockTokens) EnsureValid(_ context.Context) error { return nil }

func (m *mockTokens) AcquireInteractive(_ context.Context) (bool, error) {
	m.acquired++
	if m.acquireErr != nil {
		return false, m.acquireErr
	}
	return true, nil
}

func (m *mockTokens) Refresh(_ context.Context) error {
	m.refreshed++
	return m.refreshErr
}

func (m *mockTokens) Disconnect(_ context.Context) error {
	m.disconnects++
	return m.disconnErr
}

func (m *mockTokens) Status(_ context.Context) (domain.TokenStatus, error) {
	return m.status, nil
}

// mockSync implements driving.SyncOrchestrator for testing.
type mockSync struct {
	mu       sync.Mutex
	result   domain.SyncResult
	err      error
	entities []domain.EntityType
	all      int
	block    chan struct{}
	status   *driving.SyncStatus
}

func (m *mockSync) SyncAll(_ context.Context) (domain.SyncResult, error) {
	m.mu.Lock()
	m.all++
	m.mu.Unlock()
	if m.block != nil {
		<-m.block
	}
	return m.result, m.err
}

func (m *mockSync) SyncEntityType(_ context.Context, entity domain.EntityType) (domain.SyncResult, error) {
	m.mu.Lock()
	m.entities = append(m.entities, entity)
	m.mu.Unlock()
	return m.result, m.err
}

func (m *mockSync) Status(_ context.Context) (*driving.SyncStatus, error) {
	if m.status == nil {
		return nil, nil
	}
	s := *m.status
	return &s, nil
}

// mockHistory implements RunHistory for testing.
type mockHistory struct {
	runs  []domain.SyncResult
	err   error
	limit int
}

func (m *mockHistory) ListRuns(_ context.Context, limit int) ([]domain.SyncResult, error) {
	m.limit = limit
	return m.runs, m.err
}

// mockSecrets implements SecretWriter for testing.
type mockSecrets struct {
	values map[string]string
	err    error
}

func (m *mockSecrets) SetSecret(_ context.Context, name, value string) error {
	if m.err != nil {
		return m.err
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[name] = value
	return nil
}

// setupServices installs services for one test and restores the previous ones.
func setupServices(t *testing.T, s Services) {
	t.Helper()
	oldTokens, oldSync, oldHistory, oldSecrets := tokenLifecycle, syncOrchestrator, runHistory, secretWriter
	oldBuilder, oldClose := builder, closeServices
	SetServices(s)
	builder = nil
	t.Cleanup(func() {
		tokenLifecycle, syncOrchestrator, runHistory, secretWriter = oldTokens, oldSync, oldHistory, oldSecrets
		builder, closeServices = oldBuilder, oldClose
	})
}

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		syncDryRun = false
		historyLimit = 10
		authClientID, authClientSecret, authTenantID, authEnvironment, authRedirectURI = "", "", "", "", ""
		verbose, noBrowser = false, false
	})

	err := rootCmd.Execute()
	return buf.String(), err
}
