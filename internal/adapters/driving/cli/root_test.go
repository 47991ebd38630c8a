package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "ledgersync", rootCmd.Use)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("no-browser"))
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"auth", "sync", "history", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestBuilder_CalledWithOptions(t *testing.T) {
	setupServices(t, Services{})
	oldTerminal := isTerminal
	isTerminal = func() bool { return true }
	t.Cleanup(func() { isTerminal = oldTerminal })

	var got Options
	calls := 0
	sync := &mockSync{result: domain.SyncResult{Success: true}}
	builder = func(_ context.Context, opts Options) (*Services, error) {
		calls++
		got = opts
		return &Services{Sync: sync}, nil
	}

	_, err := execute(t, "sync", "--dry-run", "--no-browser")

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, got.DryRun)
	assert.True(t, got.SkipBrowser)
	assert.Equal(t, 1, sync.all)
}

func TestBuilder_NonTerminalSkipsBrowser(t *testing.T) {
	setupServices(t, Services{})
	oldTerminal := isTerminal
	isTerminal = func() bool { return false }
	t.Cleanup(func() { isTerminal = oldTerminal })

	var got Options
	builder = func(_ context.Context, opts Options) (*Services, error) {
		got = opts
		return &Services{Tokens: &mockTokens{}}, nil
	}

	_, err := execute(t, "auth", "status")

	require.NoError(t, err)
	assert.True(t, got.SkipBrowser)
	assert.False(t, got.DryRun)
}

func TestBuilder_NotCalledForVersion(t *testing.T) {
	setupServices(t, Services{})
	builder = func(context.Context, Options) (*Services, error) {
		t.Fatal("builder must not run for version")
		return nil, nil
	}

	_, err := execute(t, "version")

	assert.NoError(t, err)
}

func TestBuilder_ErrorAbortsCommand(t *testing.T) {
	setupServices(t, Services{})
	builder = func(context.Context, Options) (*Services, error) {
		return nil, domain.ErrMissingCredentials
	}

	_, err := execute(t, "sync")

	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
}

func TestExecute_ClosesServices(t *testing.T) {
	closed := 0
	setupServices(t, Services{Close: func() error {
		closed++
		return errors.New("close failed")
	}})
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := Execute(context.Background())

	assert.Equal(t, 1, closed)
	assert.ErrorContains(t, err, "close failed")
	assert.Nil(t, closeServices)
}

func TestSetVersion(t *testing.T) {
	original := version
	t.Cleanup(func() { version = original })

	SetVersion("")
	assert.Equal(t, original, version)

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)
}
