package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/buildcp/internal/testutil"
)

// TestApp is an App wired to in-memory output for system testing.
type TestApp struct {
	*App
	Out  *testutil.SafeBuffer
	Logs *testutil.SafeBuffer
}

// SetupAppTest creates a new app instance for the build in projectDir with
// a private cache directory. cfg may adjust the configuration before it is
// validated.
func SetupAppTest(t *testing.T, projectDir string, tasks []string, cfg func(*Config)) *TestApp {
	t.Helper()

	c := Config{
		ProjectDir: projectDir,
		CacheDir:   filepath.Join(t.TempDir(), "caches"),
		Tasks:      tasks,
		LogLevel:   "debug",
		LogFormat:  "json",
	}
	if cfg != nil {
		cfg(&c)
	}
	config, err := NewConfig(c)
	require.NoError(t, err)

	out, logs := &testutil.SafeBuffer{}, &testutil.SafeBuffer{}
	a, err := NewApp(out, config, WithLogOutput(logs))
	require.NoError(t, err)

	t.Cleanup(func() {
		if os.Getenv("BUILDCP_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})

	return &TestApp{App: a, Out: out, Logs: logs}
}
