package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/standsim/internal/config"
	"github.com/Iron-Ham/standsim/internal/event"
	"github.com/Iron-Ham/standsim/internal/logging"
	"github.com/Iron-Ham/standsim/internal/sim"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// isolateConfig points the config directory at a temp dir.
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "standsim")
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "standsim", rootCmd.Use)

	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "config", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(rootCmd, "version")
	require.NoError(t, err)
	assert.Equal(t, "standsim version "+Version+"\n", out)
}

func TestConfigInitAndShow(t *testing.T) {
	dir := isolateConfig(t)
	configInitForce = false

	out, err := executeCommand(rootCmd, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "config.yaml"))

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# standsim configuration"))

	var written config.Config
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Equal(t, *config.Default(), written)

	_, err = executeCommand(rootCmd, "config", "init")
	assert.Error(t, err, "init refuses to overwrite")

	out, err = executeCommand(rootCmd, "config", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Created config file")
	configInitForce = false

	out, err = executeCommand(rootCmd, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "dwell_ms: 1000")
	assert.Contains(t, out, "interval_ms: 2000")
}

func TestConfigPath(t *testing.T) {
	dir := isolateConfig(t)

	out, err := executeCommand(rootCmd, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "config.yaml"))
	assert.Contains(t, out, "STANDSIM_")
}

func TestRunHeadless(t *testing.T) {
	dir := isolateConfig(t)
	require.NoError(t, os.MkdirAll(dir, 0755))

	fast := `track:
  start: 0
  midpoint: 0.1
  approach: 0.5
  stand: 0.9
  end: 1.0
  proximity: 0.02
agent:
  speed_min: 0.05
  speed_max: 0.1
  tick_min_us: 500
  tick_max_us: 1000
stand:
  dwell_ms: 5
fleet:
  spawn_min_ms: 2
  spawn_max_ms: 4
  reap_interval_ms: 5
logging:
  enabled: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(fast), 0644))

	out, err := executeCommand(rootCmd, "run", "--config", filepath.Join(dir, "config.yaml"),
		"--headless", "--duration", "300ms", "--phase", "0", "--seed", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "waiting=")
	assert.Contains(t, out, "spawned=")
	assert.Contains(t, out, "stand A served=")
	assert.Contains(t, out, "stand C served=0")
}

func TestRunRejectsBadPhase(t *testing.T) {
	isolateConfig(t)
	t.Setenv("STANDSIM_LOGGING_ENABLED", "false")

	_, err := executeCommand(rootCmd, "run", "--headless", "--phase", "7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--phase")
	runPhase = -1
}

func TestStartReporterSubscribesBeforeRunAndJoins(t *testing.T) {
	cfg := config.Default()
	s := sim.New(cfg)
	baseline := s.Bus().SubscriptionCount()

	var out bytes.Buffer
	stop := startReporter(s, cfg, &out, logging.NopLogger())
	assert.Equal(t, baseline+1, s.Bus().SubscriptionCount(), "reporter subscribed before returning")

	// A change published before the simulation or the reporter loop runs.
	s.Bus().Publish(event.NewWaitingChangedEvent(2, 1))

	stop()
	assert.Equal(t, "waiting=2\n", out.String())
	assert.Equal(t, baseline, s.Bus().SubscriptionCount(), "reporter unsubscribed after stop")
	s.Stop()
}

func TestStartReporterDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Report.Enabled = false
	s := sim.New(cfg)
	baseline := s.Bus().SubscriptionCount()

	var out bytes.Buffer
	stop := startReporter(s, cfg, &out, logging.NopLogger())
	s.Bus().Publish(event.NewWaitingChangedEvent(1, 1))
	stop()

	assert.Empty(t, out.String())
	assert.Equal(t, baseline, s.Bus().SubscriptionCount())
	s.Stop()
}
