package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenCommand(t *testing.T) {
	out, err := runCmd(t, "gen", "X-{Const=1}", "-n", "3")
	require.NoError(t, err)
	assert.Equal(t, "X-1\nX-1\nX-1\n", out)

	_, err = runCmd(t, "gen", "X-{Nope}")
	assert.Error(t, err)
}

func TestTypesCommand(t *testing.T) {
	out, err := runCmd(t, "types")
	require.NoError(t, err)
	types := strings.Fields(out)
	assert.Contains(t, types, "TimeCount")
	assert.Contains(t, types, "Snowflake")
	assert.Contains(t, types, "Segment")
}

func TestLoadConfigAndNewApp(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  addr: ":0"
  max_count: 50
log:
  level: warn
metrics:
  enabled: false
sqlite:
  path: "` + filepath.Join(dir, "idforge.db") + `"
idgen:
  location: UTC
  templates:
    order: "ORD{TimeCount=20060102,,%s%04d}"
    invoice: "INV{Segment=invoice,10,6}"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "idforged.yaml"), []byte(yaml), 0o644))

	cfg, err := loadConfig(context.Background(), "idforged", []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Server.MaxCount)
	assert.Equal(t, "UTC", cfg.IDGen.Location)
	assert.Len(t, cfg.IDGen.Templates, 2)

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, a.close()) }()

	ids, err := a.set.GenerateBatch(context.Background(), "invoice", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"INV000001", "INV000002"}, ids)
}

func TestNewAppFailsWithoutConnector(t *testing.T) {
	cfg := &appConfig{}
	cfg.IDGen.Templates = map[string]string{"seq": "{Seq=orders}"}

	_, err := newApp(context.Background(), cfg)
	assert.Error(t, err)
}
