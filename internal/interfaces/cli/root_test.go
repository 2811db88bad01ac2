package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	unFixture = `<CONSOLIDATED_LIST><INDIVIDUALS><INDIVIDUAL>
  <DATAID>100</DATAID><FIRST_NAME>MOHAMMED</FIRST_NAME><SECOND_NAME>AL-FULAN</SECOND_NAME>
</INDIVIDUAL></INDIVIDUALS></CONSOLIDATED_LIST>`

	ukFixture = `<Designations><Designation>
  <UniqueID>SAN1</UniqueID>
  <Names><Name><Name6>Viktor PETROV</Name6><NameType>Primary Name</NameType></Name></Names>
  <IndividualEntityShip>Individual</IndividualEntityShip>
</Designation></Designations>`

	ofacFixture = `<sdnList><sdnEntry>
  <uid>9639</uid><firstName>Jon</firstName><lastName>SMITH</lastName><sdnType>Individual</sdnType>
</sdnEntry></sdnList>`

	euFixture = `<export><sanctionEntity logicalId="13">
  <subjectType code="person" /><nameAlias wholeName="Sergei AKSYONOV" strong="true" />
</sanctionEntity></export>`
)

// setupEnv points the engine at a temp data dir through the environment,
// the same way a deployment would.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"un_consolidated.xml":   unFixture,
		"uk_consolidated.xml":   ukFixture,
		"ofac_consolidated.xml": ofacFixture,
		"eu_consolidated.xml":   euFixture,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	t.Setenv("AMLSCREEN_SOURCES_DATA_DIR", dir)
	t.Setenv("AMLSCREEN_SNAPSHOT_ENABLED", "true")
	t.Setenv("AMLSCREEN_SNAPSHOT_PATH", filepath.Join(dir, "instance", "snapshot.json"))
	return dir
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLoadCommand(t *testing.T) {
	dir := setupEnv(t)

	out, err := runCommand(t, "load")
	require.NoError(t, err)
	assert.Contains(t, out, "4 records loaded")
	assert.Contains(t, out, "OFAC")
	assert.FileExists(t, filepath.Join(dir, "instance", "snapshot.json"))
}

func TestLoadCommandSkipsUnchanged(t *testing.T) {
	setupEnv(t)
	_, err := runCommand(t, "load")
	require.NoError(t, err)

	out, err := runCommand(t, "load")
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged")
}

func TestLoadCommandForceNamedSource(t *testing.T) {
	setupEnv(t)
	_, err := runCommand(t, "load")
	require.NoError(t, err)

	out, err := runCommand(t, "load", "--force=OFAC")
	require.NoError(t, err)
	assert.Contains(t, out, "parsed")
	assert.Contains(t, out, "unchanged")
}

func TestLoadCommandForceInvalidSource(t *testing.T) {
	setupEnv(t)
	_, err := runCommand(t, "load", "--force=INTERPOL")
	require.Error(t, err)
}

func TestScreenCommandHit(t *testing.T) {
	setupEnv(t)
	_, err := runCommand(t, "load")
	require.NoError(t, err)

	out, err := runCommand(t, "screen", "Jon", "Smith")
	require.NoError(t, err)
	assert.Contains(t, out, "OFAC-9639")
	assert.Contains(t, out, "100.0")
	assert.Contains(t, out, "exact")
}

func TestScreenCommandMiss(t *testing.T) {
	setupEnv(t)
	_, err := runCommand(t, "load")
	require.NoError(t, err)

	out, err := runCommand(t, "screen", "Totally", "Unlisted")
	require.NoError(t, err)
	assert.Contains(t, out, "no matches")
}

func TestScreenCommandJSON(t *testing.T) {
	setupEnv(t)
	_, err := runCommand(t, "load")
	require.NoError(t, err)

	out, err := runCommand(t, "--json", "screen", "Jon", "Smith")
	require.NoError(t, err)
	assert.Contains(t, out, `"record_id": "OFAC-9639"`)
	assert.Contains(t, out, `"rationale_hash"`)
}

func TestScreenCommandSourceFilter(t *testing.T) {
	setupEnv(t)
	_, err := runCommand(t, "load")
	require.NoError(t, err)

	out, err := runCommand(t, "screen", "--source", "UN", "Jon", "Smith")
	require.NoError(t, err)
	assert.NotContains(t, out, "OFAC-9639")
}

func TestScreenCommandInvalidSource(t *testing.T) {
	setupEnv(t)
	_, err := runCommand(t, "screen", "--source", "INTERPOL", "Jon", "Smith")
	require.Error(t, err)
}

func TestStatusCommand(t *testing.T) {
	setupEnv(t)
	_, err := runCommand(t, "load")
	require.NoError(t, err)

	out, err := runCommand(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "total 4 records")
	assert.Contains(t, out, "ready=true")
}

func TestCacheInvalidateCommand(t *testing.T) {
	dir := setupEnv(t)
	_, err := runCommand(t, "load")
	require.NoError(t, err)
	snapshotPath := filepath.Join(dir, "instance", "snapshot.json")
	require.FileExists(t, snapshotPath)

	out, err := runCommand(t, "cache", "invalidate")
	require.NoError(t, err)
	assert.Contains(t, out, "snapshot invalidated")
	_, statErr := os.Stat(snapshotPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFormatTable(t *testing.T) {
	out := formatTable([]string{"A", "LONGER"}, [][]string{{"xx", "y"}, {"z", "wwwwwwww"}})
	assert.Contains(t, out, "A   LONGER")
	assert.Contains(t, out, "--  --------")
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := NewRootCommand()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"load", "screen", "status", "cache"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
