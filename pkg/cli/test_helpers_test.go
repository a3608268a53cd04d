package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	internaldb "nadc-check/internal/db"
)

const (
	presentName = "SCI_NL__1PWDPA20040301_101010_000060012024_00001_10722_0000.N1"
	missingName = "SCI_NL__1PWDPA20040302_101010_000060012024_00001_10723_0000.N1"
	caiName     = "GOSATTCAI2024030501_01L2CL010010.h5"
	testHost    = "nadc-test"
)

// clearEnv unsets every NADC_* variable the CLI reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NADC_CONFIG", "NADC_LOG_LEVEL", "NADC_LOG_FORMAT", "NADC_WORKERS",
		"NADC_QUERY_TIMEOUT", "NADC_QUERY_RPS", "NADC_QUERY_BURST", "NADC_HOSTNAME",
	} {
		t.Setenv(key, "")
	}
}

// run executes the root command with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

type archiveFixture struct {
	config   string
	sciaLeaf string
	caiPool  string
}

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

// newArchive builds a Sciamachy pool with one unregistered file, a consistent
// GOSAT CAI pool, both catalogs and a config file describing them.
func newArchive(t *testing.T) archiveFixture {
	t.Helper()
	clearEnv(t)
	root := t.TempDir()

	sciaLeaf := filepath.Join(root, "SCIA", "LV1_01", "v8")
	caiPool := filepath.Join(root, "gosat", "LV2_01")
	touch(t,
		filepath.Join(sciaLeaf, presentName),
		filepath.Join(sciaLeaf, missingName),
		filepath.Join(caiPool, "CAI_L2", "2024", "03", "05", caiName),
	)

	sciaPath, sciaDB := internaldb.OpenTestCatalog(t, internaldb.KindScia)
	internaldb.InsertSciaProduct(t, sciaDB, "1", presentName, sciaLeaf, false, "2004-03-01 10:10:10")

	gosatPath, gosatDB := internaldb.OpenTestCatalog(t, internaldb.KindGosat)
	pathID := internaldb.InsertGosatRoot(t, gosatDB, testHost, caiPool, "/nfs/gosat/LV2_01")
	internaldb.InsertGosatCAI(t, gosatDB, pathID, caiName, "2024-03-05 01:23:00")

	cfg := fmt.Sprintf(`catalogs:
  scia:
    kind: scia
    path: %s
  gosat:
    kind: gosat
    path: %s
families:
  - name: scia-l1
    preset: scia-versioned
    catalog: scia
    pools: [%s]
  - name: cai
    preset: gosat-cai-l2
    catalog: gosat
    pools: [%s]
workers: 2
hostname: %s
`, sciaPath, gosatPath, filepath.Dir(sciaLeaf), caiPool, testHost)

	configPath := filepath.Join(root, "nadc.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))

	return archiveFixture{config: configPath, sciaLeaf: sciaLeaf, caiPool: caiPool}
}
