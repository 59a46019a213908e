package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"plantledger/internal/config"
	"plantledger/internal/core"
	"plantledger/pkg/domain"
)

type seeded struct {
	configPath string
	collection domain.Collection
	batch      domain.SeedBatch
	plant      domain.CultivationRecord
}

// seedLedger writes a config pointing at a fresh sqlite file and fills the
// ledger through the library before the CLI opens it.
func seedLedger(t *testing.T) seeded {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "plantledger.yaml")
	body := strings.Join([]string{
		"organization_name: Botanic Garden Seed Bank",
		"storage:",
		"  driver: sqlite",
		"  sqlite_path: " + filepath.Join(dir, "ledger.db"),
		"blob:",
		"  driver: memory",
		"logging:",
		"  level: error",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0o600))

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	ctx := context.Background()
	ledger, err := core.OpenLedger(ctx, cfg, nil, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, ledger.Close()) }()

	s := seeded{configPath: configPath}
	s.collection, err = ledger.CreateCollection(ctx, domain.Collection{
		Location:       "Kunming",
		Collector:      "Zhang San",
		Taxon:          domain.Taxon{Family: "Rosaceae", Genus: "Rosa", SpeciesLatin: "Rosa chinensis", SpeciesLocal: "月季"},
		Identification: domain.Identification{Identified: true},
	})
	require.NoError(t, err)
	s.batch, err = ledger.CreateSeedBatch(ctx, domain.SeedBatch{TotalQuantity: 50, StorageLocation: "Vault A", CollectionID: &s.collection.ID})
	require.NoError(t, err)
	s.plant, err = ledger.CreateCultivationRecord(ctx, domain.CultivationRecord{Quantity: 12, Location: "Greenhouse 1", SeedBatchID: &s.batch.ID})
	require.NoError(t, err)
	return s
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestAvailableCommand(t *testing.T) {
	s := seedLedger(t)
	code, out, errOut := runCLI(t, "--config", s.configPath, "available")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, s.batch.Code)
	assert.Contains(t, out, "Rosa chinensis (月季)")
	assert.Regexp(t, `50\s+38`, out)
}

func TestStatsCommand(t *testing.T) {
	s := seedLedger(t)
	code, out, errOut := runCLI(t, "-c", s.configPath, "stats", "--top", "3")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Botanic Garden Seed Bank")
	assert.Contains(t, out, "collections: 1 (0 unidentified)")
	assert.Contains(t, out, "seeds available: 38")
	assert.Contains(t, out, "Rosaceae: 1")
}

func TestLineageCommand(t *testing.T) {
	s := seedLedger(t)
	code, out, errOut := runCLI(t, "--config", s.configPath, "lineage", strings.ToLower(s.plant.Code))
	require.Equal(t, 0, code, errOut)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], s.plant.Code))
	assert.True(t, strings.HasPrefix(lines[2], "    "+s.collection.Code))

	code, _, errOut = runCLI(t, "--config", s.configPath, "lineage", "CUL-20200101-000000")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not found")
}

func TestSearchCommand(t *testing.T) {
	s := seedLedger(t)
	code, out, errOut := runCLI(t, "--config", s.configPath, "search", "yueji")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, s.collection.Code)

	code, out, _ = runCLI(t, "--config", s.configPath, "search", "--unidentified")
	require.Equal(t, 0, code)
	assert.NotContains(t, out, s.collection.Code)

	code, out, _ = runCLI(t, "--config", s.configPath, "search", "--cultivations", "--location", "greenhouse")
	require.Equal(t, 0, code)
	assert.Contains(t, out, s.plant.Code)

	code, _, errOut = runCLI(t, "--config", s.configPath, "search", "--from", "yesterday")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "malformed date")
}

func TestExportCommand(t *testing.T) {
	s := seedLedger(t)

	code, out, errOut := runCLI(t, "--config", s.configPath, "export")
	require.Equal(t, 0, code, errOut)
	var doc exportDocument
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "Botanic Garden Seed Bank", doc.Organization)
	require.Len(t, doc.SeedBatches, 1)
	assert.Equal(t, s.batch.Code, doc.SeedBatches[0].Code)
	assert.Len(t, doc.CultivationRecords, 1)

	code, out, errOut = runCLI(t, "--config", s.configPath, "export", "--format", "yaml")
	require.Equal(t, 0, code, errOut)
	var tree map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &tree))
	batches, ok := tree["seed_batches"].([]any)
	require.True(t, ok)
	require.Len(t, batches, 1)
	assert.Equal(t, s.batch.Code, batches[0].(map[string]any)["code"])

	code, _, errOut = runCLI(t, "--config", s.configPath, "export", "--format", "csv")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, `unsupported export format "csv"`)
}

func TestMissingConfigFails(t *testing.T) {
	code, _, errOut := runCLI(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "stats")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "error:")
}
