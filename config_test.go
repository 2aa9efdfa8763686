package annex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annex/persistence"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dimension: 128
description: IVF100,PQ8
metric: ip
path: /var/lib/annex/items.anx
search:
  nprobe: 8
compression: zstd
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Dimension:   128,
		Description: "IVF100,PQ8",
		Metric:      MetricInnerProduct,
		Path:        "/var/lib/annex/items.anx",
		Search:      SearchParams{NProbe: 8},
		Compression: persistence.CompressionZSTD,
	}, cfg)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("dimension: 4\ndescription: Flat\n"))
	require.NoError(t, err)
	assert.Equal(t, MetricL2, cfg.Metric)
	assert.Equal(t, persistence.CompressionNone, cfg.Compression)
}

func TestParseConfigErrors(t *testing.T) {
	tests := map[string]string{
		"unknown key":     "dimension: 4\ndescription: Flat\nshards: 2\n",
		"bad metric":      "dimension: 4\ndescription: Flat\nmetric: cosine\n",
		"bad compression": "dimension: 4\ndescription: Flat\ncompression: gzip\n",
		"no dimension":    "description: Flat\n",
		"no description":  "dimension: 4\n",
		"negative nprobe": "dimension: 4\ndescription: IVF4,Flat\nsearch:\n  nprobe: -1\n",
		"empty":           "",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(data))
			var ce *ConfigurationError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestConfigMarshalRoundTrip(t *testing.T) {
	cfg := Config{
		Dimension:   32,
		Description: "HNSW16",
		Metric:      MetricInnerProduct,
		Path:        "x.anx",
		Search:      SearchParams{EfSearch: 64},
		Compression: persistence.CompressionLZ4,
	}

	data, err := cfg.Marshal()
	require.NoError(t, err)

	got, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
