package annex

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/persistence"
)

// Metric is the similarity measure of an index.
type Metric = distance.Metric

const (
	// MetricInnerProduct ranks larger dot products first.
	MetricInnerProduct = distance.MetricInnerProduct
	// MetricL2 ranks smaller squared Euclidean distances first.
	MetricL2 = distance.MetricL2
)

// SearchParams tune query time recall. Zero leaves the engine default.
type SearchParams struct {
	// NProbe is the number of inverted lists visited (IVF families).
	NProbe int `yaml:"nprobe,omitempty"`
	// EfSearch is the candidate list size (HNSW families).
	EfSearch int `yaml:"ef_search,omitempty"`
}

// Config describes an index. It is fixed once the index exists.
type Config struct {
	Dimension   int    `yaml:"dimension"`
	Description string `yaml:"description"`
	Metric      Metric `yaml:"metric"`
	// Path names the index file in the configured store.
	Path        string                  `yaml:"path"`
	Search      SearchParams            `yaml:"search,omitempty"`
	Compression persistence.Compression `yaml:"compression,omitempty"`
}

// Validate checks the parts of the config that do not need the engine.
// Descriptions are checked when the index is built.
func (c Config) Validate() error {
	switch {
	case c.Dimension <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("dimension must be positive, got %d", c.Dimension)}
	case strings.TrimSpace(c.Description) == "":
		return &ConfigurationError{Reason: "description is empty"}
	case !c.Metric.Valid():
		return &ConfigurationError{Reason: fmt.Sprintf("unsupported metric %d", int(c.Metric))}
	case c.Search.NProbe < 0:
		return &ConfigurationError{Reason: fmt.Sprintf("nprobe must not be negative, got %d", c.Search.NProbe)}
	case c.Search.EfSearch < 0:
		return &ConfigurationError{Reason: fmt.Sprintf("ef_search must not be negative, got %d", c.Search.EfSearch)}
	}
	return nil
}

// LoadConfig reads a YAML config. Unknown keys are rejected and a missing
// metric defaults to L2.
//
//	dimension: 128
//	description: IVF100,PQ8
//	metric: l2
//	path: /var/lib/annex/items.anx
//	search:
//	  nprobe: 8
//	compression: zstd
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("annex: cannot read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config data. See LoadConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := Config{Metric: MetricL2}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, &ConfigurationError{Reason: "cannot parse config", cause: err}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
