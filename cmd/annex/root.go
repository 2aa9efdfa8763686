package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hupe1980/annex"
	"github.com/hupe1980/annex/blobstore"
	miniostore "github.com/hupe1980/annex/blobstore/minio"
	s3store "github.com/hupe1980/annex/blobstore/s3"
	"github.com/hupe1980/annex/codec"
	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/internal/fvecs"
	"github.com/hupe1980/annex/metrics/promcollector"
	"github.com/hupe1980/annex/persistence"
)

// app holds the flags shared by every command.
type app struct {
	configFile  string
	path        string
	dimension   int
	description string
	metric      string
	compression string
	nprobe      int
	efSearch    int

	backend   string
	bucket    string
	prefix    string
	region    string
	endpoint  string
	accessKey string
	secretKey string
	insecure  bool
	pathStyle bool

	ioLimit     int64
	logLevel    string
	logFormat   string
	codecName   string
	metricsFile string

	registry *prometheus.Registry
	store    blobstore.BlobStore
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "annex",
		Short:        "Build and query approximate nearest neighbor indexes",
		SilenceUsage: true,
		Long: `annex manages single-file ANN indexes addressed by caller-assigned int64 ids.

An index is described by a dimension, a metric and a factory description such
as "Flat", "HNSW32", "IVF100,Flat", "IVF100,PQ8", "SQ8" or "PCA32,IVF100,PQ8".
Files live on the local filesystem, in S3 or in a MinIO bucket.`,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.flushMetrics()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configFile, "config", "", "YAML index config; flags override its values")
	f.StringVar(&a.path, "path", "", "Index file path or object key")
	f.IntVar(&a.dimension, "dim", 0, "Vector dimension")
	f.StringVar(&a.description, "desc", "", "Index factory description, e.g. IVF100,PQ8")
	f.StringVar(&a.metric, "metric", "l2", "Distance metric: l2 or ip")
	f.StringVar(&a.compression, "compression", "none", "File compression: none, zstd or lz4")
	f.IntVar(&a.nprobe, "nprobe", 0, "Inverted lists visited per query (IVF)")
	f.IntVar(&a.efSearch, "ef-search", 0, "Candidate list size per query (HNSW)")

	f.StringVar(&a.backend, "backend", "local", "Storage backend: local, s3 or minio")
	f.StringVar(&a.bucket, "bucket", os.Getenv("ANNEX_BUCKET"), "Bucket for the s3 and minio backends")
	f.StringVar(&a.prefix, "prefix", "", "Key prefix inside the bucket")
	f.StringVar(&a.region, "region", "", "AWS region (s3)")
	f.StringVar(&a.endpoint, "endpoint", os.Getenv("ANNEX_ENDPOINT"), "Service endpoint (minio, or s3 compatible stores)")
	f.StringVar(&a.accessKey, "access-key", os.Getenv("ANNEX_ACCESS_KEY"), "Access key (minio)")
	f.StringVar(&a.secretKey, "secret-key", os.Getenv("ANNEX_SECRET_KEY"), "Secret key (minio)")
	f.BoolVar(&a.insecure, "insecure", false, "Use plain HTTP (minio)")
	f.BoolVar(&a.pathStyle, "path-style", false, "Use path-style addressing (s3)")

	f.Int64Var(&a.ioLimit, "io-limit", 0, "Storage bandwidth limit in bytes per second (0 = unlimited)")
	f.StringVar(&a.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	f.StringVar(&a.logFormat, "log-format", "text", "Log format: text or json")
	f.StringVar(&a.codecName, "codec", "go-json", "Output codec: json or go-json")
	f.StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile on exit")

	root.AddCommand(
		newCreateCmd(a),
		newTrainCmd(a),
		newAddCmd(a),
		newSearchCmd(a),
		newInfoCmd(a),
	)

	return root
}

// config resolves the index config: the YAML file first, then any flag the
// user set explicitly.
func (a *app) config(cmd *cobra.Command) (annex.Config, error) {
	var cfg annex.Config
	if a.configFile != "" {
		loaded, err := annex.LoadConfig(a.configFile)
		if err != nil {
			return annex.Config{}, err
		}
		cfg = loaded
	} else {
		cfg.Metric = annex.MetricL2
	}

	flags := cmd.Flags()
	if flags.Changed("path") || cfg.Path == "" {
		cfg.Path = a.path
	}
	if flags.Changed("dim") {
		cfg.Dimension = a.dimension
	}
	if flags.Changed("desc") {
		cfg.Description = a.description
	}
	if flags.Changed("metric") {
		m, err := distance.ParseMetric(a.metric)
		if err != nil {
			return annex.Config{}, &annex.ConfigurationError{Reason: err.Error()}
		}
		cfg.Metric = m
	}
	if flags.Changed("compression") {
		c, err := persistence.ParseCompression(a.compression)
		if err != nil {
			return annex.Config{}, &annex.ConfigurationError{Reason: err.Error()}
		}
		cfg.Compression = c
	}
	if flags.Changed("nprobe") {
		cfg.Search.NProbe = a.nprobe
	}
	if flags.Changed("ef-search") {
		cfg.Search.EfSearch = a.efSearch
	}

	if cfg.Path == "" {
		return annex.Config{}, errors.New("no index path: set --path or path in --config")
	}
	return cfg, nil
}

func (a *app) blobStore(ctx context.Context) (blobstore.BlobStore, error) {
	if a.store != nil {
		return a.store, nil
	}

	switch a.backend {
	case "", "local":
		a.store = blobstore.NewLocalStore("")
	case "s3":
		if a.bucket == "" {
			return nil, errors.New("s3 backend needs --bucket")
		}
		s, err := s3store.New(ctx, a.bucket, s3store.Config{
			Region:       a.region,
			Endpoint:     a.endpoint,
			UsePathStyle: a.pathStyle,
			Prefix:       a.prefix,
		})
		if err != nil {
			return nil, err
		}
		a.store = s
	case "minio":
		if a.bucket == "" || a.endpoint == "" {
			return nil, errors.New("minio backend needs --bucket and --endpoint")
		}
		client, err := miniostore.New(a.endpoint, a.accessKey, a.secretKey, !a.insecure)
		if err != nil {
			return nil, err
		}
		a.store = miniostore.NewStore(client, a.bucket, a.prefix)
	default:
		return nil, fmt.Errorf("unknown backend %q", a.backend)
	}

	return a.store, nil
}

func (a *app) options(cmd *cobra.Command) ([]annex.Option, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	hopts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch a.logFormat {
	case "text":
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), hopts)
	case "json":
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), hopts)
	default:
		return nil, fmt.Errorf("unknown log format %q", a.logFormat)
	}

	store, err := a.blobStore(cmd.Context())
	if err != nil {
		return nil, err
	}

	opts := []annex.Option{
		annex.WithLogger(annex.NewLogger(handler)),
		annex.WithStore(store),
	}
	if a.ioLimit > 0 {
		opts = append(opts, annex.WithPersistenceOptions(persistence.WithIOLimit(a.ioLimit)))
	}

	if a.metricsFile != "" {
		if a.registry == nil {
			a.registry = prometheus.NewRegistry()
		}
		c, err := promcollector.New(a.registry)
		if err != nil {
			return nil, err
		}
		opts = append(opts, annex.WithMetricsCollector(c))
	}

	return opts, nil
}

// open loads an existing index and applies the search flags.
func (a *app) open(cmd *cobra.Command) (*annex.Index, error) {
	cfg, err := a.config(cmd)
	if err != nil {
		return nil, err
	}
	opts, err := a.options(cmd)
	if err != nil {
		return nil, err
	}

	ix, err := annex.Read(cmd.Context(), cfg.Path, opts...)
	if err != nil {
		return nil, err
	}

	if cfg.Dimension > 0 && cfg.Dimension != ix.Dimension() {
		_ = ix.Close()
		return nil, &annex.DimensionMismatchError{What: "index", Expected: cfg.Dimension, Actual: ix.Dimension()}
	}

	if err := ix.SetSearchParams(cfg.Search); err != nil {
		_ = ix.Close()
		return nil, err
	}
	return ix, nil
}

func (a *app) encode(cmd *cobra.Command, v any) error {
	c, ok := codec.ByName(a.codecName)
	if !ok {
		return fmt.Errorf("unknown codec %q (want one of %v)", a.codecName, codec.Names)
	}
	return codec.Encode(cmd.OutOrStdout(), c, v)
}

func (a *app) flushMetrics() error {
	if a.metricsFile == "" || a.registry == nil {
		return nil
	}
	return prometheus.WriteToTextfile(a.metricsFile, a.registry)
}

// readVectors loads an .fvecs file whose records must match the index dimension.
func readVectors(ix *annex.Index, path string, limit int) ([]float32, int, error) {
	vectors, d, err := fvecs.ReadFile(path, limit)
	if err != nil {
		return nil, 0, err
	}
	if len(vectors) == 0 {
		return nil, 0, fmt.Errorf("%s: no vectors", path)
	}
	if d != ix.Dimension() {
		return nil, 0, &annex.DimensionMismatchError{What: path, Expected: ix.Dimension(), Actual: d}
	}
	return vectors, len(vectors) / d, nil
}
