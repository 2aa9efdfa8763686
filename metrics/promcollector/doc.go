// Package promcollector exports annex facade metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	c, err := promcollector.New(reg)
//	if err != nil {
//		return err
//	}
//	idx, err := annex.New(cfg, annex.WithMetricsCollector(c))
package promcollector
