package main

import (
	"fmt"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

// statusMetrics names the subset of transparency_* metrics (see
// status.Metrics) that "status" prints, in display order.
var statusMetrics = []struct {
	name  string
	label string
}{
	{"transparency_ring_buffer_fill_ratio", "Fill ratio"},
	{"transparency_volume", "Volume"},
	{"transparency_underruns_total", "Underruns"},
	{"transparency_overruns_total", "Overruns"},
	{"transparency_drift_corrections_total", "Drift corrections"},
}

func statusCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print a snapshot of a running engine's metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			families, err := scrapeMetrics(listen)
			if err != nil {
				return fmt.Errorf("failed to query metrics endpoint at %s (is the engine running with --listen?): %w", listen, err)
			}
			printSnapshot(families)
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "localhost:9090", "Address of a running engine's --listen metrics endpoint")
	return cmd
}

func scrapeMetrics(addr string) (map[string]*dto.MetricFamily, error) {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/metrics", addr))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parser expfmt.TextParser
	return parser.TextToMetricFamilies(resp.Body)
}

func printSnapshot(families map[string]*dto.MetricFamily) {
	for _, m := range statusMetrics {
		family, ok := families[m.name]
		if !ok || len(family.GetMetric()) == 0 {
			fmt.Printf("%-20s (unavailable)\n", m.label)
			continue
		}
		metric := family.GetMetric()[0]

		var value float64
		switch {
		case metric.GetCounter() != nil:
			value = metric.GetCounter().GetValue()
		case metric.GetGauge() != nil:
			value = metric.GetGauge().GetValue()
		}
		fmt.Printf("%-20s %v\n", m.label, value)
	}
}
