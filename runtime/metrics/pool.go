package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegisterPoolCollectors registers a resource pool's size/utilization
// gauges against reg. Pools are created after the Container is built, so
// their collectors are registered individually rather than listed in
// Collectors().
func RegisterPoolCollectors(reg prometheus.Registerer, collectors ...prometheus.Collector) error {
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
