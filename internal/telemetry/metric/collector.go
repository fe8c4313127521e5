// Package metric provides Prometheus metrics for Nebula Tower.
package metric

import "github.com/prometheus/client_golang/prometheus"

// StatsSource reports current record counts. Both store backends
// implement it.
type StatsSource interface {
	Counts() (orgs, hosts, invites int)
}

// Collector exposes store record counts as gauges on scrape.
type Collector struct {
	source StatsSource

	orgsDesc    *prometheus.Desc
	hostsDesc   *prometheus.Desc
	invitesDesc *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector reading from source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		orgsDesc: prometheus.NewDesc(
			namespace+"_organizations",
			"Number of organizations", nil, nil),
		hostsDesc: prometheus.NewDesc(
			namespace+"_hosts",
			"Number of enrolled hosts", nil, nil),
		invitesDesc: prometheus.NewDesc(
			namespace+"_invites",
			"Number of invite records", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.orgsDesc
	ch <- c.hostsDesc
	ch <- c.invitesDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	orgs, hosts, invites := c.source.Counts()
	ch <- prometheus.MustNewConstMetric(c.orgsDesc, prometheus.GaugeValue, float64(orgs))
	ch <- prometheus.MustNewConstMetric(c.hostsDesc, prometheus.GaugeValue, float64(hosts))
	ch <- prometheus.MustNewConstMetric(c.invitesDesc, prometheus.GaugeValue, float64(invites))
}
