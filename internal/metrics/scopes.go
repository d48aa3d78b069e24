package metrics

import "github.com/prometheus/client_golang/prometheus"

// ScopeStat es el tamaño de un scope en un momento dado.
type ScopeStat struct {
	ProjectID         string
	TenantID          string
	Accounts          int
	OobCodes          int
	VerificationCodes int
}

// ScopeStatser lo implementa el store.
type ScopeStatser interface {
	Stats() []ScopeStat
}

type scopeCollector struct {
	src      ScopeStatser
	accounts *prometheus.Desc
	oob      *prometheus.Desc
	sms      *prometheus.Desc
}

func newScopeCollector(src ScopeStatser) *scopeCollector {
	labels := []string{"project", "tenant"}
	return &scopeCollector{
		src:      src,
		accounts: prometheus.NewDesc("authemu_accounts", "Cuentas por scope", labels, nil),
		oob:      prometheus.NewDesc("authemu_pending_oob_codes", "OOB codes pendientes por scope", labels, nil),
		sms:      prometheus.NewDesc("authemu_pending_verification_codes", "Sesiones SMS pendientes por scope", labels, nil),
	}
}

func (c *scopeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.accounts
	ch <- c.oob
	ch <- c.sms
}

func (c *scopeCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.src.Stats() {
		ch <- prometheus.MustNewConstMetric(c.accounts, prometheus.GaugeValue, float64(s.Accounts), s.ProjectID, s.TenantID)
		ch <- prometheus.MustNewConstMetric(c.oob, prometheus.GaugeValue, float64(s.OobCodes), s.ProjectID, s.TenantID)
		ch <- prometheus.MustNewConstMetric(c.sms, prometheus.GaugeValue, float64(s.VerificationCodes), s.ProjectID, s.TenantID)
	}
}
