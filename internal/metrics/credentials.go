package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterCredentialCache exposes whether the credentials secret has been
// loaded into the process cache. loaded is polled on every scrape.
func RegisterCredentialCache(reg prometheus.Registerer, loaded func() bool) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "licensegate_credentials_cached",
			Help: "1 when the Cryptlex credentials secret is cached, 0 before the first successful fetch",
		}, func() float64 {
			if loaded() {
				return 1
			}
			return 0
		}),
	)
}
