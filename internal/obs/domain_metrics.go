package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartCommandsTotal counts cart gestures by kind and whether they changed the cart.
	CartCommandsTotal *prometheus.CounterVec
	// CheckoutTotal counts checkout attempts and their outcomes per provider.
	CheckoutTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound payment webhook processing outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// RenderSubscribers tracks open cart render streams.
	RenderSubscribers prometheus.Gauge
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartCommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_commands_total",
			Help:      "Count of cart gestures by kind and result.",
		}, []string{"kind", "result"})
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts and outcomes.",
		}, []string{"provider", "result"})
		PaymentWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Count of processed payment webhooks by outcome.",
		}, []string{"provider", "result"})
		RenderSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cart_render_subscribers",
			Help:      "Number of connected cart render streams.",
		})

		mustRegisterCollector(reg, CartCommandsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartCommandsTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentWebhookTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentWebhookTotal = v
			}
		})
		mustRegisterCollector(reg, RenderSubscribers, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				RenderSubscribers = v
			}
		})
	})
}

// IncCartCommand records a cart gesture. It is a no-op before registration.
func IncCartCommand(kind, result string) {
	if CartCommandsTotal != nil {
		CartCommandsTotal.WithLabelValues(kind, result).Inc()
	}
}

// IncCheckout records a checkout step outcome.
func IncCheckout(provider, result string) {
	if CheckoutTotal != nil {
		CheckoutTotal.WithLabelValues(provider, result).Inc()
	}
}

// IncPaymentWebhook records a webhook outcome.
func IncPaymentWebhook(provider, result string) {
	if PaymentWebhookTotal != nil {
		PaymentWebhookTotal.WithLabelValues(provider, result).Inc()
	}
}

// AddRenderSubscribers adjusts the open stream gauge by delta.
func AddRenderSubscribers(delta float64) {
	if RenderSubscribers != nil {
		RenderSubscribers.Add(delta)
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
