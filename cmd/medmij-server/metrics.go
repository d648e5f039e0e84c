package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	authorizeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medmij_authorize_requests_total",
			Help: "Inbound authorization requests by outcome.",
		},
		[]string{"outcome"},
	)

	grantDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medmij_grant_decisions_total",
			Help: "Grant decisions by outcome.",
		},
		[]string{"outcome"},
	)

	codeRedemptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medmij_code_redemptions_total",
			Help: "Authorization-code redemptions by outcome.",
		},
		[]string{"outcome"},
	)
)

func registerMetrics() {
	prometheus.MustRegister(authorizeRequests, grantDecisions, codeRedemptions)
}
