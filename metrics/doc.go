// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package metrics defines the Prometheus collectors exported on GET /metrics.

All collectors are registered with the default registry in init. Timing an
operation:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconcileDuration)

Ballot quota rejections are silent to callers; they show up here as
deliberation_selection_toggles_total{outcome="quota_noop"}.
*/
package metrics
