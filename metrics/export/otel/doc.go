// Package otel publishes adminauth engine metrics through an OpenTelemetry
// meter: one observable counter per engine counter and one observable gauge
// per latency bucket, all fed by a single callback reading
// [adminauth.Engine.MetricsSnapshot]. The caller owns the MeterProvider.
package otel
