// Package prometheus renders adminauth engine metrics in the Prometheus text
// exposition format.
//
// [NewExporter] reads [adminauth.Engine.MetricsSnapshot] on every scrape.
// Counter names are adminauth_*_total; the single histogram is
// adminauth_authenticate_latency_seconds. Nothing is registered globally;
// mount [Exporter.Handler] where the scraper expects it.
package prometheus
