package internaldefs

import (
	"github.com/MrEthical07/adminauth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   adminauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export.
type HistogramDef struct {
	ID   adminauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: adminauth.MetricLoginSuccess, Name: "adminauth_login_success_total", Help: "Successful logins."},
	{ID: adminauth.MetricLoginFailure, Name: "adminauth_login_failure_total", Help: "Failed login attempts."},
	{ID: adminauth.MetricLoginLocked, Name: "adminauth_login_locked_total", Help: "Login attempts rejected by an active lock."},
	{ID: adminauth.MetricLockout, Name: "adminauth_lockout_total", Help: "Locks set after reaching the failure threshold."},
	{ID: adminauth.MetricCaptchaIssued, Name: "adminauth_captcha_issued_total", Help: "Issued captcha challenges."},
	{ID: adminauth.MetricCaptchaFailure, Name: "adminauth_captcha_failure_total", Help: "Logins rejected by the captcha gate."},
	{ID: adminauth.MetricRefreshIssued, Name: "adminauth_refresh_issued_total", Help: "Replacement tokens minted by the refresh guard."},
	{ID: adminauth.MetricRefreshCoalesced, Name: "adminauth_refresh_coalesced_total", Help: "Near-expiry requests that lost the refresh slot."},
	{ID: adminauth.MetricTokenRejected, Name: "adminauth_token_rejected_total", Help: "Requests rejected for an invalid or expired token."},
	{ID: adminauth.MetricQRGenerated, Name: "adminauth_qr_generated_total", Help: "Generated QR login handshakes."},
	{ID: adminauth.MetricQRConfirmed, Name: "adminauth_qr_confirmed_total", Help: "Confirmed QR login handshakes."},
	{ID: adminauth.MetricQRConsumed, Name: "adminauth_qr_consumed_total", Help: "QR login tokens handed to the display device."},
	{ID: adminauth.MetricPermissionCacheMiss, Name: "adminauth_permission_cache_miss_total", Help: "Permission checks that recomputed the cached set."},
	{ID: adminauth.MetricPermissionDenied, Name: "adminauth_permission_denied_total", Help: "Permission checks that denied the request."},
	{ID: adminauth.MetricLogout, Name: "adminauth_logout_total", Help: "Logout operations."},
	{ID: adminauth.MetricRateLimitHit, Name: "adminauth_rate_limit_hit_total", Help: "Issuance requests denied by the per-IP throttle."},
	{ID: adminauth.MetricSMSSent, Name: "adminauth_sms_sent_total", Help: "Sent SMS login codes."},
	{ID: adminauth.MetricRegistered, Name: "adminauth_registered_total", Help: "Accounts created by self-service registration."},
	{ID: adminauth.MetricPhoneBound, Name: "adminauth_phone_bound_total", Help: "Phone numbers bound to an account."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: adminauth.MetricAuthenticateLatency, Name: "adminauth_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds are the bucket upper bounds in seconds, matching the
// engine's millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds as metric name suffixes.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero padding.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
