package tenauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected credential attempts.
	MetricLoginFailure
	// MetricAccountLocked counts logins rejected by an active lockout.
	MetricAccountLocked
	// MetricLockoutStarted counts lockout windows opened.
	MetricLockoutStarted
	// MetricRefreshSuccess counts successful rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure
	// MetricRefreshReuseDetected counts redemptions of already-revoked tokens.
	MetricRefreshReuseDetected
	// MetricLogout counts single-token logouts.
	MetricLogout
	// MetricLogoutAll counts all-device revocations.
	MetricLogoutAll
	// MetricRegisterSuccess counts created accounts.
	MetricRegisterSuccess
	// MetricRegisterDuplicate counts registrations rejected on email conflict.
	MetricRegisterDuplicate
	// MetricEmailVerified counts consumed verification tokens.
	MetricEmailVerified
	// MetricPasswordResetRequest counts reset requests, found or not.
	MetricPasswordResetRequest
	// MetricPasswordResetSuccess counts completed resets.
	MetricPasswordResetSuccess
	// MetricPasswordChange counts in-session password changes.
	MetricPasswordChange
	// MetricTenantResolved counts successful tenant resolutions.
	MetricTenantResolved
	// MetricTenantDenied counts rejected tenant resolutions.
	MetricTenantDenied
	// MetricPermissionGrant counts allowed permission checks.
	MetricPermissionGrant
	// MetricPermissionDeny counts denied permission checks.
	MetricPermissionDeny
	// MetricPermissionCacheHit counts checks served from cache.
	MetricPermissionCacheHit
	// MetricPermissionInvalidation counts cache invalidations issued.
	MetricPermissionInvalidation
	// MetricInvitationCreated counts invitations sent.
	MetricInvitationCreated
	// MetricInvitationAccepted counts invitations redeemed.
	MetricInvitationAccepted
	// MetricMembershipChanged counts role updates and removals.
	MetricMembershipChanged
	// MetricNotifyDropped counts notifications dropped on a full queue.
	MetricNotifyDropped
	// MetricCheckLatency is the permission check latency histogram.
	MetricCheckLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:           "login_success",
	MetricLoginFailure:           "login_failure",
	MetricAccountLocked:          "account_locked",
	MetricLockoutStarted:         "lockout_started",
	MetricRefreshSuccess:         "refresh_success",
	MetricRefreshFailure:         "refresh_failure",
	MetricRefreshReuseDetected:   "refresh_reuse_detected",
	MetricLogout:                 "logout",
	MetricLogoutAll:              "logout_all",
	MetricRegisterSuccess:        "register_success",
	MetricRegisterDuplicate:      "register_duplicate",
	MetricEmailVerified:          "email_verified",
	MetricPasswordResetRequest:   "password_reset_request",
	MetricPasswordResetSuccess:   "password_reset_success",
	MetricPasswordChange:         "password_change",
	MetricTenantResolved:         "tenant_resolved",
	MetricTenantDenied:           "tenant_denied",
	MetricPermissionGrant:        "permission_grant",
	MetricPermissionDeny:         "permission_deny",
	MetricPermissionCacheHit:     "permission_cache_hit",
	MetricPermissionInvalidation: "permission_invalidation",
	MetricInvitationCreated:      "invitation_created",
	MetricInvitationAccepted:     "invitation_accepted",
	MetricMembershipChanged:      "membership_changed",
	MetricNotifyDropped:          "notify_dropped",
	MetricCheckLatency:           "permission_check_latency",
}

// Name returns the stable snake_case name of the metric, used by exporters.
func (id MetricID) Name() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs returns every counter id in declaration order.
func MetricIDs() []MetricID {
	out := make([]MetricID, 0, metricIDCount)
	for id := MetricID(0); id < metricIDCount; id++ {
		out = append(out, id)
	}
	return out
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBucketBoundsMS lists the upper bound in milliseconds of each
// latency bucket; the last bucket is unbounded.
var HistogramBucketBoundsMS = [histBucketCount - 1]int64{5, 10, 25, 50, 100, 250, 500}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// MetricsConfig controls metric collection.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Metrics is the engine's lock-free counter set. All methods are safe for
// concurrent use and are no-ops on a nil receiver.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	latency       metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters       map[MetricID]uint64
	LatencyBuckets []uint64
}

// NewMetrics builds a Metrics set from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a permission check duration into the latency histogram.
func (m *Metrics) Observe(d time.Duration) {
	if m == nil || !m.enableLatency {
		return
	}
	atomic.AddUint64(&m.latency.buckets[latencyBucket(d)], 1)
}

// Value returns the current counter value.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters atomically enough for reporting. Counters are
// read individually, so the snapshot is not a consistent cut.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		s.LatencyBuckets = make([]uint64, histBucketCount)
		for i := range s.LatencyBuckets {
			s.LatencyBuckets[i] = atomic.LoadUint64(&m.latency.buckets[i])
		}
	}
	return s
}

func latencyBucket(d time.Duration) int {
	ms := d.Milliseconds()
	for i, bound := range HistogramBucketBoundsMS {
		if ms <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
