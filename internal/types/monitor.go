package types

import "time"

// MonitorKind identifies the protocol adapter used to check a monitor.
type MonitorKind string

const (
	KindHTTP        MonitorKind = "http"
	KindTCP         MonitorKind = "tcp"
	KindPing        MonitorKind = "ping"
	KindDNS         MonitorKind = "dns"
	KindCertificate MonitorKind = "certificate"
	KindDatabase    MonitorKind = "database"
	KindDocker      MonitorKind = "docker"
	KindGRPC        MonitorKind = "grpc"
	KindBrowser     MonitorKind = "browser"
	KindPush        MonitorKind = "push"
)

// CheckStatus is the normalized outcome of a single check.
type CheckStatus string

const (
	StatusUp       CheckStatus = "up"
	StatusDown     CheckStatus = "down"
	StatusDegraded CheckStatus = "degraded"
	StatusUnknown  CheckStatus = "unknown"
)

// CheckOutcome is what a protocol adapter returns before the result handler
// persists it as a CheckResult.
type CheckOutcome struct {
	Status    CheckStatus            `json:"status"`
	LatencyMs int64                  `json:"latency_ms"`
	Message   string                 `json:"message,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	CheckedAt time.Time              `json:"checked_at"`
}

// MonitorRef is the minimal monitor identity passed through the pipeline.
type MonitorRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type HttpConfig struct {
	Method         string            `json:"method"`
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers"`
	Body           string            `json:"body,omitempty"`
	ExpectedStatus int               `json:"expected_status"`
	IgnoreTLS      bool              `json:"ignore_tls,omitempty"`
	// DegradedAfterMs marks the check degraded (not down) when the
	// response is slower than this many milliseconds. Zero disables it.
	DegradedAfterMs int64 `json:"degraded_after_ms,omitempty"`
}

type TCPConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type PingConfig struct {
	Host  string `json:"host"`
	Count int    `json:"count,omitempty"` // default 1
}

type DNSConfig struct {
	Domain     string `json:"domain"`
	RecordType string `json:"record_type"` // A, AAAA, CNAME, MX, TXT, NS
	Expected   string `json:"expected,omitempty"`
}

type CertificateConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"` // default 443
	// WarnDays marks the check degraded when the leaf certificate
	// expires within this many days. Default 14.
	WarnDays int `json:"warn_days,omitempty"`
}

type DatabaseConfig struct {
	Type     string `json:"type"` // "postgres", "postgresql", "mysql"
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode,omitempty"` // postgres only
}

type DockerConfig struct {
	ContainerID string `json:"container_id"` // ID or name
	Host        string `json:"host,omitempty"`
}

type GRPCConfig struct {
	Target  string `json:"target"`            // host:port
	Service string `json:"service,omitempty"` // empty checks overall server health
}

// PushConfig configures a passive monitor. Push monitors are never scheduled;
// an inbound webhook feeds results directly into the result handler. The
// lateness sweep consults it: HeartbeatEvery supplies the cadence when the
// monitor's token carries none, and GracePeriod overrides the global grace
// multiplier for this monitor.
type PushConfig struct {
	HeartbeatEvery int     `json:"heartbeat_every"` // expected push cadence, seconds
	GracePeriod    float64 `json:"grace_period,omitempty"`
}
