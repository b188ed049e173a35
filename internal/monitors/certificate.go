package monitors

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/types"
)

const defaultCertWarnDays = 14

type CertificateAdapter struct{}

func (a *CertificateAdapter) Execute(ctx context.Context, monitor *models.Monitor) (types.CheckOutcome, error) {
	var cfg types.CertificateConfig
	if err := decodeConfig(monitor, &cfg); err != nil {
		return types.CheckOutcome{}, err
	}

	if cfg.Host == "" {
		return types.CheckOutcome{}, fmt.Errorf("%w: certificate check requires host", ErrInvalidConfig)
	}

	port := cfg.Port
	if port == 0 {
		port = 443
	}

	warnDays := cfg.WarnDays
	if warnDays <= 0 {
		warnDays = defaultCertWarnDays
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", port))

	start := time.Now()

	dialer := &tls.Dialer{
		Config: &tls.Config{ServerName: cfg.Host},
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return down(start, "tls handshake with %s: %v", addr, err), nil
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return down(start, "no peer certificates presented by %s", addr), nil
	}

	leaf := state.PeerCertificates[0]
	now := time.Now()
	remaining := leaf.NotAfter.Sub(now)

	meta := map[string]interface{}{
		"subject":    leaf.Subject.CommonName,
		"issuer":     leaf.Issuer.CommonName,
		"not_after":  leaf.NotAfter,
		"days_left":  int(remaining.Hours() / 24),
	}

	if now.After(leaf.NotAfter) {
		outcome := down(start, "certificate for %s expired on %s", cfg.Host, leaf.NotAfter.Format("2006-01-02"))
		outcome.Meta = meta
		return outcome, nil
	}

	if remaining < time.Duration(warnDays)*24*time.Hour {
		outcome := degraded(start, "certificate for %s expires in %d days", cfg.Host, int(remaining.Hours()/24))
		outcome.Meta = meta
		return outcome, nil
	}

	outcome := up(start)
	outcome.Meta = meta
	return outcome, nil
}
