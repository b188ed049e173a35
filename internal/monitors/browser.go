package monitors

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spyglass-dev/spyglass/internal/config"
	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/types"
)

const (
	connectAttempts    = 3
	connectBackoff     = 500 * time.Millisecond
	gotoAttempts       = 3
	gotoBackoffBase    = 250 * time.Millisecond
	gotoBackoffCap     = 2 * time.Second
	defaultStepTimeout = 10 * time.Second
)

// transientNetworkSignatures is the whitelisted class of navigation errors
// worth retrying, and worth abandoning an engine over when they keep
// recurring. Everything else fails the journey immediately.
var transientNetworkSignatures = []string{
	"net::ERR_CONNECTION_RESET",
	"net::ERR_CONNECTION_CLOSED",
	"net::ERR_EMPTY_RESPONSE",
	"net::ERR_NETWORK_CHANGED",
	"net::ERR_TIMED_OUT",
	"net::ERR_HTTP2_PROTOCOL_ERROR",
	"net::ERR_QUIC_PROTOCOL_ERROR",
	"net::ERR_SPDY_PROTOCOL_ERROR",
}

// isTransientNetworkError is the single classification point for the
// retry/fallback decisions.
func isTransientNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, sig := range transientNetworkSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// engineCandidate is one browser engine to try, local or remote.
type engineCandidate struct {
	name      string
	execPath  string
	remoteURL string
}

func (e engineCandidate) remote() bool { return e.remoteURL != "" }

type sessionOptions struct {
	userAgent string
	locale    string
}

// browserSession abstracts a live browser so the journey loop can be tested
// without one. The chromedp implementation lives in chromedp.go.
type browserSession interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	TextContent(ctx context.Context, selector string) (string, error)
	Attribute(ctx context.Context, selector, name string) (string, error)
	WaitVisible(ctx context.Context, selector string) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close()
}

type sessionFactory func(ctx context.Context, engine engineCandidate, opts sessionOptions) (browserSession, error)

type connectError struct{ err error }

func (e *connectError) Error() string { return e.err.Error() }
func (e *connectError) Unwrap() error { return e.err }

// BrowserRunner executes multi-step synthetic journeys. It tries an ordered
// list of engine candidates; per engine it connects with bounded retries,
// then runs the script. A transient network failure moves on to the next
// candidate, any other step failure stops the whole check.
type BrowserRunner struct {
	cfg      config.BrowserConfig
	sessions sessionFactory

	// OnEngineFallback is invoked each time the runner abandons an engine
	// for the next candidate. Optional.
	OnEngineFallback func()
}

func NewBrowserRunner(cfg config.BrowserConfig) *BrowserRunner {
	return &BrowserRunner{cfg: cfg, sessions: newChromedpSession}
}

func (r *BrowserRunner) Execute(ctx context.Context, monitor *models.Monitor) (types.CheckOutcome, error) {
	var cfg types.BrowserConfig
	if err := decodeConfig(monitor, &cfg); err != nil {
		return types.CheckOutcome{}, err
	}

	if len(cfg.Steps) == 0 {
		return types.CheckOutcome{}, fmt.Errorf("%w: browser check requires at least one step", ErrInvalidConfig)
	}
	for i, step := range cfg.Steps {
		if err := validateStep(step); err != nil {
			return types.CheckOutcome{}, fmt.Errorf("%w: step %d: %v", ErrInvalidConfig, i+1, err)
		}
	}

	candidates := r.candidates(cfg)

	start := time.Now()

	if len(candidates) == 0 {
		return down(start, "no browser engine available (local_only=%v, no engines configured)", cfg.LocalOnly), nil
	}

	opts := sessionOptions{userAgent: r.cfg.UserAgent, locale: r.cfg.Locale}

	var stepLog []types.StepOutcome
	var lastErr error

	for i, engine := range candidates {
		attempted, err := r.runJourney(ctx, engine, cfg, opts)
		if attempted != nil {
			stepLog = attempted
		}

		if err == nil {
			outcome := up(start)
			outcome.Meta = map[string]interface{}{
				"engine": engine.name,
				"steps":  stepLog,
			}
			return outcome, nil
		}

		lastErr = err

		var ce *connectError
		retriable := isTransientNetworkError(err) || errors.As(err, &ce)
		if retriable && i < len(candidates)-1 {
			slog.Warn("browser engine failed, falling back",
				"monitor_id", monitor.ID,
				"engine", engine.name,
				"next", candidates[i+1].name,
				"error", err,
			)
			if r.OnEngineFallback != nil {
				r.OnEngineFallback()
			}
			continue
		}

		break
	}

	outcome := down(start, "journey failed: %v", lastErr)
	outcome.Meta = map[string]interface{}{"steps": stepLog}
	return outcome, nil
}

// candidates orders engines by preference. A local-only journey skips
// remote endpoints entirely.
func (r *BrowserRunner) candidates(cfg types.BrowserConfig) []engineCandidate {
	var out []engineCandidate

	add := func(e config.BrowserEngine) {
		if cfg.LocalOnly && e.RemoteURL != "" {
			return
		}
		out = append(out, engineCandidate{name: e.Name, execPath: e.ExecPath, remoteURL: e.RemoteURL})
	}

	// Preferred engine first, remaining engines keep configured order.
	for _, e := range r.cfg.Engines {
		if cfg.Engine != "" && e.Name == cfg.Engine {
			add(e)
		}
	}
	for _, e := range r.cfg.Engines {
		if cfg.Engine != "" && e.Name == cfg.Engine {
			continue
		}
		add(e)
	}

	return out
}

// runJourney connects to one engine and walks the step list. It returns the
// outcomes of the steps actually attempted alongside the first failure.
func (r *BrowserRunner) runJourney(ctx context.Context, engine engineCandidate, cfg types.BrowserConfig, opts sessionOptions) ([]types.StepOutcome, error) {
	sess, err := r.connect(ctx, engine, opts)
	if err != nil {
		return nil, &connectError{err: fmt.Errorf("connect to engine %s: %w", engine.name, err)}
	}
	defer sess.Close()

	var stepLog []types.StepOutcome

	for i, step := range cfg.Steps {
		stepStart := time.Now()
		err := r.runStep(ctx, sess, cfg, step)

		outcome := types.StepOutcome{
			Label:      stepLabel(i, step),
			Status:     types.StatusUp,
			DurationMs: time.Since(stepStart).Milliseconds(),
		}

		if err != nil {
			outcome.Status = types.StatusDown
			outcome.Detail = err.Error()

			// Best effort; a failed screenshot never masks the step error.
			if shot, shotErr := sess.Screenshot(ctx); shotErr == nil && len(shot) > 0 {
				outcome.Screenshot = base64.StdEncoding.EncodeToString(shot)
			} else if shotErr != nil {
				slog.Debug("screenshot capture failed", "step", outcome.Label, "error", shotErr)
			}

			stepLog = append(stepLog, outcome)
			return stepLog, err
		}

		stepLog = append(stepLog, outcome)
	}

	return stepLog, nil
}

// connect establishes a session with bounded retries and linear backoff.
func (r *BrowserRunner) connect(ctx context.Context, engine engineCandidate, opts sessionOptions) (browserSession, error) {
	var lastErr error

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		sess, err := r.sessions(ctx, engine, opts)
		if err == nil {
			return sess, nil
		}
		lastErr = err

		if attempt < connectAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * connectBackoff):
			}
		}
	}

	return nil, lastErr
}

// runStep executes a single step. Only goto is retried, and only for the
// transient network error class.
func (r *BrowserRunner) runStep(ctx context.Context, sess browserSession, cfg types.BrowserConfig, step types.BrowserStep) error {
	timeout := defaultStepTimeout
	if step.Timeout > 0 {
		timeout = time.Duration(step.Timeout) * time.Second
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch step.Action {
	case types.ActionGoto:
		return r.navigateWithRetry(stepCtx, sess, resolveURL(cfg.BaseURL, step.URL))
	case types.ActionClick:
		return sess.Click(stepCtx, step.Selector)
	case types.ActionFill:
		return sess.Fill(stepCtx, step.Selector, step.Value)
	case types.ActionExpect:
		return r.expect(stepCtx, sess, step)
	case types.ActionWait:
		if step.Selector != "" {
			return sess.WaitVisible(stepCtx, step.Selector)
		}
		// A bare wait sleeps for its timeout. Cancel from above still
		// interrupts it.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(timeout):
			return nil
		}
	default:
		return fmt.Errorf("unsupported step action %q", step.Action)
	}
}

func (r *BrowserRunner) navigateWithRetry(ctx context.Context, sess browserSession, url string) error {
	var lastErr error

	backoff := gotoBackoffBase
	for attempt := 1; attempt <= gotoAttempts; attempt++ {
		err := sess.Navigate(ctx, url)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransientNetworkError(err) || attempt == gotoAttempts {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > gotoBackoffCap {
			backoff = gotoBackoffCap
		}
	}

	return lastErr
}

func (r *BrowserRunner) expect(ctx context.Context, sess browserSession, step types.BrowserStep) error {
	if step.Property != "" {
		got, err := sess.Attribute(ctx, step.Selector, step.Property)
		if err != nil {
			return err
		}
		want := step.Value
		if want == "" {
			want = step.Text
		}
		if got != want {
			return fmt.Errorf("expected %s[%s] = %q, got %q", step.Selector, step.Property, want, got)
		}
		return nil
	}

	got, err := sess.TextContent(ctx, step.Selector)
	if err != nil {
		return err
	}

	want := step.Text
	if want == "" {
		want = step.Value
	}
	if !strings.Contains(got, want) {
		return fmt.Errorf("expected %s to contain %q, got %q", step.Selector, want, truncate(got, 200))
	}
	return nil
}

func validateStep(step types.BrowserStep) error {
	switch step.Action {
	case types.ActionGoto:
		if step.URL == "" {
			return fmt.Errorf("goto requires url")
		}
	case types.ActionClick, types.ActionFill:
		if step.Selector == "" {
			return fmt.Errorf("%s requires selector", step.Action)
		}
	case types.ActionExpect:
		if step.Selector == "" {
			return fmt.Errorf("expect requires selector")
		}
		if step.Text == "" && step.Value == "" {
			return fmt.Errorf("expect requires text or value")
		}
	case types.ActionWait:
		// either form is fine
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
	return nil
}

func stepLabel(i int, step types.BrowserStep) string {
	target := step.Selector
	if step.Action == types.ActionGoto {
		target = step.URL
	}
	if target == "" {
		return fmt.Sprintf("%d. %s", i+1, step.Action)
	}
	return fmt.Sprintf("%d. %s %s", i+1, step.Action, target)
}

func resolveURL(base, ref string) string {
	if base == "" || strings.Contains(ref, "://") {
		return ref
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(ref, "/")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
