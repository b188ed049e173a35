package monitors

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spyglass-dev/spyglass/internal/config"
	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/types"
)

type fakeSession struct {
	navigateCalls int
	navigateErrs  []error // consumed per call, nil past the end
	clickCalls    []string
	clickErr      error
	texts         map[string]string
	attrs         map[string]string
	shot          []byte
	closed        bool
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.navigateCalls++
	if s.navigateCalls <= len(s.navigateErrs) {
		return s.navigateErrs[s.navigateCalls-1]
	}
	return nil
}

func (s *fakeSession) Click(ctx context.Context, selector string) error {
	s.clickCalls = append(s.clickCalls, selector)
	return s.clickErr
}

func (s *fakeSession) Fill(ctx context.Context, selector, value string) error { return nil }

func (s *fakeSession) TextContent(ctx context.Context, selector string) (string, error) {
	return s.texts[selector], nil
}

func (s *fakeSession) Attribute(ctx context.Context, selector, name string) (string, error) {
	return s.attrs[selector+"/"+name], nil
}

func (s *fakeSession) WaitVisible(ctx context.Context, selector string) error { return nil }

func (s *fakeSession) Screenshot(ctx context.Context) ([]byte, error) { return s.shot, nil }

func (s *fakeSession) Close() { s.closed = true }

func browserMonitor(t *testing.T, cfg types.BrowserConfig) *models.Monitor {
	t.Helper()

	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	return &models.Monitor{Name: "checkout-flow", Kind: "browser", Config: raw}
}

func newFakeRunner(engines []config.BrowserEngine, sessions map[string]*fakeSession, connectErrs map[string]error) *BrowserRunner {
	runner := NewBrowserRunner(config.BrowserConfig{Engines: engines})
	runner.sessions = func(ctx context.Context, engine engineCandidate, opts sessionOptions) (browserSession, error) {
		if err, ok := connectErrs[engine.name]; ok {
			return nil, err
		}
		sess, ok := sessions[engine.name]
		if !ok {
			return nil, errors.New("no session scripted for engine " + engine.name)
		}
		return sess, nil
	}
	return runner
}

var defaultEngines = []config.BrowserEngine{
	{Name: "chromium", ExecPath: "/usr/bin/chromium"},
	{Name: "chrome-remote", RemoteURL: "ws://browsers:9222"},
}

func TestBrowserJourneySuccess(t *testing.T) {
	sess := &fakeSession{texts: map[string]string{"h1": "Welcome back"}}
	runner := newFakeRunner(defaultEngines, map[string]*fakeSession{"chromium": sess}, nil)

	monitor := browserMonitor(t, types.BrowserConfig{
		BaseURL: "https://shop.example.com",
		Steps: []types.BrowserStep{
			{Action: types.ActionGoto, URL: "/login"},
			{Action: types.ActionExpect, Selector: "h1", Text: "Welcome"},
			{Action: types.ActionClick, Selector: "#submit"},
		},
	})

	outcome, err := runner.Execute(context.Background(), monitor)
	require.NoError(t, err)
	assert.Equal(t, types.StatusUp, outcome.Status)
	assert.Equal(t, "chromium", outcome.Meta["engine"])

	steps, ok := outcome.Meta["steps"].([]types.StepOutcome)
	require.True(t, ok)
	require.Len(t, steps, 3)
	for _, s := range steps {
		assert.Equal(t, types.StatusUp, s.Status)
	}

	assert.Equal(t, []string{"#submit"}, sess.clickCalls)
	assert.True(t, sess.closed)
}

func TestBrowserStepFailureStopsJourney(t *testing.T) {
	sess := &fakeSession{
		texts: map[string]string{"h1": "Welcome back"},
		shot:  []byte("png-bytes"),
	}
	runner := newFakeRunner(defaultEngines, map[string]*fakeSession{"chromium": sess}, nil)

	monitor := browserMonitor(t, types.BrowserConfig{
		Steps: []types.BrowserStep{
			{Action: types.ActionGoto, URL: "https://shop.example.com"},
			{Action: types.ActionExpect, Selector: "h1", Text: "Dashboard"},
			{Action: types.ActionClick, Selector: "#submit"},
		},
	})

	outcome, err := runner.Execute(context.Background(), monitor)
	require.NoError(t, err, "journey failures are outcomes, not errors")
	assert.Equal(t, types.StatusDown, outcome.Status)
	assert.Contains(t, outcome.Message, "journey failed")

	steps, ok := outcome.Meta["steps"].([]types.StepOutcome)
	require.True(t, ok)
	require.Len(t, steps, 2, "the step after the failure is never attempted")

	assert.Equal(t, types.StatusUp, steps[0].Status)
	assert.Equal(t, types.StatusDown, steps[1].Status)
	assert.Contains(t, steps[1].Detail, "Dashboard")
	assert.NotEmpty(t, steps[1].Screenshot, "failed step captures a screenshot")

	assert.Empty(t, sess.clickCalls)
}

func TestBrowserTransientNavigationFallsBack(t *testing.T) {
	resetErr := errors.New("page load error net::ERR_CONNECTION_RESET")
	flaky := &fakeSession{navigateErrs: []error{resetErr, resetErr, resetErr}}
	healthy := &fakeSession{}

	runner := newFakeRunner(defaultEngines, map[string]*fakeSession{
		"chromium":      flaky,
		"chrome-remote": healthy,
	}, nil)

	fallbacks := 0
	runner.OnEngineFallback = func() { fallbacks++ }

	monitor := browserMonitor(t, types.BrowserConfig{
		Steps: []types.BrowserStep{{Action: types.ActionGoto, URL: "https://shop.example.com"}},
	})

	outcome, err := runner.Execute(context.Background(), monitor)
	require.NoError(t, err)
	assert.Equal(t, types.StatusUp, outcome.Status)
	assert.Equal(t, "chrome-remote", outcome.Meta["engine"])
	assert.Equal(t, 1, fallbacks)
	assert.Equal(t, 3, flaky.navigateCalls, "navigation is retried before abandoning the engine")
}

func TestBrowserNonTransientFailureDoesNotFallBack(t *testing.T) {
	sess := &fakeSession{clickErr: errors.New("node not found for selector")}
	runner := newFakeRunner(defaultEngines, map[string]*fakeSession{"chromium": sess}, nil)

	fallbacks := 0
	runner.OnEngineFallback = func() { fallbacks++ }

	monitor := browserMonitor(t, types.BrowserConfig{
		Steps: []types.BrowserStep{
			{Action: types.ActionGoto, URL: "https://shop.example.com"},
			{Action: types.ActionClick, Selector: "#missing"},
		},
	})

	outcome, err := runner.Execute(context.Background(), monitor)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDown, outcome.Status)
	assert.Equal(t, 0, fallbacks, "an application-level failure is not an engine problem")
}

func TestBrowserConnectFailureFallsBack(t *testing.T) {
	healthy := &fakeSession{}
	runner := newFakeRunner(defaultEngines,
		map[string]*fakeSession{"chrome-remote": healthy},
		map[string]error{"chromium": errors.New("exec: chromium: not found")},
	)

	fallbacks := 0
	runner.OnEngineFallback = func() { fallbacks++ }

	monitor := browserMonitor(t, types.BrowserConfig{
		Steps: []types.BrowserStep{{Action: types.ActionGoto, URL: "https://shop.example.com"}},
	})

	outcome, err := runner.Execute(context.Background(), monitor)
	require.NoError(t, err)
	assert.Equal(t, types.StatusUp, outcome.Status)
	assert.Equal(t, "chrome-remote", outcome.Meta["engine"])
	assert.Equal(t, 1, fallbacks)
}

func TestBrowserLocalOnlySkipsRemoteEngines(t *testing.T) {
	runner := newFakeRunner(defaultEngines, nil, nil)

	cfg := types.BrowserConfig{
		LocalOnly: true,
		Steps:     []types.BrowserStep{{Action: types.ActionGoto, URL: "https://shop.example.com"}},
	}

	candidates := runner.candidates(cfg)
	require.Len(t, candidates, 1)
	assert.Equal(t, "chromium", candidates[0].name)

	// With only remote engines configured, a local-only journey has nowhere
	// to run and comes back down.
	remoteOnly := newFakeRunner([]config.BrowserEngine{{Name: "chrome-remote", RemoteURL: "ws://browsers:9222"}}, nil, nil)
	monitor := browserMonitor(t, cfg)

	outcome, err := remoteOnly.Execute(context.Background(), monitor)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDown, outcome.Status)
	assert.Contains(t, outcome.Message, "no browser engine available")
}

func TestBrowserPreferredEngineOrdering(t *testing.T) {
	runner := newFakeRunner(defaultEngines, nil, nil)

	candidates := runner.candidates(types.BrowserConfig{Engine: "chrome-remote"})
	require.Len(t, candidates, 2)
	assert.Equal(t, "chrome-remote", candidates[0].name)
	assert.Equal(t, "chromium", candidates[1].name)
}

func TestBrowserInvalidConfig(t *testing.T) {
	runner := newFakeRunner(defaultEngines, nil, nil)

	_, err := runner.Execute(context.Background(), browserMonitor(t, types.BrowserConfig{}))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = runner.Execute(context.Background(), browserMonitor(t, types.BrowserConfig{
		Steps: []types.BrowserStep{{Action: types.ActionGoto}},
	}))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = runner.Execute(context.Background(), browserMonitor(t, types.BrowserConfig{
		Steps: []types.BrowserStep{{Action: "hover", Selector: "#menu"}},
	}))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTransientNetworkClassification(t *testing.T) {
	assert.True(t, isTransientNetworkError(errors.New("net::ERR_CONNECTION_RESET")))
	assert.True(t, isTransientNetworkError(errors.New("navigate: net::ERR_HTTP2_PROTOCOL_ERROR at https://x")))
	assert.False(t, isTransientNetworkError(errors.New("net::ERR_NAME_NOT_RESOLVED")))
	assert.False(t, isTransientNetworkError(errors.New("node not found")))
	assert.False(t, isTransientNetworkError(nil))
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://a.example/login", resolveURL("https://a.example", "/login"))
	assert.Equal(t, "https://a.example/login", resolveURL("https://a.example/", "login"))
	assert.Equal(t, "https://b.example/x", resolveURL("https://a.example", "https://b.example/x"))
	assert.Equal(t, "/login", resolveURL("", "/login"))
}
