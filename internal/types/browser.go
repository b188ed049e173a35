package types

// StepAction is one of the supported synthetic journey actions.
type StepAction string

const (
	ActionGoto   StepAction = "goto"
	ActionClick  StepAction = "click"
	ActionFill   StepAction = "fill"
	ActionExpect StepAction = "expect"
	ActionWait   StepAction = "wait"
)

// BrowserStep is a single entry of a synthetic journey script.
type BrowserStep struct {
	Action   StepAction `json:"action"`
	Selector string     `json:"selector,omitempty"`
	Value    string     `json:"value,omitempty"`
	Text     string     `json:"text,omitempty"`
	Property string     `json:"property,omitempty"`
	URL      string     `json:"url,omitempty"`
	Timeout  int        `json:"timeout,omitempty"` // seconds, per-step override
}

// BrowserConfig is the monitor config for synthetic browser journeys.
type BrowserConfig struct {
	BaseURL string        `json:"base_url,omitempty"`
	Steps   []BrowserStep `json:"steps"`
	// Engine is the preferred browser engine name ("chromium", "chrome",
	// "edge"). Empty uses the first configured engine.
	Engine string `json:"engine,omitempty"`
	// LocalOnly restricts execution to locally installed engines,
	// skipping any configured remote endpoints.
	LocalOnly bool `json:"local_only,omitempty"`
}

// StepOutcome records how far a journey got. The step log always reflects
// attempted steps only; steps after a failure are absent.
type StepOutcome struct {
	Label      string      `json:"label"`
	Status     CheckStatus `json:"status"`
	Detail     string      `json:"detail,omitempty"`
	DurationMs int64       `json:"duration_ms"`
	// Screenshot is a base64 PNG captured on failure, best effort.
	Screenshot string `json:"screenshot,omitempty"`
}
