package monitors

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

// chromedpSession drives a Chromium-family engine over CDP, either by
// launching a local executable with hardened flags or by attaching to a
// remote websocket endpoint.
type chromedpSession struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

func newChromedpSession(ctx context.Context, engine engineCandidate, opts sessionOptions) (browserSession, error) {
	var (
		allocCtx context.Context
		cancels  []context.CancelFunc
	)

	if engine.remote() {
		remoteCtx, cancel := chromedp.NewRemoteAllocator(ctx, engine.remoteURL)
		allocCtx = remoteCtx
		cancels = append(cancels, cancel)
	} else {
		execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("lang", opts.locale),
		)
		if engine.execPath != "" {
			execOpts = append(execOpts, chromedp.ExecPath(engine.execPath))
		}
		if opts.userAgent != "" {
			execOpts = append(execOpts, chromedp.UserAgent(opts.userAgent))
		}

		execCtx, cancel := chromedp.NewExecAllocator(ctx, execOpts...)
		allocCtx = execCtx
		cancels = append(cancels, cancel)
	}

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	cancels = append(cancels, cancel)

	sess := &chromedpSession{ctx: taskCtx, cancels: cancels}

	// Force the connection open now so connect failures surface here, and
	// present a realistic UA/locale to reduce bot detection.
	connectCtx, connectCancel := context.WithTimeout(taskCtx, 15*time.Second)
	defer connectCancel()

	ua := emulation.SetUserAgentOverride(opts.userAgent)
	if opts.locale != "" {
		ua = ua.WithAcceptLanguage(opts.locale)
	}

	if err := chromedp.Run(connectCtx, ua); err != nil {
		sess.Close()
		return nil, fmt.Errorf("open browser context: %w", err)
	}

	return sess, nil
}

func (s *chromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	// chromedp.Run needs the session context; honor the step deadline by
	// racing it against the caller's context.
	runCtx, cancel := mergeDeadline(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *chromedpSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *chromedpSession) Fill(ctx context.Context, selector, value string) error {
	return s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (s *chromedpSession) TextContent(ctx context.Context, selector string) (string, error) {
	var out string
	err := s.run(ctx, chromedp.Text(selector, &out, chromedp.ByQuery))
	return out, err
}

func (s *chromedpSession) Attribute(ctx context.Context, selector, name string) (string, error) {
	var (
		out string
		ok  bool
	)
	if err := s.run(ctx, chromedp.AttributeValue(selector, name, &out, &ok, chromedp.ByQuery)); err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("attribute %q not present on %s", name, selector)
	}
	return out, nil
}

func (s *chromedpSession) WaitVisible(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *chromedpSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *chromedpSession) Close() {
	for i := len(s.cancels) - 1; i >= 0; i-- {
		s.cancels[i]()
	}
}

// mergeDeadline applies the tighter of the step context's deadline to the
// session context, and cancels when either is done.
func mergeDeadline(sessionCtx, stepCtx context.Context) (context.Context, context.CancelFunc) {
	var (
		merged context.Context
		cancel context.CancelFunc
	)

	if deadline, ok := stepCtx.Deadline(); ok {
		merged, cancel = context.WithDeadline(sessionCtx, deadline)
	} else {
		merged, cancel = context.WithCancel(sessionCtx)
	}

	stop := context.AfterFunc(stepCtx, cancel)

	return merged, func() {
		stop()
		cancel()
	}
}
