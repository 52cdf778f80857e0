package workbook

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// ChromeOptions selects how the host reaches the spreadsheet page.
type ChromeOptions struct {
	// RemoteURL is a DevTools websocket URL of a browser that already has the
	// workbook open with the add-in loaded. Takes precedence over WorkbookURL.
	RemoteURL string
	// TargetMatch picks the tab to attach to when RemoteURL is set.
	TargetMatch string
	// WorkbookURL is opened in a newly launched browser.
	WorkbookURL string
	Headless    bool
	Timeout     time.Duration
}

// ChromeHost evaluates scripts in the page hosting the workbook.
type ChromeHost struct {
	opts ChromeOptions

	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

func NewChromeHost(opts ChromeOptions) *ChromeHost {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &ChromeHost{opts: opts}
}

func (h *ChromeHost) initBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.browserCtx != nil {
		select {
		case <-h.browserCtx.Done():
			h.cleanup()
		default:
			return nil
		}
	}

	if h.opts.RemoteURL != "" {
		return h.attach()
	}
	return h.launch()
}

func (h *ChromeHost) launch() error {
	if h.opts.WorkbookURL == "" {
		return fmt.Errorf("chrome host: neither remote url nor workbook url configured")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", h.opts.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	h.allocCtx, h.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	h.browserCtx, h.browserCancel = chromedp.NewContext(h.allocCtx)

	if err := chromedp.Run(h.browserCtx, chromedp.Navigate(h.opts.WorkbookURL)); err != nil {
		h.cleanup()
		return fmt.Errorf("open workbook: %w", err)
	}
	log.Printf("chrome host: opened %s", h.opts.WorkbookURL)
	return nil
}

func (h *ChromeHost) attach() error {
	h.allocCtx, h.allocCancel = chromedp.NewRemoteAllocator(context.Background(), h.opts.RemoteURL)
	probeCtx, probeCancel := chromedp.NewContext(h.allocCtx)

	targets, err := chromedp.Targets(probeCtx)
	if err != nil {
		probeCancel()
		h.cleanup()
		return fmt.Errorf("list browser targets: %w", err)
	}

	if t, ok := pickTarget(targets, h.opts.TargetMatch); ok {
		h.browserCtx, h.browserCancel = chromedp.NewContext(probeCtx, chromedp.WithTargetID(t.TargetID))
		prev := h.browserCancel
		h.browserCancel = func() {
			prev()
			probeCancel()
		}
		log.Printf("chrome host: attached to %s %s", t.Type, t.URL)
		return nil
	}

	probeCancel()
	h.cleanup()
	return fmt.Errorf("no page or iframe target matching %q", h.opts.TargetMatch)
}

// pickTarget chooses the target to attach to. Add-ins in Excel on the web run
// inside an out-of-process iframe, so with a match set a matching iframe wins
// over a matching page. Without a match only pages are considered.
func pickTarget(targets []*target.Info, match string) (*target.Info, bool) {
	var page *target.Info
	for _, t := range targets {
		switch t.Type {
		case "iframe":
			if match != "" && strings.Contains(t.URL, match) {
				return t, true
			}
		case "page":
			if page == nil && (match == "" || strings.Contains(t.URL, match)) {
				page = t
			}
		}
	}
	return page, page != nil
}

func (h *ChromeHost) cleanup() {
	if h.browserCancel != nil {
		h.browserCancel()
	}
	if h.allocCancel != nil {
		h.allocCancel()
	}
	h.browserCtx = nil
	h.allocCtx = nil
	h.browserCancel = nil
	h.allocCancel = nil
}

// Evaluate runs script in the page and awaits the returned promise.
func (h *ChromeHost) Evaluate(ctx context.Context, script string, res any) error {
	if err := h.initBrowser(); err != nil {
		return err
	}

	h.mu.Lock()
	browserCtx := h.browserCtx
	h.mu.Unlock()

	actionCtx, cancel := context.WithTimeout(browserCtx, h.opts.Timeout)
	defer cancel()

	// The caller's cancellation also stops the evaluation.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(actionCtx, chromedp.Evaluate(script, res, awaitPromise))
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// Close detaches from or shuts down the browser.
func (h *ChromeHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanup()
	return nil
}
