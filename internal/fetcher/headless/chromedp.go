// Package headless renders dealer pages with JavaScript executed.
package headless

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/autoatlas/dealercrawler/internal/dealer"
)

// Config controls the behavior of the headless renderer.
type Config struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	MaxParallel       int
	// MaxScroll bounds the scroll-and-wait iterations used to trigger
	// lazy-loaded dealer cards.
	MaxScroll int
	// SettleDelay is the fixed wait after navigation before extraction.
	SettleDelay time.Duration
	// ScrollDelay is the wait between scroll iterations.
	ScrollDelay time.Duration
	// DomainQPS caps navigations per host. Zero disables the limiter.
	DomainQPS float64
}

// Renderer implements dealer.Renderer using chromedp and headless Chrome.
type Renderer struct {
	cfg            Config
	allocator      context.Context
	allocCancel    context.CancelFunc
	sem            chan struct{}
	domainLimiters sync.Map
	logger         *zap.Logger
}

// New creates a Renderer backed by a shared Chrome exec allocator.
func New(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 15 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	if cfg.ScrollDelay <= 0 {
		cfg.ScrollDelay = 1500 * time.Millisecond
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1920, 1080),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Renderer{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		sem:         make(chan struct{}, cfg.MaxParallel),
		logger:      logger,
	}, nil
}

// Close tears down the Chrome allocator.
func (r *Renderer) Close() {
	r.allocCancel()
}

// Render navigates to rawURL, waits for the body, performs the bounded
// scroll loop, and returns the DOM snapshot. Navigation and timeout
// failures come back as transport errors eligible for brand-level retry.
func (r *Renderer) Render(ctx context.Context, rawURL string) (dealer.Page, error) {
	if err := r.acquire(ctx); err != nil {
		return dealer.Page{}, err
	}
	defer r.release()

	if err := r.waitDomainBudget(ctx, rawURL); err != nil {
		return dealer.Page{}, dealer.NewTransportError(rawURL, err)
	}

	tabCtx, cancelTab := chromedp.NewContext(r.allocator)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.cfg.NavigationTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	start := time.Now()
	html, finalURL, err := r.run(taskCtx, rawURL)
	if err != nil {
		return dealer.Page{}, dealer.NewTransportError(rawURL, err)
	}

	return dealer.Page{
		URL:      rawURL,
		FinalURL: finalURL,
		// chromedp only exposes the main document's status via network
		// events; a completed navigation is treated as a 200.
		StatusCode: 200,
		Body:       []byte(html),
		Duration:   time.Since(start),
		UsedJS:     true,
	}, nil
}

func (r *Renderer) run(ctx context.Context, rawURL string) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		network.Enable(),
		r.userAgentAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.cfg.SettleDelay),
	}
	for i := 0; i < r.cfg.MaxScroll; i++ {
		actions = append(actions,
			chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil),
			chromedp.Sleep(r.cfg.ScrollDelay),
		)
	}
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (r *Renderer) userAgentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if r.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

func (r *Renderer) acquire(ctx context.Context) error {
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	select {
	case <-r.sem:
	default:
	}
}

func (r *Renderer) waitDomainBudget(ctx context.Context, rawURL string) error {
	if r.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.cfg.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
