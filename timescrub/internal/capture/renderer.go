package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ReplayFunc builds the replay address of pageURL at compactTS.
type ReplayFunc func(compactTS, pageURL string) string

// RodRenderer renders replay pages in a fresh tab per capture.
type RodRenderer struct {
	mgr        *Manager
	replay     ReplayFunc
	navTimeout time.Duration
	settle     time.Duration
	logger     *slog.Logger
}

// RendererOption configures a RodRenderer.
type RendererOption func(*RodRenderer)

// WithNavTimeout bounds navigation and load. Default: 30s.
func WithNavTimeout(d time.Duration) RendererOption {
	return func(r *RodRenderer) {
		if d > 0 {
			r.navTimeout = d
		}
	}
}

// WithSettle waits after load for late layout and web fonts. Default: 500ms.
func WithSettle(d time.Duration) RendererOption {
	return func(r *RodRenderer) {
		if d >= 0 {
			r.settle = d
		}
	}
}

// NewRodRenderer creates a renderer drawing pages from mgr's browser.
func NewRodRenderer(mgr *Manager, replay ReplayFunc, opts ...RendererOption) *RodRenderer {
	r := &RodRenderer{
		mgr:        mgr,
		replay:     replay,
		navTimeout: 30 * time.Second,
		settle:     500 * time.Millisecond,
		logger:     mgr.cfg.Logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RenderToBitmap navigates to the replay of pageURL at compactTS with a
// fixed width x height viewport and returns a screenshot of the viewport.
func (r *RodRenderer) RenderToBitmap(ctx context.Context, pageURL, compactTS string, width, height int) (image.Image, error) {
	b, err := r.mgr.Browser(ctx)
	if err != nil {
		return nil, err
	}

	page, err := r.openPage(b)
	if err != nil {
		return nil, fmt.Errorf("capture: create tab: %w", err)
	}
	defer page.Close()

	if len(r.mgr.cfg.ResourceBlocking) > 0 {
		router := blockResources(page, r.mgr.cfg.ResourceBlocking)
		defer router.Stop()
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("capture: viewport: %w", err)
	}

	target := r.replay(compactTS, pageURL)
	navCtx, cancel := context.WithTimeout(ctx, r.navTimeout)
	defer cancel()

	start := time.Now()
	if err := page.Context(navCtx).Navigate(target); err != nil {
		return nil, fmt.Errorf("capture: navigate %s: %w", target, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		r.logger.Warn("capture: wait load timeout", "url", target, "error", err)
	}

	if r.settle > 0 {
		select {
		case <-time.After(r.settle):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	data, err := page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("capture: screenshot %s: %w", target, err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("capture: decode screenshot: %w", err)
	}

	r.logger.Debug("capture: rendered", "url", target, "width", width, "height", height, "duration", time.Since(start))
	return img, nil
}

func (r *RodRenderer) openPage(b *rod.Browser) (*rod.Page, error) {
	if r.mgr.cfg.Stealth {
		return stealth.Page(b)
	}
	return b.Page(proto.TargetCreateTarget{URL: ""})
}
