package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/crawlkit-dev/crawlkit/internal/metadata"
	"github.com/crawlkit-dev/crawlkit/pkg/failure"
	"github.com/crawlkit-dev/crawlkit/pkg/retry"
)

/*
Responsibilities

- Render a page through a headless Chrome tab instead of a bare HTTP GET
- Serve as the engine's fallback fetcher (spec.md §4.4.2) once a site's
  SiteStatus trips to blocked/high-duplicate, a trigger the plain
  HtmlFetcher cannot detect on its own since it never inspects rendered DOM

ChromeFetcher satisfies the same Fetcher contract as HtmlFetcher so the
engine can swap one for the other without touching any downstream stage.
*/

// ChromeFetcher renders fetchUrl in a headless Chrome tab and returns the
// fully rendered DOM's outer HTML, for sites whose content only appears
// after client-side JavaScript runs.
type ChromeFetcher struct {
	metadataSink metadata.MetadataSink
	userAgent    string
	navTimeout   time.Duration
}

var _ Fetcher = (*ChromeFetcher)(nil)

// NewChromeFetcher constructs a ChromeFetcher. navTimeout bounds how long a
// single page render may run before the fetch is abandoned as a timeout.
func NewChromeFetcher(metadataSink metadata.MetadataSink, navTimeout time.Duration) ChromeFetcher {
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	return ChromeFetcher{metadataSink: metadataSink, navTimeout: navTimeout}
}

// Init binds the User-Agent sent to the target site. httpClient is unused —
// the rendering transport is Chrome's own, not Go's net/http — but Init is
// kept so ChromeFetcher satisfies the same Fetcher contract as HtmlFetcher.
func (c *ChromeFetcher) Init(httpClient *http.Client, userAgent string) {
	c.userAgent = userAgent
}

func (c *ChromeFetcher) Fetch(
	ctx context.Context,
	crawlDepth int,
	fetchUrl url.URL,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	start := time.Now()
	result := retry.Retry(retryParam, func() (FetchResult, failure.ClassifiedError) {
		return c.render(ctx, fetchUrl)
	})
	duration := time.Since(start)
	if result.IsFailure() {
		err := result.Err()
		if fetchErr, ok := err.(*FetchError); ok {
			c.metadataSink.RecordError(
				time.Now(),
				"fetcher",
				"ChromeFetcher.Fetch",
				mapFetchErrorToMetadataCause(fetchErr),
				fetchErr.Error(),
				[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, fetchUrl.String())},
			)
		}
		return FetchResult{}, err
	}
	fr := result.Value()
	c.metadataSink.RecordFetch(fetchUrl.String(), fr.Code(), duration, fr.Headers()["Content-Type"], result.Attempts(), crawlDepth)
	return fr, nil
}

// render drives one headless-Chrome navigation of fetchUrl, collecting the
// main document's response status via the Network domain (chromedp actions
// alone never surface the HTTP status, only the rendered DOM) and the
// rendered page's outer HTML.
func (c *ChromeFetcher) render(ctx context.Context, fetchUrl url.URL) (FetchResult, failure.ClassifiedError) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(c.userAgent),
	)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, c.navTimeout)
	defer timeoutCancel()

	var mu sync.Mutex
	statusCode := 0
	headers := make(map[string]string)
	target := fetchUrl.String()

	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if resp.Response.URL == target || statusCode == 0 {
			statusCode = int(resp.Response.Status)
			for k, v := range resp.Response.Headers {
				if s, ok := v.(string); ok {
					headers[k] = s
				}
			}
		}
	})

	var outerHTML string
	err := chromedp.Run(taskCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"User-Agent": c.userAgent}),
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &outerHTML, chromedp.ByQuery),
	)
	if err != nil {
		cause := FetchErrorCause(ErrCauseNetworkFailure)
		retryable := true
		if ctx.Err() != nil || strings.Contains(err.Error(), "context deadline exceeded") {
			cause = ErrCauseTimeout
		}
		return FetchResult{}, &FetchError{Message: err.Error(), Retryable: retryable, Cause: cause}
	}

	mu.Lock()
	defer mu.Unlock()
	if statusCode == 0 {
		// Navigation finished without a captured document response (e.g. a
		// same-document redirect); treat the render as a 200 since the DOM
		// did come back.
		statusCode = http.StatusOK
	}
	if _, hasContentType := headers["Content-Type"]; !hasContentType {
		headers["Content-Type"] = "text/html"
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return FetchResult{}, &FetchError{Message: "429 too many requests", Retryable: true, Cause: ErrCauseRequestTooMany}
	case statusCode == http.StatusForbidden:
		return FetchResult{}, &FetchError{Message: "403 forbidden", Retryable: false, Cause: ErrCauseRequestPageForbidden}
	case statusCode >= 500:
		return FetchResult{}, &FetchError{Message: "server error", Retryable: true, Cause: ErrCauseRequest5xx}
	}

	return NewFetchResult(fetchUrl, []byte(outerHTML), statusCode, headers, time.Now()), nil
}
