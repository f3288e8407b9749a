// Package engine is the per-job Crawl Engine (spec.md §4.4): leases URLs
// off a Job's frontier, fans fetches out across a bounded worker pool, and
// drives each page through fetch → extract → quality-gate → sanitize →
// convert → resolve-assets → normalize → write, completing every
// FrontierEntry it touches.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/crawlkit-dev/crawlkit/internal/assets"
	"github.com/crawlkit-dev/crawlkit/internal/blocklist"
	"github.com/crawlkit-dev/crawlkit/internal/config"
	"github.com/crawlkit-dev/crawlkit/internal/extractor"
	"github.com/crawlkit-dev/crawlkit/internal/fetcher"
	"github.com/crawlkit-dev/crawlkit/internal/finalizer"
	"github.com/crawlkit-dev/crawlkit/internal/frontier"
	"github.com/crawlkit-dev/crawlkit/internal/jobmodel"
	"github.com/crawlkit-dev/crawlkit/internal/mdconvert"
	"github.com/crawlkit-dev/crawlkit/internal/metadata"
	"github.com/crawlkit-dev/crawlkit/internal/normalize"
	"github.com/crawlkit-dev/crawlkit/internal/obslog"
	"github.com/crawlkit-dev/crawlkit/internal/robots"
	"github.com/crawlkit-dev/crawlkit/internal/robots/cache"
	"github.com/crawlkit-dev/crawlkit/internal/sanitizer"
	"github.com/crawlkit-dev/crawlkit/internal/storage"
	"github.com/crawlkit-dev/crawlkit/internal/store"
	"github.com/crawlkit-dev/crawlkit/pkg/hashutil"
	"github.com/crawlkit-dev/crawlkit/pkg/limiter"
	"github.com/crawlkit-dev/crawlkit/pkg/timeutil"
	"github.com/crawlkit-dev/crawlkit/pkg/urlutil"
	"golang.org/x/time/rate"
)

// leaseTTL bounds how long a worker may hold a leased FrontierEntry before
// Store.ExpireStaleLeases (driven by the Supervisor) reclaims it (spec.md
// §4.3's default lease TTL).
const leaseTTL = 30 * time.Second

// jsWorkerCap bounds how many headless-Chrome fetches a job runs
// concurrently once it has fallen back to ChromeFetcher (spec.md §4.4's
// "N=1-4 for JS fetcher" — a rendered tab costs far more than an HTTP GET).
const jsWorkerCap = 4

// leaseBatch is how many URLs one LeaseURLs call hands a worker pool at a
// time.
const leaseBatch = 8

// drainTimeout bounds how long Run waits for in-flight fetches to finish
// once its context is cancelled, before returning anyway.
const drainTimeout = 60 * time.Second

// hashAlgo is the content/URL hashing algorithm used throughout a job's
// pipeline (frontmatter doc_id/content_hash, storage filenames).
const hashAlgo = hashutil.HashAlgoSHA256

// Engine runs Jobs end to end; one Engine is shared across every job the
// Supervisor claims, with per-job state kept in a jobRun.
type Engine struct {
	store      store.Store
	env        config.EnvConfig
	httpClient *http.Client
	outputRoot string
	obs        obslog.Sink

	// dispatch is the process-wide fetch-rate gate (spec.md §4.4.1's
	// politeness budget, applied ahead of any per-host delay), shared by
	// every job this process runs concurrently.
	dispatch *rate.Limiter
}

// NewEngine builds an Engine sharing one HTTP client and one global
// dispatch-rate gate across every job this process runs.
func NewEngine(st store.Store, env config.EnvConfig, outputRoot string, obs obslog.Sink) *Engine {
	requestsPerSecond := float64(time.Second) / float64(env.DownloadDelay)
	return &Engine{
		store:      st,
		env:        env,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		outputRoot: outputRoot,
		obs:        obs,
		dispatch:   rate.NewLimiter(rate.Limit(requestsPerSecond), env.ConcurrentRequests),
	}
}

// jobRun holds every per-job collaborator and piece of mutable state a
// Run invocation's worker pool shares. Grouping them here (rather than on
// Engine) keeps Engine safe for concurrent Run calls across different jobs.
type jobRun struct {
	*Engine

	job    *jobmodel.Job
	obs    obslog.Sink
	meta   metadata.MetadataSink
	outDir string
	kbDir  string

	// rawWriter is the Engine's single writer onto pages.raw.jsonl, the
	// ledger the Finalizer reads once the job reaches finalizing
	// (spec.md §4.5 step 1, §5's "exactly one writer" invariant).
	rawWriter *finalizer.RawRecordWriter

	htmlFetcher   fetcher.HtmlFetcher
	chromeFetcher fetcher.ChromeFetcher
	extractorImpl extractor.DomExtractor
	sanitizerImpl sanitizer.HtmlSanitizer
	convertRule   *mdconvert.StrictConversionRule
	assetResolver assets.LocalResolver
	normalizer    normalize.MarkdownConstraint
	storageSink   storage.LocalSink
	robot         robots.Robot
	hostLimiter   *limiter.ConcurrentRateLimiter
	detector      *blocklist.Detector
	admission     urlutil.AdmissionRule

	// jsSem bounds concurrent ChromeFetcher renders to jsWorkerCap once a
	// job falls back to it; the worker pool itself stays sized for HTTP.
	jsSem chan struct{}

	mu             sync.Mutex
	usingJS        bool
	queuedOrStored int
	inFlightCount  int
	seen           frontier.Set[string] // canonical URL strings already enqueued this run
}

// Run drives job from claimed (Running) through its frontier to quiescence,
// leaving it ready for the Supervisor to move to Finalizing. Run returns
// when the frontier is exhausted, ctx is cancelled (after draining), or an
// unrecoverable setup error occurs.
func (e *Engine) Run(ctx context.Context, job jobmodel.Job) error {
	jr, err := e.newJobRun(&job)
	if err != nil {
		return err
	}

	if err := jr.seedFrontier(); err != nil {
		return err
	}

	heartbeat := time.NewTicker(e.env.HeartbeatInterval)
	defer heartbeat.Stop()

	workers := e.env.ConcurrentRequests
	if workers <= 0 {
		workers = 1
	}
	if workers > leaseBatch*4 {
		workers = leaseBatch * 4 // a job's own pool is a slice of the process budget, not all of it
	}

	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelWork()

	var wg sync.WaitGroup
	idle := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		workerID := fmt.Sprintf("%s-w%d", job.ID(), i)
		go func() {
			defer wg.Done()
			jr.workerLoop(workCtx, workerID)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		select {
		case <-heartbeat.C:
			jr.mu.Lock()
			pages := job.PagesFetched()
			jr.mu.Unlock()
			_ = e.store.Heartbeat(job.ID(), pages, time.Now())
			if stored, err := e.store.GetJob(job.ID()); err == nil && stored.CancelRequested() {
				cancelWork()
			}
			if jr.isQuiescent() {
				cancelWork()
			}
		case <-done:
			close(idle)
			return jr.finishRun(ctx)
		case <-ctx.Done():
			cancelWork()
			select {
			case <-done:
			case <-time.After(drainTimeout):
			}
			return jr.finishRun(context.Background())
		}
	}
}

func (e *Engine) newJobRun(job *jobmodel.Job) (*jobRun, error) {
	meta := metadata.NewRecorder(job.ID().String())

	outDir := filepath.Join(e.outputRoot, job.ID().String())
	kbDir := filepath.Join(outDir, "kb")
	if err := os.MkdirAll(kbDir, 0755); err != nil {
		return nil, fmt.Errorf("engine: preparing output dir: %w", err)
	}
	rawWriter, err := finalizer.NewRawRecordWriter(filepath.Join(outDir, finalizer.RawRecordsFilename))
	if err != nil {
		return nil, fmt.Errorf("engine: opening raw ledger: %w", err)
	}

	htmlFetcher := fetcher.NewHtmlFetcher(&meta)
	htmlFetcher.Init(e.httpClient, e.env.UserAgent)

	chromeFetcher := fetcher.NewChromeFetcher(&meta, job.Timeout())
	chromeFetcher.Init(e.httpClient, e.env.UserAgent)

	robotsCache := cache.NewMemoryCache()
	robotsFetcher := robots.NewRobotsFetcherWithClient(&meta, e.env.UserAgent, e.httpClient, robotsCache)
	robot := robots.NewCachedRobot(robotsFetcher, e.env.UserAgent)

	hostLimiter := limiter.NewConcurrentRateLimiter()
	hostLimiter.SetBaseDelay(e.env.DownloadDelay)

	jr := &jobRun{
		Engine:    e,
		job:       job,
		obs:       e.obs.With(job.ID().String()),
		meta:      &meta,
		outDir:    outDir,
		kbDir:     kbDir,
		rawWriter: rawWriter,

		htmlFetcher:   htmlFetcher,
		chromeFetcher: chromeFetcher,
		extractorImpl: extractor.NewDomExtractor(&meta),
		sanitizerImpl: sanitizer.NewHTMLSanitizer(&meta),
		convertRule:   mdconvert.NewRule(&meta),
		assetResolver: assets.NewLocalResolver(&meta, e.httpClient, e.env.UserAgent),
		normalizer:    normalize.NewMarkdownConstraint(&meta),
		storageSink:   storage.NewLocalSink(&meta),
		robot:         robot,
		hostLimiter:   hostLimiter,
		detector:      blocklist.NewDetector(),
		admission: urlutil.AdmissionRule{
			AllowedHost:        job.AllowedHost(),
			IgnorePathPrefixes: job.IgnorePathPrefixes(),
			ExcludedExtensions: urlutil.DefaultExcludedExtensions(),
			MaxDepth:           e.env.DepthLimit,
		},
		usingJS: job.ForceJS(),
		seen:    frontier.NewSet[string](),
		jsSem:   make(chan struct{}, jsWorkerCap),
	}
	jr.hostLimiter.SetBackoffParam(timeutil.NewBackoffParam(1*time.Second, 2.0, 30*time.Second))
	return jr, nil
}

func (jr *jobRun) seedFrontier() error {
	canonical := urlutil.Canonicalize(jr.job.SeedURL())
	key := canonical.String()

	jr.mu.Lock()
	jr.seen.Add(key)
	jr.queuedOrStored++
	jr.mu.Unlock()

	entry := jobmodel.NewFrontierEntry(jr.job.ID(), jr.job.SeedURL(), canonical, 0, 0, time.Now())
	if _, err := jr.store.EnqueueURL(entry); err != nil {
		return fmt.Errorf("engine: seeding frontier: %w", err)
	}
	jr.logEvent(jobmodel.EventLevelInfo, "job_started", map[string]any{"seed_url": jr.job.SeedURL().String()})
	return nil
}

// isQuiescent reports whether the run should wind down: either max_pages has
// been reached, or no lease-visible work remains and no worker currently
// holds one (spec.md §4.4 point 5).
func (jr *jobRun) isQuiescent() bool {
	jr.mu.Lock()
	pagesFetched := jr.job.PagesFetched()
	inFlight := jr.inFlightCount
	jr.mu.Unlock()

	if maxPages := jr.job.MaxPages(); maxPages > 0 && pagesFetched >= maxPages {
		return true
	}
	if inFlight > 0 {
		return false
	}
	leased, err := jr.store.LeaseURLs(jr.job.ID(), "probe", 1, leaseTTL, time.Now())
	if err != nil {
		return false
	}
	// The probe lease itself counts as outstanding work; a worker will pick
	// this very entry up on its next poll, so just report not-quiescent.
	return len(leased) == 0
}

func (jr *jobRun) finishRun(ctx context.Context) error {
	defer func() {
		if err := jr.rawWriter.Close(); err != nil {
			jr.logEvent(jobmodel.EventLevelWarn, "raw_ledger_close_failed", map[string]any{"error": err.Error()})
		}
	}()
	now := time.Now()
	if err := jr.store.UpdateJob(jr.job.ID(), func(j *jobmodel.Job) {
		j.RecordHeartbeat(j.PagesFetched(), now)
	}); err != nil {
		jr.logEvent(jobmodel.EventLevelWarn, "final_heartbeat_failed", map[string]any{"error": err.Error()})
	}
	if err := jr.store.SetState(jr.job.ID(), jobmodel.JobFinalizing, now); err != nil {
		jr.logEvent(jobmodel.EventLevelError, "transition_to_finalizing_failed", map[string]any{"error": err.Error()})
		return err
	}
	jr.logEvent(jobmodel.EventLevelInfo, "job_frontier_drained", map[string]any{"pages_fetched": jr.job.PagesFetched()})
	return nil
}

func (jr *jobRun) logEvent(level jobmodel.EventLevel, event string, data map[string]any) {
	je := jobmodel.NewJobEvent(jr.job.ID(), level, event, data, time.Now())
	_ = jr.store.LogEvent(je)
	jr.obs.LogEvent(je)
}
