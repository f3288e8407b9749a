package engine

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/crawlkit-dev/crawlkit/internal/assets"
	"github.com/crawlkit-dev/crawlkit/internal/blocklist"
	"github.com/crawlkit-dev/crawlkit/internal/build"
	"github.com/crawlkit-dev/crawlkit/internal/fetcher"
	"github.com/crawlkit-dev/crawlkit/internal/finalizer"
	"github.com/crawlkit-dev/crawlkit/internal/jobmodel"
	"github.com/crawlkit-dev/crawlkit/internal/normalize"
	"github.com/crawlkit-dev/crawlkit/internal/quality"
	"github.com/crawlkit-dev/crawlkit/internal/sanitizer"
	"github.com/crawlkit-dev/crawlkit/pkg/failure"
	"github.com/crawlkit-dev/crawlkit/pkg/hashutil"
	"github.com/crawlkit-dev/crawlkit/pkg/retry"
	"github.com/crawlkit-dev/crawlkit/pkg/timeutil"
	"github.com/crawlkit-dev/crawlkit/pkg/urlutil"
)

// dupRatioFallbackMinSamples is the minimum window fill before DupRatio is
// trusted to trigger the JS fallback — otherwise a job's first handful of
// fetches (small denominator) could trip a false positive.
const dupRatioFallbackMinSamples = 10

// dupRatioFallbackThreshold is spec.md §4.4.2's "duplicate-content ratio
// among fetched pages > 0.5" JS-fallback trigger.
const dupRatioFallbackThreshold = 0.5

// maxAssetBytes bounds a single downloaded asset's size before resolver.go
// gives up on it, matching config.WithDefault's extraction-tuning scale.
const maxAssetBytes = 10 * 1024 * 1024

// workerLoop repeatedly leases a batch of URLs and processes each until
// ctx is cancelled or the frontier has nothing left to offer.
func (jr *jobRun) workerLoop(ctx context.Context, workerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entries, err := jr.store.LeaseURLs(jr.job.ID(), workerID, leaseBatch, leaseTTL, time.Now())
		if err != nil {
			jr.logEvent(jobmodel.EventLevelError, "lease_failed", map[string]any{"worker": workerID, "error": err.Error()})
			return
		}
		if len(entries) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(250 * time.Millisecond):
				continue
			}
		}

		for _, entry := range entries {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := jr.dispatch.Wait(ctx); err != nil {
				return
			}
			jr.mu.Lock()
			jr.inFlightCount++
			jr.mu.Unlock()
			jr.processEntry(ctx, entry)
			jr.mu.Lock()
			jr.inFlightCount--
			jr.mu.Unlock()
		}
	}
}

// processEntry fetches, extracts, quality-gates, and (if the page passes)
// exports one FrontierEntry, then completes it with the outcome matching
// how far it got (spec.md §4.4.1-§4.4.3).
func (jr *jobRun) processEntry(ctx context.Context, entry jobmodel.FrontierEntry) {
	now := time.Now()
	host := entry.CanonicalURL().Host

	if delay := jr.hostLimiter.ResolveDelay(host); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
	jr.hostLimiter.MarkLastFetchAsNow(host)

	if decision, rerr := jr.robot.Decide(ctx, entry.CanonicalURL()); rerr == nil && !decision.Allowed {
		jr.completeURL(entry, jobmodel.CompleteOutcome{State: jobmodel.EntrySkipped, Err: string(decision.Reason)}, now, nil)
		return
	}

	retryParam := retry.NewRetryParam(
		jr.env.DownloadDelay, 50*time.Millisecond, now.UnixNano(),
		3, timeutil.NewBackoffParam(1*time.Second, 2.0, 30*time.Second),
	)

	fetcherImpl, usingJS := jr.activeFetcher()
	if usingJS {
		select {
		case jr.jsSem <- struct{}{}:
			defer func() { <-jr.jsSem }()
		case <-ctx.Done():
			return
		}
	}
	fr, ferr := fetcherImpl.Fetch(ctx, entry.Depth(), entry.CanonicalURL(), retryParam)
	if ferr != nil {
		jr.bumpErrors(ferr.Error())
		if ferr.Severity() == failure.SeverityRecoverable {
			// Leave the lease; Store.ExpireStaleLeases requeues it (or fails
			// it past MaxRetries) without engine involvement (spec.md §4.4.5).
			jr.maybeFallbackToJS("fetch_retryable: " + ferr.Error())
			return
		}
		jr.recordFetchOutcomeForBlocklist(0, true, false, false)
		jr.completeURL(entry, jobmodel.CompleteOutcome{State: jobmodel.EntryFailed, Err: ferr.Error()}, now, nil)
		jr.hostLimiter.Backoff(host)
		jr.maybeFallbackToJS("fetch_error: " + ferr.Error())
		return
	}
	jr.hostLimiter.ResetBackoff(host)
	jr.bumpPagesFetched()

	extraction, eerr := jr.extractorImpl.Extract(fr.URL(), fr.Body())
	if eerr != nil {
		jr.completeURL(entry, jobmodel.CompleteOutcome{State: jobmodel.EntryFailed, StatusCode: fr.Code(), Err: eerr.Error()}, now, nil)
		jr.bumpErrors(eerr.Error())
		return
	}

	qres := quality.Evaluate(extraction.ContentNode, len(fr.Body()), quality.Thresholds{
		MinTextLength:     jr.env.MinTextLengthMarginal,
		SuccessTextLength: jr.env.MinTextLengthSuccess,
	})

	sanitized, serr := jr.sanitizerImpl.Sanitize(extraction.ContentNode)
	if serr == nil {
		jr.admitDiscovered(ctx, entry, fr.URL(), sanitized.GetDiscoveredURLs())
	}

	blocked := fr.Code() == 403 || fr.Code() == 429
	loginRedirect := isLoginRedirect(fr.URL().Path)

	if qres.Verdict != quality.VerdictPass {
		jr.recordFetchOutcomeForBlocklist(fr.Code(), blocked, loginRedirect, false)
		jr.completeURL(entry, jobmodel.CompleteOutcome{State: jobmodel.EntryParsed, StatusCode: fr.Code(), Err: qres.ReasonString()}, now, nil)
		jr.maybeFallbackToJS("quality_" + string(qres.Verdict))
		return
	}
	if serr != nil {
		// Content was good enough to export but the sanitizer itself
		// failed; nothing left to convert from, so treat as parsed-only.
		jr.recordFetchOutcomeForBlocklist(fr.Code(), blocked, loginRedirect, false)
		jr.completeURL(entry, jobmodel.CompleteOutcome{State: jobmodel.EntryParsed, StatusCode: fr.Code(), Err: serr.Error()}, now, nil)
		return
	}

	exported, exportErr := jr.export(ctx, entry, fr, sanitized, qres, retryParam)
	jr.recordFetchOutcomeForBlocklist(fr.Code(), blocked, loginRedirect, !exported.isNewDoc)
	if exportErr != nil {
		jr.completeURL(entry, jobmodel.CompleteOutcome{State: jobmodel.EntryParsed, StatusCode: fr.Code(), Err: exportErr.Error()}, now, nil)
		return
	}
	jr.completeURL(entry, jobmodel.CompleteOutcome{State: jobmodel.EntryStored, StatusCode: fr.Code()}, now, &exported)
}

// exportOutcome is what a successful export leaves behind for completeURL's
// raw-ledger record (spec.md §4.5 step 1's pages.raw.jsonl).
type exportOutcome struct {
	isNewDoc    bool
	contentHash string
	documentID  string
	mdPath      string
}

// export converts, resolves assets, normalizes, writes, and upserts the
// Document for a quality-passed page. Any stage failure here is a soft
// reject: the page's outlinks were already harvested by Sanitize, it's just
// not exported as a Document.
func (jr *jobRun) export(
	ctx context.Context,
	entry jobmodel.FrontierEntry,
	fr fetcher.FetchResult,
	sanitized sanitizer.SanitizedHTMLDoc,
	qres quality.Result,
	retryParam retry.RetryParam,
) (exportOutcome, error) {
	conv, cerr := jr.convertRule.Convert(sanitized)
	if cerr != nil {
		return exportOutcome{}, cerr
	}

	resolveParam := assets.NewResolveParam(filepath.Join(jr.outDir, "assets"), maxAssetBytes, hashAlgo)
	assetful, aerr := jr.assetResolver.Resolve(ctx, fr.URL(), conv, resolveParam, retryParam)
	if aerr != nil {
		return exportOutcome{}, aerr
	}

	normParam := normalize.NewNormalizeParam(build.FullVersion(), fr.FetchedAt(), hashAlgo, entry.Depth(), jr.job.IgnorePathPrefixes())
	normDoc, nerr := jr.normalizer.Normalize(fr.URL(), assetful, normParam)
	if nerr != nil {
		return exportOutcome{}, nerr
	}

	writeResult, werr := jr.storageSink.Write(jr.kbDir, normDoc, hashAlgo)
	if werr != nil {
		return exportOutcome{}, werr
	}

	titleHash, _ := hashutil.HashBytes([]byte(normDoc.Frontmatter().Title()), hashAlgo)
	doc := jobmodel.NewDocument(
		jr.job.ID(), normDoc.Frontmatter().ContentHash(), titleHash,
		entry.URL(), entry.CanonicalURL(),
		normDoc.Frontmatter().Title(), "en", jobmodel.DocTypeArticle,
		qres.Score, true, time.Now(),
	)
	docID, isNew, uerr := jr.store.UpsertDocument(doc)
	if uerr != nil {
		return exportOutcome{}, uerr
	}

	if isNew {
		jr.mu.Lock()
		jr.job.IncrementPagesExported()
		jr.mu.Unlock()
		_ = jr.store.UpdateJob(jr.job.ID(), func(j *jobmodel.Job) { j.IncrementPagesExported() })
	} else {
		alias := jobmodel.NewDocumentURL(docID, entry.URL(), entry.CanonicalURL(), jobmodel.AliasContentHash)
		if aerr := jr.store.AttachURLAlias(alias); aerr != nil {
			jr.logEvent(jobmodel.EventLevelWarn, "attach_alias_failed", map[string]any{"url": entry.URL().String(), "error": aerr.Error()})
		}
	}
	return exportOutcome{
		isNewDoc:    isNew,
		contentHash: normDoc.Frontmatter().ContentHash(),
		documentID:  docID.String(),
		mdPath:      writeResult.Path(),
	}, nil
}

func (jr *jobRun) activeFetcher() (f fetcher.Fetcher, usingJS bool) {
	jr.mu.Lock()
	usingJS = jr.usingJS
	jr.mu.Unlock()
	if usingJS {
		return &jr.chromeFetcher, true
	}
	return &jr.htmlFetcher, false
}

func (jr *jobRun) bumpPagesFetched() {
	jr.mu.Lock()
	fetched := jr.job.PagesFetched() + 1
	jr.job.RecordHeartbeat(fetched, time.Now())
	jr.mu.Unlock()
	_ = jr.store.Heartbeat(jr.job.ID(), fetched, time.Now())
}

func (jr *jobRun) bumpErrors(msg string) {
	jr.mu.Lock()
	jr.job.IncrementErrorsCount()
	jr.job.SetLastError(msg)
	jr.mu.Unlock()
	_ = jr.store.UpdateJob(jr.job.ID(), func(j *jobmodel.Job) {
		j.IncrementErrorsCount()
		j.SetLastError(msg)
	})
}

// completeURL persists outcome against the Store and appends a matching
// line to pages.raw.jsonl, the Finalizer's raw ledger (spec.md §4.5 step 1).
// exported is non-nil only when this entry produced a Document.
func (jr *jobRun) completeURL(entry jobmodel.FrontierEntry, outcome jobmodel.CompleteOutcome, now time.Time, exported *exportOutcome) {
	if err := jr.store.CompleteURL(entry.ID(), outcome, now); err != nil {
		jr.logEvent(jobmodel.EventLevelError, "complete_url_failed", map[string]any{"url": entry.URL().String(), "error": err.Error()})
	}

	rec := finalizer.RawPageRecord{
		URL:          entry.URL().String(),
		CanonicalURL: entry.CanonicalURL().String(),
		Depth:        entry.Depth(),
		Outcome:      string(outcome.State),
		StatusCode:   outcome.StatusCode,
		Error:        outcome.Err,
		FetchedAt:    now,
	}
	if exported != nil {
		rec.ContentHash = exported.contentHash
		rec.DocumentID = exported.documentID
		rec.MarkdownPath = exported.mdPath
	}
	if err := jr.rawWriter.Append(rec); err != nil {
		jr.logEvent(jobmodel.EventLevelWarn, "raw_record_append_failed", map[string]any{"url": entry.URL().String(), "error": err.Error()})
	}
}

func (jr *jobRun) recordFetchOutcomeForBlocklist(statusCode int, blocked, loginRedirect, dup bool) {
	jr.detector.Record(blocklist.FetchOutcome{
		Blocked:              blocked,
		LoginRedirect:        loginRedirect,
		DuplicateContentHash: dup,
		QualityPassed:        statusCode > 0,
	})
	status := jr.detector.SiteStatus()
	_ = jr.store.UpdateJob(jr.job.ID(), func(j *jobmodel.Job) {
		j.SetSiteStatus(mapBlocklistStatus(status), "")
	})
}

func mapBlocklistStatus(s blocklist.SiteStatus) jobmodel.SiteStatus {
	switch s {
	case blocklist.StatusBlocked:
		return jobmodel.SiteStatusBlocked
	case blocklist.StatusThrottled:
		return jobmodel.SiteStatusThrottled
	case blocklist.StatusLoginRequired:
		return jobmodel.SiteStatusLoginRequired
	default:
		return jobmodel.SiteStatusHealthy
	}
}

// maybeFallbackToJS applies spec.md §4.4.2's one-way JS-fallback trigger:
// once the detector reports the site blocked, or the duplicate-content
// ratio among passed fetches exceeds threshold, every subsequent fetch in
// this job switches to the rendering fetcher and never switches back.
func (jr *jobRun) maybeFallbackToJS(reason string) {
	jr.mu.Lock()
	alreadyJS := jr.usingJS
	jr.mu.Unlock()
	if alreadyJS {
		return
	}

	trigger := jr.detector.SiteStatus() == blocklist.StatusBlocked
	if !trigger && jr.detector.Len() >= dupRatioFallbackMinSamples {
		trigger = jr.detector.DupRatio() > dupRatioFallbackThreshold
	}
	if !trigger {
		return
	}

	jr.mu.Lock()
	jr.usingJS = true
	jr.mu.Unlock()

	_ = jr.store.UpdateJob(jr.job.ID(), func(j *jobmodel.Job) {
		j.SetSiteStatus(jobmodel.SiteStatusSwitchedToJS, reason)
	})
	jr.logEvent(jobmodel.EventLevelWarn, "switched_to_js_fetcher", map[string]any{"reason": reason})
}

// admitDiscovered resolves each sanitizer-discovered href against base (the
// fetch's effective URL, since sanitizer hrefs may be relative), canonicalizes
// it, applies robots + admission-rule checks, and enqueues whatever survives
// (spec.md §4.4.1 URL admission).
func (jr *jobRun) admitDiscovered(ctx context.Context, entry jobmodel.FrontierEntry, base url.URL, discovered []url.URL) {
	for _, ref := range discovered {
		ref := ref
		resolved := base.ResolveReference(&ref)
		canonical := urlutil.Canonicalize(*resolved)

		key := canonical.String()
		jr.mu.Lock()
		if jr.seen.Contains(key) {
			jr.mu.Unlock()
			continue
		}
		admitted := jr.admission.IsAdmitted(canonical, entry.Depth()+1, jr.queuedOrStored, jr.job.MaxPages())
		if admitted {
			jr.seen.Add(key)
			jr.queuedOrStored++
		}
		jr.mu.Unlock()
		if !admitted {
			continue
		}

		if decision, rerr := jr.robot.Decide(ctx, canonical); rerr == nil && !decision.Allowed {
			continue
		}

		newEntry := jobmodel.NewFrontierEntry(jr.job.ID(), *resolved, canonical, entry.Depth()+1, 0, time.Now())
		if _, err := jr.store.EnqueueURL(newEntry); err != nil {
			jr.logEvent(jobmodel.EventLevelWarn, "enqueue_failed", map[string]any{"url": key, "error": err.Error()})
		}
	}
}

func isLoginRedirect(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "/login") || strings.Contains(lower, "/signin")
}
