package finalizer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/crawlkit-dev/crawlkit/internal/jobmodel"
	"github.com/crawlkit-dev/crawlkit/internal/obslog"
	"github.com/crawlkit-dev/crawlkit/internal/store"
	"github.com/crawlkit-dev/crawlkit/pkg/hashutil"
	"github.com/google/uuid"
)

// Finalizer drives a Job from finalizing to done/cancelled/failed (spec.md
// §4.5), invoked inline by the Supervisor once an Engine has drained.
type Finalizer struct {
	store store.Store
	obs   obslog.Sink
}

// NewFinalizer builds a Finalizer against the shared Store.
func NewFinalizer(st store.Store, obs obslog.Sink) *Finalizer {
	return &Finalizer{store: st, obs: obs}
}

// Finalize runs job's finalization pass against the output directory the
// Engine wrote into (the same outDir engine.Engine used). Finalize is
// idempotent: re-running it against the same raw ledger and Documents
// reproduces the same artifact set byte-for-byte except for finished_at and
// elapsed_seconds.
func (f *Finalizer) Finalize(job jobmodel.Job, outDir string) error {
	now := time.Now()

	raw, err := readRawRecords(filepath.Join(outDir, RawRecordsFilename))
	if err != nil {
		return f.fail(job, now, fmt.Errorf("finalizer: reading raw ledger: %w", err))
	}

	docs, err := f.store.ListDocuments(job.ID())
	if err != nil {
		return f.fail(job, now, fmt.Errorf("finalizer: listing documents: %w", err))
	}

	mdPathByHash := make(map[string]string, len(raw))
	for _, rec := range raw {
		if rec.ContentHash != "" && rec.MarkdownPath != "" {
			mdPathByHash[rec.ContentHash] = rec.MarkdownPath
		}
	}

	pageRecords := make([]PageRecord, 0, len(docs))
	for _, doc := range docs {
		aliases, aerr := f.store.ListDocumentAliases(doc.ID())
		if aerr != nil {
			return f.fail(job, now, fmt.Errorf("finalizer: listing aliases for %s: %w", doc.ID(), aerr))
		}
		pageRecords = append(pageRecords, newPageRecord(doc, aliases))

		if src, ok := mdPathByHash[doc.ContentHash()]; ok {
			if err := f.writeKBFile(outDir, doc, src); err != nil {
				return f.fail(job, now, fmt.Errorf("finalizer: writing kb file for %s: %w", doc.ID(), err))
			}
		}
	}

	if err := writePagesJSONL(filepath.Join(outDir, PagesFilename), pageRecords); err != nil {
		return f.fail(job, now, fmt.Errorf("finalizer: writing pages.jsonl: %w", err))
	}

	summary := buildSummary(job, raw, now)
	if err := writeSummaryJSON(filepath.Join(outDir, SummaryFilename), summary); err != nil {
		return f.fail(job, now, fmt.Errorf("finalizer: writing summary.json: %w", err))
	}

	if err := f.registerArtifacts(job.ID(), outDir, len(pageRecords), now); err != nil {
		return f.fail(job, now, fmt.Errorf("finalizer: registering artifacts: %w", err))
	}

	terminal := jobmodel.JobDone
	if job.CancelRequested() {
		terminal = jobmodel.JobCancelled
	}
	if err := f.store.SetState(job.ID(), terminal, now); err != nil {
		return err
	}
	f.logEvent(job.ID(), jobmodel.EventLevelInfo, "job_finalized", map[string]any{
		"state":          string(terminal),
		"pages_exported": len(pageRecords),
		"total_fetched":  len(raw),
	})
	return nil
}

// writeKBFile copies the Engine's already-converted markdown for doc into
// kb/<slug>.md, slug = sha256(title+id)[:12] per spec.md §4.5 step 5. The
// conversion itself ran once, at fetch time, in internal/engine's export
// path; this just places the deduplicated result under its canonical name.
func (f *Finalizer) writeKBFile(outDir string, doc jobmodel.Document, srcPath string) error {
	kbDir := filepath.Join(outDir, KBDirname)
	if err := os.MkdirAll(kbDir, 0755); err != nil {
		return err
	}
	slug, err := hashutil.HashBytes([]byte(doc.Title()+doc.ID().String()), hashutil.HashAlgoSHA256)
	if err != nil {
		return err
	}
	dst := filepath.Join(kbDir, slug[:12]+".md")
	return copyFile(srcPath, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func (f *Finalizer) registerArtifacts(jobID uuid.UUID, outDir string, pageCount int, now time.Time) error {
	candidates := []struct {
		kind jobmodel.ArtifactKind
		path string
	}{
		{jobmodel.ArtifactPagesJSONL, filepath.Join(outDir, PagesFilename)},
		{jobmodel.ArtifactPagesRawJSONL, filepath.Join(outDir, RawRecordsFilename)},
		{jobmodel.ArtifactSummaryJSON, filepath.Join(outDir, SummaryFilename)},
	}
	for _, c := range candidates {
		info, err := os.Stat(c.path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		artifact := jobmodel.NewJobArtifact(jobID, c.kind, c.path, info.Size(), now)
		if err := f.store.RegisterArtifact(artifact); err != nil {
			return err
		}
	}

	kbDir := filepath.Join(outDir, KBDirname)
	entries, err := os.ReadDir(kbDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(kbDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return err
		}
		artifact := jobmodel.NewJobArtifact(jobID, jobmodel.ArtifactKnowledgeBase, path, info.Size(), now)
		if err := f.store.RegisterArtifact(artifact); err != nil {
			return err
		}
	}
	return nil
}

func (f *Finalizer) fail(job jobmodel.Job, now time.Time, cause error) error {
	_ = f.store.UpdateJob(job.ID(), func(j *jobmodel.Job) { j.SetLastError(cause.Error()) })
	if err := f.store.SetState(job.ID(), jobmodel.JobFailed, now); err != nil {
		return err
	}
	f.logEvent(job.ID(), jobmodel.EventLevelError, "finalize_failed", map[string]any{"error": cause.Error()})
	return cause
}

func (f *Finalizer) logEvent(jobID uuid.UUID, level jobmodel.EventLevel, event string, data map[string]any) {
	je := jobmodel.NewJobEvent(jobID, level, event, data, time.Now())
	_ = f.store.LogEvent(je)
	f.obs.LogEvent(je)
}
