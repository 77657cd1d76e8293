// Package service orchestrates the cache-backed report and export
// pipelines: lookup before generate, lazy regeneration after
// invalidation, correctness before cache durability.
package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/survey-cli/internal/aggregate"
	"github.com/sells-group/survey-cli/internal/blob"
	"github.com/sells-group/survey-cli/internal/cache"
	"github.com/sells-group/survey-cli/internal/export"
	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/render"
	"github.com/sells-group/survey-cli/internal/store"
)

// Categorized pipeline failures, kept distinct for user messaging.
var (
	ErrNoReportData  = eris.New("service: no data found for report")
	ErrNoExport      = eris.New("service: no export generated")
	ErrFileReference = eris.New("service: error retrieving file reference")
)

// DefaultSignedURLTTL is the validity window for signed download
// references.
const DefaultSignedURLTTL = 15 * time.Minute

// Config tunes the service.
type Config struct {
	OpenResponseCap int
	SignedURLTTL    time.Duration
}

// Service is the externally consumed surface over aggregation, export and
// the cache layer.
type Service struct {
	data      store.DataStore
	blobs     blob.Store
	agg       aggregate.Aggregator
	signedTTL time.Duration
	now       func() time.Time

	// Per-key generation locks: concurrent identical requests share one
	// computation instead of both regenerating.
	reports singleflight.Group
	exports singleflight.Group
}

// New wires a Service.
func New(data store.DataStore, blobs blob.Store, cfg Config) *Service {
	ttl := cfg.SignedURLTTL
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	return &Service{
		data:      data,
		blobs:     blobs,
		agg:       aggregate.Aggregator{OpenResponseCap: cfg.OpenResponseCap},
		signedTTL: ttl,
		now:       time.Now,
	}
}

// Report returns the cached report for an interview/language, computing
// and caching it on miss. A cache write failure is logged and the fresh
// report is returned anyway.
func (s *Service) Report(ctx context.Context, projectID, interviewID, language string) (*model.Report, error) {
	key := cache.ReportKey(projectID, interviewID, language)
	v, err, _ := s.reports.Do(key, func() (any, error) {
		return s.reportLocked(ctx, key, projectID, interviewID, language)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Report), nil
}

func (s *Service) reportLocked(ctx context.Context, key, projectID, interviewID, language string) (*model.Report, error) {
	if ok, err := s.blobs.Exists(ctx, key); err == nil && ok {
		data, err := s.blobs.Open(ctx, key)
		if err == nil {
			var rep model.Report
			if err := json.Unmarshal(data, &rep); err == nil {
				return &rep, nil
			}
			zap.L().Warn("cached report unreadable, regenerating", zap.String("key", key))
		}
	}

	iv, err := s.data.GetInterview(ctx, projectID, interviewID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, ErrNoReportData
		}
		return nil, err
	}
	questions, err := s.data.GetQuestions(ctx, projectID, interviewID)
	if err != nil {
		return nil, err
	}
	responses, err := s.data.GetResponses(ctx, projectID, interviewID)
	if err != nil {
		return nil, err
	}

	rep, err := s.agg.Aggregate(questions, responses, iv.PrimaryLanguage, language)
	if err != nil {
		if eris.Is(err, aggregate.ErrNoResponses) {
			return nil, ErrNoReportData
		}
		return nil, err
	}

	payload, err := json.Marshal(rep)
	if err == nil {
		err = s.blobs.Save(ctx, key, payload)
	}
	if err != nil {
		zap.L().Warn("report cache write failed",
			zap.String("key", key), zap.Error(err))
	}
	return rep, nil
}

// ExportRequest names an export: which interviews, which fields to strip,
// and how to render.
type ExportRequest struct {
	ProjectID    string
	InterviewIDs []string
	Exclude      []string
	Language     string
	FileType     string // "csv" or "xlsx"
	Filename     string
	RequestedBy  string
}

func (r ExportRequest) filename() string {
	if r.Filename != "" {
		return r.Filename
	}
	return "export." + r.FileType
}

// FileRef is a download reference for a generated export. URL is empty
// when the blob could not be persisted; Data then carries the uncached
// bytes so the caller still gets its export.
type FileRef struct {
	URL      string
	Path     string
	Filename string
	Data     []byte
}

// GenerateExport builds the export bytes without touching the cache.
func (s *Service) GenerateExport(ctx context.Context, req ExportRequest) ([]byte, string, error) {
	tables, creator, err := s.buildTables(ctx, req)
	if err != nil {
		return nil, "", err
	}

	var data []byte
	switch req.FileType {
	case "csv", "":
		data, err = render.WriteCSV(tables)
	case "xlsx":
		data, err = render.WriteXLSX(tables, render.XLSXMeta{Creator: creator, Now: s.now})
	default:
		return nil, "", eris.Errorf("service: unsupported file type %q", req.FileType)
	}
	if err != nil {
		zap.L().Error("export rendering failed", zap.Error(err))
		return nil, "", ErrNoExport
	}
	return data, req.filename(), nil
}

// Export is the cache-backed variant: an existing blob short-circuits to a
// signed reference, otherwise the export is generated, persisted and
// signed.
func (s *Service) Export(ctx context.Context, req ExportRequest) (*FileRef, error) {
	key := cache.ExportKey(req.Exclude, req.Language, req.filename())
	path := cache.ExportPath(req.ProjectID, req.InterviewIDs, key)

	v, err, _ := s.exports.Do(path, func() (any, error) {
		return s.exportLocked(ctx, path, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*FileRef), nil
}

func (s *Service) exportLocked(ctx context.Context, path string, req ExportRequest) (*FileRef, error) {
	if ok, err := s.blobs.Exists(ctx, path); err == nil && ok {
		url, err := s.blobs.SignedURL(ctx, path, s.signedTTL)
		if err != nil {
			zap.L().Error("signing cached export failed", zap.String("path", path), zap.Error(err))
			return nil, ErrFileReference
		}
		return &FileRef{URL: url, Path: path, Filename: req.filename()}, nil
	}

	data, filename, err := s.GenerateExport(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.blobs.Save(ctx, path, data); err != nil {
		zap.L().Warn("export cache write failed, returning uncached bytes",
			zap.String("path", path), zap.Error(err))
		return &FileRef{Filename: filename, Data: data}, nil
	}
	url, err := s.blobs.SignedURL(ctx, path, s.signedTTL)
	if err != nil {
		zap.L().Error("signing fresh export failed", zap.String("path", path), zap.Error(err))
		return nil, ErrFileReference
	}
	return &FileRef{URL: url, Path: path, Filename: filename}, nil
}

// buildTables loads and formats every requested interview.
func (s *Service) buildTables(ctx context.Context, req ExportRequest) ([]export.Table, string, error) {
	project, err := s.data.GetProject(ctx, req.ProjectID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, "", ErrNoReportData
		}
		return nil, "", err
	}

	var batches []export.Batch
	var anyResponses bool
	var primary string
	for _, ivID := range req.InterviewIDs {
		iv, err := s.data.GetInterview(ctx, req.ProjectID, ivID)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, "", err
		}
		questions, err := s.data.GetQuestions(ctx, req.ProjectID, ivID)
		if err != nil {
			return nil, "", err
		}
		responses, err := s.data.GetResponses(ctx, req.ProjectID, ivID)
		if err != nil {
			return nil, "", err
		}
		if len(responses) > 0 {
			anyResponses = true
		}
		if primary == "" {
			primary = iv.PrimaryLanguage
		}
		batches = append(batches, export.Batch{
			Project:   *project,
			Interview: *iv,
			Questions: questions,
			Responses: responses,
		})
	}
	if len(batches) == 0 || !anyResponses {
		return nil, "", ErrNoReportData
	}

	f := export.Formatter{
		RequestedLanguage: req.Language,
		PrimaryLanguage:   primary,
		Exclude:           req.Exclude,
	}
	return f.Format(batches), req.RequestedBy, nil
}

// Invalidate deletes the cached reports for an interview and every export
// file derived from it. Called on response ingestion and on proofing
// mutations; regeneration is lazy, on the next read.
func (s *Service) Invalidate(ctx context.Context, projectID, interviewID string) error {
	keys, err := s.blobs.List(ctx, cache.ReportPrefix(projectID, interviewID))
	if err != nil {
		return eris.Wrap(err, "service: list cached reports")
	}
	for _, k := range keys {
		if err := s.blobs.Delete(ctx, k); err != nil {
			return eris.Wrapf(err, "service: delete cached report %s", k)
		}
	}

	exportKeys, err := s.blobs.List(ctx, cache.ExportProjectPrefix(projectID))
	if err != nil {
		return eris.Wrap(err, "service: list cached exports")
	}
	for _, k := range exportKeys {
		// exports/{project}/{joined interview ids}/{key}
		parts := strings.SplitN(k, "/", 4)
		if len(parts) < 4 || !containsID(parts[2], interviewID) {
			continue
		}
		if err := s.blobs.Delete(ctx, k); err != nil {
			return eris.Wrapf(err, "service: delete cached export %s", k)
		}
	}
	return nil
}

// containsID reports whether the "-"-joined interview id segment names
// interviewID exactly, bounded by the joiner or the segment edges. A bare
// substring match would also hit ids that merely embed it ("i1" in
// "i10-i2"); splitting on "-" would mangle ids that contain dashes.
func containsID(joined, interviewID string) bool {
	if joined == interviewID {
		return true
	}
	return strings.HasPrefix(joined, interviewID+"-") ||
		strings.HasSuffix(joined, "-"+interviewID) ||
		strings.Contains(joined, "-"+interviewID+"-")
}

// Proof records manual review of one answer and invalidates the derived
// caches for its interview.
func (s *Service) Proof(ctx context.Context, projectID, interviewID, responseID, questionID, proofedBy string) error {
	if err := s.data.MarkProofed(ctx, projectID, interviewID, responseID, questionID, proofedBy, s.now().UTC()); err != nil {
		return err
	}
	return s.Invalidate(ctx, projectID, interviewID)
}
