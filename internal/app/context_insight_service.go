package app

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"contextinsight/internal/model"
	"contextinsight/internal/pkg/logger"
	"contextinsight/internal/repository"
)

const logModule = "context_insight"

var ErrInsightNotFound = errors.New("No context insight found for this session")

const msgInsightDeleted = "Context insight deleted"

// InsightCache is a read-through cache. Delete bumps the session version;
// Set must skip the write when version is no longer current.
type InsightCache interface {
	Get(ctx context.Context, sessionID string) (*model.ContextInsight, bool, error)
	Version(ctx context.Context, sessionID string) (int64, error)
	Set(ctx context.Context, insight *model.ContextInsight, version int64) error
	Delete(ctx context.Context, sessionID string) error
}

type InsightEventPublisher interface {
	Publish(ctx context.Context, event model.InsightEvent) error
}

type ContextInsightService struct {
	repo      *repository.ContextInsightRepository
	cache     InsightCache
	publisher InsightEventPublisher
	log       logger.Logger
	tracer    trace.Tracer
}

// NewContextInsightService wires the store. cache and publisher may be nil.
func NewContextInsightService(
	repo *repository.ContextInsightRepository,
	cache InsightCache,
	publisher InsightEventPublisher,
	log logger.Logger,
) *ContextInsightService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ContextInsightService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		log:       log,
		tracer:    otel.Tracer("contextinsight/internal/app"),
	}
}

// Save inserts a new insight for the session; earlier ones are kept.
func (s *ContextInsightService) Save(ctx context.Context, sessionID string, data ContextData) Result {
	ctx, span := s.startSpan(ctx, "ContextInsightService.Save", sessionID)
	defer span.End()

	insight := data.toInsight(sessionID)
	if err := s.repo.Create(ctx, insight); err != nil {
		return s.failure(span, "Error saving context insight", sessionID, err)
	}

	s.invalidate(ctx, sessionID)
	s.publish(ctx, model.EventInsightSaved, sessionID, insight)
	return ok(insight)
}

// Get returns the most recently created insight of the session.
func (s *ContextInsightService) Get(ctx context.Context, sessionID string) Result {
	ctx, span := s.startSpan(ctx, "ContextInsightService.Get", sessionID)
	defer span.End()

	cached, version, cacheable := s.fromCache(ctx, sessionID)
	if cached != nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return ok(cached)
	}

	insight, err := s.repo.GetLatestBySessionID(ctx, sessionID)
	if err != nil {
		return s.failure(span, "Error retrieving context insight", sessionID, err)
	}
	if insight == nil {
		return fail(ErrInsightNotFound)
	}

	if cacheable {
		if err := s.cache.Set(ctx, insight, version); err != nil {
			s.log.Warn(logModule, "cache insight failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		}
	}
	return ok(insight)
}

// Update overwrites every insight of the session and returns the most
// recent one. With nothing to update, the normalised input is echoed back.
func (s *ContextInsightService) Update(ctx context.Context, sessionID string, data ContextData) Result {
	ctx, span := s.startSpan(ctx, "ContextInsightService.Update", sessionID)
	defer span.End()

	insight := data.toInsight(sessionID)
	affected, err := s.repo.UpdateBySessionID(ctx, sessionID, insight)
	if err != nil {
		return s.failure(span, "Error updating context insight", sessionID, err)
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", affected))

	s.invalidate(ctx, sessionID)
	if affected == 0 {
		return ok(insight)
	}

	updated, err := s.repo.GetLatestBySessionID(ctx, sessionID)
	if err != nil {
		return s.failure(span, "Error updating context insight", sessionID, err)
	}
	if updated == nil {
		// Deleted between the update and the read.
		return ok(insight)
	}

	s.publish(ctx, model.EventInsightUpdated, sessionID, updated)
	return ok(updated)
}

// Delete removes every insight of the session. Deleting nothing succeeds.
func (s *ContextInsightService) Delete(ctx context.Context, sessionID string) Result {
	ctx, span := s.startSpan(ctx, "ContextInsightService.Delete", sessionID)
	defer span.End()

	affected, err := s.repo.DeleteBySessionID(ctx, sessionID)
	if err != nil {
		return s.failure(span, "Error deleting context insight", sessionID, err)
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", affected))

	s.invalidate(ctx, sessionID)
	if affected > 0 {
		s.publish(ctx, model.EventInsightDeleted, sessionID, nil)
	}
	return Result{Success: true, Message: msgInsightDeleted}
}

// List returns every stored insight, newest first.
func (s *ContextInsightService) List(ctx context.Context) ListResult {
	ctx, span := s.tracer.Start(ctx, "ContextInsightService.List")
	defer span.End()

	insights, err := s.repo.List(ctx)
	if err != nil {
		s.failure(span, "Error retrieving context insights", "", err)
		return ListResult{Success: false, Data: []model.ContextInsight{}, Error: err.Error(), Err: err}
	}
	if insights == nil {
		insights = []model.ContextInsight{}
	}
	return ListResult{Success: true, Data: insights}
}

func (s *ContextInsightService) startSpan(ctx context.Context, name, sessionID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("session.id", sessionID)))
}

func (s *ContextInsightService) failure(span trace.Span, message, sessionID string, err error) Result {
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	s.log.Error(logModule, message, map[string]interface{}{"session_id": sessionID, "error": err})
	return fail(err)
}

// fromCache returns the cached insight, if any, and the session version a
// later Set must carry. cacheable is false when the cache is off or failing.
func (s *ContextInsightService) fromCache(ctx context.Context, sessionID string) (insight *model.ContextInsight, version int64, cacheable bool) {
	if s.cache == nil {
		return nil, 0, false
	}
	version, err := s.cache.Version(ctx, sessionID)
	if err != nil {
		s.log.Warn(logModule, "read insight cache version failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		return nil, 0, false
	}
	insight, found, err := s.cache.Get(ctx, sessionID)
	if err != nil {
		s.log.Warn(logModule, "read cached insight failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		return nil, 0, false
	}
	if !found {
		return nil, version, true
	}
	return insight, version, true
}

func (s *ContextInsightService) invalidate(ctx context.Context, sessionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		s.log.Warn(logModule, "invalidate cached insight failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
	}
}

func (s *ContextInsightService) publish(ctx context.Context, eventType, sessionID string, insight *model.ContextInsight) {
	if s.publisher == nil {
		return
	}
	event := model.InsightEvent{
		Type:       eventType,
		SessionID:  sessionID,
		Insight:    insight,
		OccurredAt: time.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn(logModule, "publish insight event failed", map[string]interface{}{"session_id": sessionID, "type": eventType, "error": err.Error()})
	}
}
