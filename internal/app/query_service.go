package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"zerotrust-rag/internal/access"
	"zerotrust-rag/internal/cache"
	"zerotrust-rag/internal/model"
	"zerotrust-rag/internal/platform/rabbitmq"
)

var ErrQuestionEmpty = errors.New("question is empty")

// AnswerCache is the speed layer in front of the knowledge base.
type AnswerCache interface {
	Get(ctx context.Context, role access.Role, query string) (*cache.AnswerEntry, bool, error)
	Put(ctx context.Context, role access.Role, query string, entry cache.AnswerEntry) error
}

// KnowledgeBase is the retrieval+generation call.
type KnowledgeBase interface {
	Ask(ctx context.Context, role access.Role, levels []access.Level, query string) (*model.Answer, error)
}

// AccessRequestPublisher sends the break-glass notification.
type AccessRequestPublisher interface {
	Publish(ctx context.Context, msg rabbitmq.AccessRequestMessage) error
}

// AuditPublisher enqueues one append-only audit event per interaction.
type AuditPublisher interface {
	Publish(ctx context.Context, event model.AuditEvent) error
}

type QueryService struct {
	answers  AnswerCache
	kb       KnowledgeBase
	requests AccessRequestPublisher
	audits   AuditPublisher
}

func NewQueryService(
	answers AnswerCache,
	kb KnowledgeBase,
	requests AccessRequestPublisher,
	audits AuditPublisher,
) *QueryService {
	return &QueryService{
		answers:  answers,
		kb:       kb,
		requests: requests,
		audits:   audits,
	}
}

type AskInput struct {
	UserID     uint
	Username   string
	EmployeeID string
	Role       access.Role
	Question   string
}

type AskResult struct {
	Answer       string         `json:"answer"`
	Sources      []model.Source `json:"sources"`
	Cached       bool           `json:"cached"`
	AccessDenied bool           `json:"access_denied"`
	RequestID    string         `json:"request_id,omitempty"`
	RequestSent  bool           `json:"request_sent,omitempty"`
}

// Ask runs the query chain: gate, cache lookup, retrieval+generation on a
// miss, cache store, audit append, and the break-glass publish on denial.
// Each step is one blocking call to an external service; nothing here
// retries or compensates.
func (s *QueryService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	if input.UserID == 0 || input.Username == "" {
		return nil, ErrInvalidInput
	}
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrQuestionEmpty
	}

	levels, err := access.AllowedLevels(input.Role)
	if err != nil {
		s.audit(ctx, input, question, model.AuditOutcomeRejected)
		return nil, err
	}

	entry, hit, err := s.answers.Get(ctx, input.Role, question)
	if err != nil {
		// A broken cache must not block answering; fall through to retrieval.
		log.Printf("answer cache get failed: %v", err)
	}
	if hit {
		s.audit(ctx, input, question, model.AuditOutcomeCached)
		return &AskResult{
			Answer:  entry.Answer,
			Sources: entry.Sources,
			Cached:  true,
		}, nil
	}

	answer, err := s.kb.Ask(ctx, input.Role, levels, question)
	if err != nil {
		return nil, err
	}

	if answer.Denied {
		s.audit(ctx, input, question, model.AuditOutcomeDenied)
		requestID, sent := s.requestAccess(ctx, input, question)
		return &AskResult{
			Answer:       answer.Text,
			Sources:      answer.Sources,
			AccessDenied: true,
			RequestID:    requestID,
			RequestSent:  sent,
		}, nil
	}

	if err := s.answers.Put(ctx, input.Role, question, cache.AnswerEntry{
		Question: question,
		Role:     string(input.Role),
		Answer:   answer.Text,
		Sources:  answer.Sources,
		CachedAt: time.Now(),
	}); err != nil {
		// The caller still gets this answer; it just will not be cached.
		log.Printf("answer cache put failed: %v", err)
	}

	s.audit(ctx, input, question, model.AuditOutcomeAnswered)
	return &AskResult{
		Answer:  answer.Text,
		Sources: answer.Sources,
	}, nil
}

// requestAccess publishes exactly one break-glass notification. Failure is
// reported to the caller as sent=false; there is no retry and no delivery
// tracking.
func (s *QueryService) requestAccess(ctx context.Context, input AskInput, question string) (string, bool) {
	requestID := uuid.NewString()
	msg := rabbitmq.AccessRequestMessage{
		RequestID:   requestID,
		Username:    input.Username,
		EmployeeID:  input.EmployeeID,
		Query:       question,
		RequestedAt: time.Now(),
	}
	if err := s.requests.Publish(ctx, msg); err != nil {
		log.Printf("publish access request failed: %v", err)
		return requestID, false
	}
	return requestID, true
}

func (s *QueryService) audit(ctx context.Context, input AskInput, question, outcome string) {
	event := model.AuditEvent{
		Username:  input.Username,
		Role:      string(input.Role),
		Question:  question,
		Outcome:   outcome,
		CreatedAt: time.Now(),
	}
	if err := s.audits.Publish(ctx, event); err != nil {
		log.Printf("publish audit event failed: %v", err)
	}
}
