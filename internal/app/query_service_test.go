package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerotrust-rag/internal/access"
	"zerotrust-rag/internal/cache"
	"zerotrust-rag/internal/model"
	"zerotrust-rag/internal/platform/rabbitmq"
)

type fakeAnswerCache struct {
	entries map[string]cache.AnswerEntry
	getErr  error
	putErr  error
	puts    int
}

func newFakeAnswerCache() *fakeAnswerCache {
	return &fakeAnswerCache{entries: make(map[string]cache.AnswerEntry)}
}

func (f *fakeAnswerCache) Get(_ context.Context, role access.Role, query string) (*cache.AnswerEntry, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	entry, ok := f.entries[cache.Key(role, query)]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (f *fakeAnswerCache) Put(_ context.Context, role access.Role, query string, entry cache.AnswerEntry) error {
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	f.entries[cache.Key(role, query)] = entry
	return nil
}

type fakeKnowledgeBase struct {
	answer *model.Answer
	err    error
	calls  int
}

func (f *fakeKnowledgeBase) Ask(_ context.Context, _ access.Role, levels []access.Level, _ string) (*model.Answer, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type fakeRequestPublisher struct {
	messages []rabbitmq.AccessRequestMessage
	err      error
}

func (f *fakeRequestPublisher) Publish(_ context.Context, msg rabbitmq.AccessRequestMessage) error {
	f.messages = append(f.messages, msg)
	return f.err
}

type fakeAuditPublisher struct {
	events []model.AuditEvent
}

func (f *fakeAuditPublisher) Publish(_ context.Context, event model.AuditEvent) error {
	f.events = append(f.events, event)
	return nil
}

func askInput(role access.Role, question string) AskInput {
	return AskInput{
		UserID:     7,
		Username:   "alice",
		EmployeeID: "ex0001",
		Role:       role,
		Question:   question,
	}
}

func TestAskAnswersAndCaches(t *testing.T) {
	answers := newFakeAnswerCache()
	kb := &fakeKnowledgeBase{answer: &model.Answer{
		Text:    "The merger budget is 4.2 million dollars.",
		Sources: []model.Source{{Location: "s3://docs/finance_secret_merger.txt", Snippet: "budget"}},
	}}
	requests := &fakeRequestPublisher{}
	audits := &fakeAuditPublisher{}
	svc := NewQueryService(answers, kb, requests, audits)

	result, err := svc.Ask(context.Background(), askInput(access.RoleCFO, "What is the merger budget?"))
	require.NoError(t, err)

	assert.Equal(t, "The merger budget is 4.2 million dollars.", result.Answer)
	assert.False(t, result.Cached)
	assert.False(t, result.AccessDenied)
	assert.Len(t, result.Sources, 1)

	assert.Equal(t, 1, kb.calls)
	assert.Equal(t, 1, answers.puts)
	assert.Empty(t, requests.messages)
	require.Len(t, audits.events, 1)
	assert.Equal(t, model.AuditOutcomeAnswered, audits.events[0].Outcome)
}

func TestAskCacheHitSkipsRetrieval(t *testing.T) {
	answers := newFakeAnswerCache()
	answers.entries[cache.Key(access.RoleCFO, "what is the merger budget?")] = cache.AnswerEntry{
		Answer:  "4.2 million dollars.",
		Sources: []model.Source{{Location: "s3://docs/finance_secret_merger.txt"}},
	}
	kb := &fakeKnowledgeBase{}
	audits := &fakeAuditPublisher{}
	svc := NewQueryService(answers, kb, &fakeRequestPublisher{}, audits)

	// Casing and whitespace differ from the stored key; normalization
	// inside the cache key must still find the entry.
	result, err := svc.Ask(context.Background(), askInput(access.RoleCFO, "  What Is The Merger Budget?  "))
	require.NoError(t, err)

	assert.True(t, result.Cached)
	assert.Equal(t, "4.2 million dollars.", result.Answer)
	assert.Equal(t, 0, kb.calls)
	require.Len(t, audits.events, 1)
	assert.Equal(t, model.AuditOutcomeCached, audits.events[0].Outcome)
}

func TestAskCacheIsolatedByRole(t *testing.T) {
	answers := newFakeAnswerCache()
	answers.entries[cache.Key(access.RoleCFO, "what is the merger budget?")] = cache.AnswerEntry{
		Answer: "4.2 million dollars.",
	}
	kb := &fakeKnowledgeBase{answer: &model.Answer{
		Text:   "Access denied: no documents found matching your security clearance.",
		Denied: true,
	}}
	svc := NewQueryService(answers, kb, &fakeRequestPublisher{}, &fakeAuditPublisher{})

	result, err := svc.Ask(context.Background(), askInput(access.RoleIntern, "What is the merger budget?"))
	require.NoError(t, err)

	// The CFO's cached answer must never leak to an intern.
	assert.False(t, result.Cached)
	assert.Equal(t, 1, kb.calls)
	assert.True(t, result.AccessDenied)
}

func TestAskDenialPublishesOneAccessRequest(t *testing.T) {
	answers := newFakeAnswerCache()
	kb := &fakeKnowledgeBase{answer: &model.Answer{
		Text:   "I cannot answer based on the provided context.",
		Denied: true,
	}}
	requests := &fakeRequestPublisher{}
	audits := &fakeAuditPublisher{}
	svc := NewQueryService(answers, kb, requests, audits)

	input := askInput(access.RoleIntern, "What are the executive salaries?")
	result, err := svc.Ask(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, result.AccessDenied)
	assert.True(t, result.RequestSent)
	assert.NotEmpty(t, result.RequestID)

	require.Len(t, requests.messages, 1)
	msg := requests.messages[0]
	assert.Equal(t, result.RequestID, msg.RequestID)
	assert.Equal(t, "alice", msg.Username)
	assert.Equal(t, "ex0001", msg.EmployeeID)
	assert.Equal(t, "What are the executive salaries?", msg.Query)

	// Denied answers are never cached.
	assert.Equal(t, 0, answers.puts)
	require.Len(t, audits.events, 1)
	assert.Equal(t, model.AuditOutcomeDenied, audits.events[0].Outcome)
}

func TestAskDenialPublishFailureReportedNotFatal(t *testing.T) {
	kb := &fakeKnowledgeBase{answer: &model.Answer{
		Text:   "I do not have that information.",
		Denied: true,
	}}
	requests := &fakeRequestPublisher{err: errors.New("broker down")}
	svc := NewQueryService(newFakeAnswerCache(), kb, requests, &fakeAuditPublisher{})

	result, err := svc.Ask(context.Background(), askInput(access.RoleIntern, "secret question"))
	require.NoError(t, err)

	assert.True(t, result.AccessDenied)
	assert.False(t, result.RequestSent)
	assert.NotEmpty(t, result.RequestID)
	assert.Len(t, requests.messages, 1)
}

func TestAskCacheGetFailureFallsThrough(t *testing.T) {
	answers := newFakeAnswerCache()
	answers.getErr = errors.New("redis unreachable")
	kb := &fakeKnowledgeBase{answer: &model.Answer{Text: "The leave policy grants 25 days per year."}}
	svc := NewQueryService(answers, kb, &fakeRequestPublisher{}, &fakeAuditPublisher{})

	result, err := svc.Ask(context.Background(), askInput(access.RoleHRManager, "What is the leave policy?"))
	require.NoError(t, err)

	assert.False(t, result.Cached)
	assert.Equal(t, 1, kb.calls)
	assert.Equal(t, "The leave policy grants 25 days per year.", result.Answer)
}

func TestAskCachePutFailureStillAnswers(t *testing.T) {
	answers := newFakeAnswerCache()
	answers.putErr = errors.New("redis unreachable")
	kb := &fakeKnowledgeBase{answer: &model.Answer{Text: "The leave policy grants 25 days per year."}}
	audits := &fakeAuditPublisher{}
	svc := NewQueryService(answers, kb, &fakeRequestPublisher{}, audits)

	result, err := svc.Ask(context.Background(), askInput(access.RoleHRManager, "What is the leave policy?"))
	require.NoError(t, err)

	assert.Equal(t, "The leave policy grants 25 days per year.", result.Answer)
	require.Len(t, audits.events, 1)
	assert.Equal(t, model.AuditOutcomeAnswered, audits.events[0].Outcome)
}

func TestAskUnknownRoleRejected(t *testing.T) {
	kb := &fakeKnowledgeBase{}
	audits := &fakeAuditPublisher{}
	svc := NewQueryService(newFakeAnswerCache(), kb, &fakeRequestPublisher{}, audits)

	input := askInput(access.Role("contractor"), "anything")
	_, err := svc.Ask(context.Background(), input)
	require.ErrorIs(t, err, access.ErrUnknownRole)

	assert.Equal(t, 0, kb.calls)
	require.Len(t, audits.events, 1)
	assert.Equal(t, model.AuditOutcomeRejected, audits.events[0].Outcome)
}

func TestAskEmptyQuestion(t *testing.T) {
	svc := NewQueryService(newFakeAnswerCache(), &fakeKnowledgeBase{}, &fakeRequestPublisher{}, &fakeAuditPublisher{})

	_, err := svc.Ask(context.Background(), askInput(access.RoleIntern, "   "))
	assert.ErrorIs(t, err, ErrQuestionEmpty)
}

func TestAskRetrievalErrorPropagates(t *testing.T) {
	kb := &fakeKnowledgeBase{err: errors.New("bedrock timeout")}
	svc := NewQueryService(newFakeAnswerCache(), kb, &fakeRequestPublisher{}, &fakeAuditPublisher{})

	_, err := svc.Ask(context.Background(), askInput(access.RoleCFO, "question"))
	assert.Error(t, err)
}
