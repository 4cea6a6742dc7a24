package ingest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerotrust-rag/internal/access"
	"zerotrust-rag/internal/redact"
)

type nopDetector struct{}

func (nopDetector) Detect(context.Context, string) ([]redact.Span, error) { return nil, nil }

type fakeClearer struct {
	calls   *[]string
	cleared int
	err     error
}

func (f *fakeClearer) Clear(context.Context) (int, error) {
	*f.calls = append(*f.calls, "clear")
	return f.cleared, f.err
}

type fakeStore struct {
	calls   *[]string
	objects map[string]string
}

func (f *fakeStore) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Key] = string(body)
	*f.calls = append(*f.calls, "put:"+*params.Key)
	return &s3.PutObjectOutput{}, nil
}

type fakeSyncer struct {
	calls         *[]string
	noDataSources bool
	startErr      error
}

func (f *fakeSyncer) ListDataSources(context.Context, *bedrockagent.ListDataSourcesInput, ...func(*bedrockagent.Options)) (*bedrockagent.ListDataSourcesOutput, error) {
	*f.calls = append(*f.calls, "list")
	if f.noDataSources {
		return &bedrockagent.ListDataSourcesOutput{}, nil
	}
	return &bedrockagent.ListDataSourcesOutput{
		DataSourceSummaries: []agenttypes.DataSourceSummary{
			{DataSourceId: aws.String("ds-1")},
		},
	}, nil
}

func (f *fakeSyncer) StartIngestionJob(context.Context, *bedrockagent.StartIngestionJobInput, ...func(*bedrockagent.Options)) (*bedrockagent.StartIngestionJobOutput, error) {
	*f.calls = append(*f.calls, "sync")
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &bedrockagent.StartIngestionJobOutput{
		IngestionJob: &agenttypes.IngestionJob{IngestionJobId: aws.String("job-1")},
	}, nil
}

func newTestService(t *testing.T, calls *[]string, clearer *fakeClearer, syncer *fakeSyncer) (*Service, *fakeStore) {
	t.Helper()
	store := &fakeStore{calls: calls, objects: make(map[string]string)}
	redactor := redact.NewRedactor(nopDetector{}, redact.DefaultRecognizers())
	return NewService(redactor, store, syncer, clearer, "corp-docs", "kb-1"), store
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunClearsCacheBeforeUploading(t *testing.T) {
	var calls []string
	clearer := &fakeClearer{calls: &calls, cleared: 7}
	syncer := &fakeSyncer{calls: &calls}
	service, store := newTestService(t, &calls, clearer, syncer)

	dir := t.TempDir()
	paths := []string{
		writeDoc(t, dir, "hr_onboarding.txt", "Reach HR at +1-555-010-4242 for onboarding."),
		writeDoc(t, dir, "policy_public.txt", "Leave policy: 25 days."),
	}

	result, err := service.Run(context.Background(), paths)
	require.NoError(t, err)

	// A stale answer surviving past a document change is the failure mode
	// here: the clear must land before any object does.
	require.NotEmpty(t, calls)
	assert.Equal(t, "clear", calls[0])
	assert.Equal(t, []string{
		"clear",
		"put:hr_onboarding.txt",
		"put:hr_onboarding.txt.metadata.json",
		"put:policy_public.txt",
		"put:policy_public.txt.metadata.json",
		"list",
		"sync",
	}, calls)

	assert.Equal(t, 7, result.CacheCleared)
	assert.Equal(t, "job-1", result.SyncJobID)
	assert.False(t, result.SyncConflict)

	require.Len(t, result.Files, 2)
	assert.Equal(t, access.LevelHR, result.Files[0].Level)
	assert.Equal(t, access.LevelPublic, result.Files[1].Level)

	assert.NotContains(t, store.objects["hr_onboarding.txt"], "+1-555-010-4242")
	assert.Contains(t, store.objects["hr_onboarding.txt"], redact.ReplacementToken)
	assert.JSONEq(t,
		`{"metadataAttributes":{"access_level":"hr"}}`,
		store.objects["hr_onboarding.txt.metadata.json"],
	)
}

func TestRunClearFailureNotFatal(t *testing.T) {
	var calls []string
	clearer := &fakeClearer{calls: &calls, err: errors.New("redis unreachable")}
	syncer := &fakeSyncer{calls: &calls}
	service, _ := newTestService(t, &calls, clearer, syncer)

	path := writeDoc(t, t.TempDir(), "policy_public.txt", "Leave policy: 25 days.")

	result, err := service.Run(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Zero(t, result.CacheCleared)
	assert.Len(t, result.Files, 1)
}

func TestRunSyncConflictTolerated(t *testing.T) {
	var calls []string
	clearer := &fakeClearer{calls: &calls}
	syncer := &fakeSyncer{calls: &calls, startErr: &agenttypes.ConflictException{}}
	service, _ := newTestService(t, &calls, clearer, syncer)

	path := writeDoc(t, t.TempDir(), "policy_public.txt", "Leave policy: 25 days.")

	result, err := service.Run(context.Background(), []string{path})
	require.NoError(t, err)
	assert.True(t, result.SyncConflict)
	assert.Empty(t, result.SyncJobID)
}

func TestRunNoDataSource(t *testing.T) {
	var calls []string
	clearer := &fakeClearer{calls: &calls}
	syncer := &fakeSyncer{calls: &calls, noDataSources: true}
	service, _ := newTestService(t, &calls, clearer, syncer)

	path := writeDoc(t, t.TempDir(), "policy_public.txt", "Leave policy: 25 days.")

	_, err := service.Run(context.Background(), []string{path})
	assert.ErrorIs(t, err, ErrNoDataSource)
}

func TestSidecarJSON(t *testing.T) {
	payload, err := sidecarJSON(access.LevelFinance)
	require.NoError(t, err)
	assert.JSONEq(t, `{"metadataAttributes":{"access_level":"finance"}}`, string(payload))
}

func TestReadDocumentPlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy_public.txt")
	require.NoError(t, os.WriteFile(path, []byte("Leave policy: 25 days.\n"), 0o644))

	content, err := readDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "Leave policy: 25 days.\n", content)
}

func TestReadDocumentMissingFile(t *testing.T) {
	_, err := readDocument(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
