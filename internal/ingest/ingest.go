package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"zerotrust-rag/internal/access"
	"zerotrust-rag/internal/pkg/pdfextract"
	"zerotrust-rag/internal/redact"
)

var ErrNoDataSource = errors.New("knowledge base has no data source")

// CacheClearer is the bulk invalidation hook. Ingestion is the only caller.
type CacheClearer interface {
	Clear(ctx context.Context) (int, error)
}

// ObjectStore is the slice of the S3 client the upload path uses.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// KnowledgeBaseSyncer is the slice of the Bedrock agent client used to
// trigger re-indexing.
type KnowledgeBaseSyncer interface {
	ListDataSources(ctx context.Context, params *bedrockagent.ListDataSourcesInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.ListDataSourcesOutput, error)
	StartIngestionJob(ctx context.Context, params *bedrockagent.StartIngestionJobInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.StartIngestionJobOutput, error)
}

type Service struct {
	redactor *redact.Redactor
	store    ObjectStore
	agent    KnowledgeBaseSyncer
	answers  CacheClearer
	bucket   string
	kbID     string
}

func NewService(
	redactor *redact.Redactor,
	store ObjectStore,
	agent KnowledgeBaseSyncer,
	answers CacheClearer,
	bucket, kbID string,
) *Service {
	return &Service{
		redactor: redactor,
		store:    store,
		agent:    agent,
		answers:  answers,
		bucket:   bucket,
		kbID:     kbID,
	}
}

type FileResult struct {
	Name  string       `json:"name"`
	Key   string       `json:"key"`
	Level access.Level `json:"level"`
}

type Result struct {
	CacheCleared int          `json:"cache_cleared"`
	Files        []FileResult `json:"files"`
	SyncJobID    string       `json:"sync_job_id"`
	SyncConflict bool         `json:"sync_conflict"`
}

// Run executes one ingestion pass: clear the answer cache, then redact and
// upload each document with its access-level sidecar, then trigger the
// knowledge-base sync. There is no transactionality across these steps; a
// crash mid-run is fixed by rerunning.
func (s *Service) Run(ctx context.Context, paths []string) (*Result, error) {
	result := &Result{}

	// Clear first so stale answers are gone before any document changes.
	// A clear failure is not fatal: the operator reruns ingestion.
	cleared, err := s.answers.Clear(ctx)
	if err != nil {
		log.Printf("clear answer cache failed (continuing): %v", err)
	}
	result.CacheCleared = cleared

	for _, path := range paths {
		fileResult, err := s.ingestFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("ingest %s failed: %w", path, err)
		}
		result.Files = append(result.Files, *fileResult)
	}

	jobID, conflict, err := s.triggerSync(ctx)
	if err != nil {
		return nil, err
	}
	result.SyncJobID = jobID
	result.SyncConflict = conflict

	return result, nil
}

func (s *Service) ingestFile(ctx context.Context, path string) (*FileResult, error) {
	content, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	clean, err := s.redactor.Redact(ctx, content)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	level := access.LevelForFilename(name)

	if _, err := s.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
		Body:   strings.NewReader(clean),
	}); err != nil {
		return nil, fmt.Errorf("upload document failed: %w", err)
	}

	sidecar, err := sidecarJSON(level)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name + ".metadata.json"),
		Body:   bytes.NewReader(sidecar),
	}); err != nil {
		return nil, fmt.Errorf("upload metadata sidecar failed: %w", err)
	}

	return &FileResult{Name: name, Key: name, Level: level}, nil
}

func (s *Service) triggerSync(ctx context.Context) (string, bool, error) {
	dataSources, err := s.agent.ListDataSources(ctx, &bedrockagent.ListDataSourcesInput{
		KnowledgeBaseId: aws.String(s.kbID),
	})
	if err != nil {
		return "", false, fmt.Errorf("list data sources failed: %w", err)
	}
	if len(dataSources.DataSourceSummaries) == 0 {
		return "", false, ErrNoDataSource
	}
	dataSourceID := dataSources.DataSourceSummaries[0].DataSourceId

	job, err := s.agent.StartIngestionJob(ctx, &bedrockagent.StartIngestionJobInput{
		KnowledgeBaseId: aws.String(s.kbID),
		DataSourceId:    dataSourceID,
	})
	if err != nil {
		var conflict *agenttypes.ConflictException
		if errors.As(err, &conflict) {
			// A sync is already running; it will index what we uploaded.
			return "", true, nil
		}
		return "", false, fmt.Errorf("start ingestion job failed: %w", err)
	}

	jobID := ""
	if job.IngestionJob != nil && job.IngestionJob.IngestionJobId != nil {
		jobID = *job.IngestionJob.IngestionJobId
	}
	return jobID, false, nil
}

// readDocument loads a source file as plain text; PDFs go through text
// extraction, everything else is read as-is.
func readDocument(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := pdfextract.ExtractFile(path)
		if err != nil {
			return "", fmt.Errorf("extract pdf failed: %w", err)
		}
		return text, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document failed: %w", err)
	}
	return string(raw), nil
}

type metadataSidecar struct {
	MetadataAttributes map[string]string `json:"metadataAttributes"`
}

// sidecarJSON builds the "<name>.metadata.json" body the knowledge base
// reads the access_level attribute from.
func sidecarJSON(level access.Level) ([]byte, error) {
	payload, err := json.Marshal(metadataSidecar{
		MetadataAttributes: map[string]string{
			"access_level": string(level),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal metadata sidecar failed: %w", err)
	}
	return payload, nil
}
