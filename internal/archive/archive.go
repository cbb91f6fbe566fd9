// Package archive persists audit output outside the process: terminal jobs
// to S3 for retention and rendered views to local JSON files.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/providers/aws/common"
)

// ErrNotTerminal is returned when asked to archive a job that is still running.
var ErrNotTerminal = errors.New("audit job is not terminal")

// Archiver stores a terminal job and returns where it was written.
type Archiver interface {
	Archive(ctx context.Context, job *models.AuditJob) (string, error)
}

// S3Archiver writes one object per job under
// {prefix}{account_id}/{audit_id}.json.
type S3Archiver struct {
	client common.S3PutClient
	bucket string
	prefix string
}

// NewS3Archiver returns an S3Archiver. A non-empty prefix is normalised to
// end with a slash.
func NewS3Archiver(client common.S3PutClient, bucket, prefix string) *S3Archiver {
	prefix = strings.TrimLeft(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for job.
func (a *S3Archiver) Key(job *models.AuditJob) string {
	account := job.AccountID
	if account == "" {
		account = "unknown"
	}
	return a.prefix + account + "/" + job.AuditID + ".json"
}

func (a *S3Archiver) Archive(ctx context.Context, job *models.AuditJob) (string, error) {
	data, err := encode(job)
	if err != nil {
		return "", err
	}
	key := a.Key(job)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"audit-id": job.AuditID,
			"status":   string(job.Status),
		},
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	return "s3://" + a.bucket + "/" + key, nil
}

// WriteJSON marshals v as indented JSON and writes it to path.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return WriteFile(path, append(data, '\n'))
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory for %q: %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write file %q: %w", path, err)
	}
	return nil
}

func encode(job *models.AuditJob) ([]byte, error) {
	if job == nil || !job.Terminal() {
		return nil, ErrNotTerminal
	}
	if job.AuditID == "" {
		return nil, errors.New("audit job has no id")
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal audit %s: %w", job.AuditID, err)
	}
	return append(data, '\n'), nil
}
