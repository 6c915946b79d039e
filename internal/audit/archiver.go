// Package audit archives completed call records to S3 so the practice has a
// durable trail of what each call reported, independent of the provider's
// retention window.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/medintake/intake-ai-platform/internal/calls"
	"github.com/medintake/intake-ai-platform/internal/insights"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

// S3API is the subset of the S3 client used by Archiver.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// CallRecord is the archived shape of one completed call, including the raw
// webhook trail captured on the call record.
type CallRecord struct {
	CallID      string            `json:"callId"`
	BotID       string            `json:"botId,omitempty"`
	PatientID   string            `json:"patientId,omitempty"`
	MedicalID   string            `json:"medicalId,omitempty"`
	Status      calls.Status      `json:"status"`
	Duration    int               `json:"duration"`
	Transcript  string            `json:"transcript,omitempty"`
	Summary     string            `json:"summary,omitempty"`
	Insights    insights.Insights `json:"insights"`
	WebhookData calls.WebhookData `json:"webhookData"`
	ArchivedAt  time.Time         `json:"archivedAt"`
}

// Archiver writes call records to S3. A nil Archiver or an empty bucket
// disables archival; every method is then a no-op.
type Archiver struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewArchiver creates an Archiver. If bucket is empty, all operations are no-ops.
func NewArchiver(s3Client S3API, bucket string, logger *logging.Logger) *Archiver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Archiver{bucket: bucket, s3Client: s3Client, logger: logger.WithComponent("audit")}
}

// Enabled returns true if archival is configured.
func (a *Archiver) Enabled() bool {
	return a != nil && a.bucket != "" && a.s3Client != nil
}

// ArchiveCall writes the call and its insights as JSON under a by-date prefix.
func (a *Archiver) ArchiveCall(ctx context.Context, call *calls.Call, result insights.Insights) error {
	if !a.Enabled() || call == nil {
		return nil
	}

	now := time.Now().UTC()
	record := CallRecord{
		CallID:      call.CallID,
		BotID:       call.ProviderBotID,
		PatientID:   call.PatientID,
		MedicalID:   call.ExtractedData.MedicalID,
		Status:      call.Status,
		Duration:    call.Duration,
		Transcript:  call.Transcript,
		Summary:     call.Summary,
		Insights:    result,
		WebhookData: call.WebhookData,
		ArchivedAt:  now,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("audit: marshal record: %w", err)
	}

	key := fmt.Sprintf("calls/v1/by-date/%d/%02d/%02d/%s.json",
		now.Year(), now.Month(), now.Day(), sanitizeKeyPart(call.CallID))

	if _, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("audit: s3 put %s: %w", key, err)
	}

	a.logger.Info("archived call record",
		"call_id", call.CallID,
		"s3_key", key,
		"status", string(call.Status),
	)
	return nil
}

// sanitizeKeyPart keeps provider-supplied ids from escaping the key prefix.
func sanitizeKeyPart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
}
