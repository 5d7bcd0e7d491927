package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/pollkeeper/internal/common"
	sc "github.com/dmitrijs2005/pollkeeper/internal/server/config"
	"github.com/dmitrijs2005/pollkeeper/internal/server/models"
	"github.com/dmitrijs2005/pollkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pollkeeper/internal/server/validation"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ExportService renders a poll's tallies as CSV, uploads the snapshot to
// S3-compatible object storage and hands out a presigned download URL.
type ExportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	votes       *VoteService
	config      *sc.Config
}

// NewExportService constructs an ExportService.
func NewExportService(db *sql.DB, m repomanager.RepositoryManager, votes *VoteService, cfg *sc.Config) *ExportService {
	return &ExportService{
		db:          db,
		repomanager: m,
		votes:       votes,
		config:      cfg,
	}
}

func exportStorageKey(pollID string) string {
	d := time.Now()
	return fmt.Sprintf("exports/%d/%d/%d/%s-%v.csv", d.Year(), d.Month(), d.Day(), pollID, uuid.New())
}

func (s *ExportService) getS3Client() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, nil
}

// ExportResults builds the CSV snapshot for pollID, uploads it and returns a
// presigned GET URL valid for 15 minutes. Only the poll's owner may export.
func (s *ExportService) ExportResults(ctx context.Context, pollID string, requesterID string) (string, error) {
	v := validation.NewResult()
	v.Merge(validation.PollID(pollID))
	v.Merge(validation.UserID(requesterID))
	if err := v.Err(); err != nil {
		return "", err
	}

	owner, err := s.repomanager.Polls(s.db).IsOwner(ctx, pollID, requesterID)
	if err != nil {
		return "", err
	}
	if !owner {
		return "", common.ErrorForbidden
	}

	stats, err := s.votes.GetStatistics(ctx, pollID, requesterID)
	if err != nil {
		return "", err
	}

	body, err := renderStatsCSV(stats.OptionStats)
	if err != nil {
		return "", err
	}

	client, err := s.getS3Client()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	key := exportStorageKey(pollID)

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", err
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}

func renderStatsCSV(options []models.OptionStats) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"option_id", "text", "votes", "percentage"}); err != nil {
		return nil, err
	}
	for _, opt := range options {
		record := []string{
			opt.OptionID,
			opt.Text,
			strconv.FormatInt(opt.Votes, 10),
			strconv.FormatFloat(opt.Percentage, 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
