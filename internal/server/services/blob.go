package services

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	sc "github.com/dmitrijs2005/gophchat/internal/server/config"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PresignExpiry is the validity of presigned upload and download URLs.
const PresignExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// UploadTicket tells a client where to PUT a file and what to send as the
// content of the file or audio message afterwards.
type UploadTicket struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"uploadUrl"`
	ObjectURL string    `json:"objectUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// BlobService hands out presigned object storage URLs. File bytes never
// pass through the server.
type BlobService struct {
	config *sc.Config
	now    func() time.Time
}

func NewBlobService(config *sc.Config) *BlobService {
	return &BlobService{config: config, now: time.Now}
}

// StorageKey builds a unique object key for an upload of the given kind.
func StorageKey(userID int64, kind models.MessageType, filename string, at time.Time) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}
	key := fmt.Sprintf("%s/%d/%d/%02d/%02d/%v", kind, userID, at.Year(), at.Month(), at.Day(), uuid.New())
	if name != "" {
		key += "-" + name
	}
	return key
}

func (s *BlobService) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
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

	return newS3PresignClient(client), nil
}

// ObjectURL is the retrievable location of key, used as message content.
func (s *BlobService) ObjectURL(key string) (string, error) {
	return url.JoinPath(s.config.S3BaseEndpoint, s.config.S3Bucket, key)
}

// PresignUpload returns a presigned PUT for a new file or audio object.
func (s *BlobService) PresignUpload(ctx context.Context, userID int64, kind models.MessageType, filename string) (*UploadTicket, error) {
	if kind != models.MessageFile && kind != models.MessageAudio {
		return nil, fmt.Errorf("%w: uploads are for file or audio messages", common.ErrInvalidContent)
	}

	presignClient, err := s.getPresignClient()
	if err != nil {
		return nil, err
	}

	now := s.now()
	bucket := s.config.S3Bucket
	key := StorageKey(userID, kind, filename, now)

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return nil, err
	}

	objectURL, err := s.ObjectURL(key)
	if err != nil {
		return nil, err
	}

	return &UploadTicket{
		Key:       key,
		UploadURL: req.URL,
		ObjectURL: objectURL,
		ExpiresAt: now.Add(PresignExpiry),
	}, nil
}

// PresignDownload returns a presigned GET for an existing object.
func (s *BlobService) PresignDownload(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", common.ErrInvalidContent)
	}

	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
