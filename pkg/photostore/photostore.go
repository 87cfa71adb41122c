// Package photostore keeps plant photo objects in an S3 compatible bucket
// and hands out short-lived signed GET URLs for them.
package photostore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type Store struct {
	S3Cli     *s3.Client
	Presigner *s3.PresignClient
	Bucket    string
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
}

func New(opts Options) *Store {

	s3Opts := s3.Options{
		Credentials:  credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		UsePathStyle: true,
		Region:       opts.Region,
	}
	if opts.Endpoint != "" {
		s3Opts.BaseEndpoint = aws.String(opts.Endpoint)
	}

	cli := s3.New(s3Opts)
	return &Store{
		S3Cli:     cli,
		Presigner: s3.NewPresignClient(cli),
		Bucket:    opts.Bucket,
	}

}

func (s *Store) PutObject(ctx context.Context, key string, body io.Reader, contentType string) error {

	_, err := s.S3Cli.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.Bucket,
		Key:         &key,
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return err
	}

	return nil

}

func (s *Store) DeleteObjects(ctx context.Context, keys []string) error {

	if len(keys) == 0 {
		return nil
	}

	objects := make([]types.ObjectIdentifier, len(keys))
	for i := range keys {
		objects[i] = types.ObjectIdentifier{Key: aws.String(keys[i])}
	}

	res, err := s.S3Cli.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: &s.Bucket,
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("delete %s: %s", aws.ToString(res.Errors[0].Key), aws.ToString(res.Errors[0].Message))
	}

	return nil

}

// SignedURL never touches the network, signing happens locally.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {

	req, err := s.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.Bucket,
		Key:    &key,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}

	return req.URL, nil

}
