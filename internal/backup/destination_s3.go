package backup

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/Adlikkk/gamehost-one/internal/config"
)

// S3Destination replicates archives to AWS S3 or S3-compatible storage.
type S3Destination struct {
	cfg      config.OffsiteDestination
	s3Client *s3.S3
}

// NewS3Destination creates an S3 destination from its configuration.
func NewS3Destination(cfg config.OffsiteDestination) (*S3Destination, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.S3Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		),
	}

	// Custom endpoint for S3-compatible storage (MinIO, DigitalOcean Spaces, etc.)
	if cfg.S3Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.S3Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	log.Printf("[S3Dest] Initialized S3 destination: bucket=%s, region=%s",
		cfg.S3Bucket, cfg.S3Region)

	return &S3Destination{cfg: cfg, s3Client: s3.New(sess)}, nil
}

// Upload stores an archive in the bucket.
func (sd *S3Destination) Upload(filename string, reader io.Reader, sizeBytes int64) error {
	key := path.Join(sd.cfg.Path, filename)
	log.Printf("[S3Dest] Uploading %s to s3://%s/%s (%d bytes)",
		filename, sd.cfg.S3Bucket, key, sizeBytes)

	// PutObject needs a seekable body; archives are read fully into memory.
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}

	_, err = sd.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(sd.cfg.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(sizeBytes),
		ContentType:   aws.String("application/zip"),
		StorageClass:  aws.String("STANDARD"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Printf("[S3Dest] Upload complete: %s", filename)
	return nil
}

// Download streams an archive from the bucket.
func (sd *S3Destination) Download(filename string, writer io.Writer) error {
	key := path.Join(sd.cfg.Path, filename)

	result, err := sd.s3Client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(sd.cfg.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	if _, err := io.Copy(writer, result.Body); err != nil {
		return fmt.Errorf("failed to read S3 object: %w", err)
	}
	return nil
}

// Delete removes an archive from the bucket.
func (sd *S3Destination) Delete(filename string) error {
	key := path.Join(sd.cfg.Path, filename)

	_, err := sd.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(sd.cfg.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// List returns all archives under the configured prefix.
func (sd *S3Destination) List() ([]RemoteFile, error) {
	prefix := sd.cfg.Path
	if prefix != "" {
		prefix = prefix + "/"
	}

	result, err := sd.s3Client.ListObjectsV2(&s3.ListObjectsV2Input{
		Bucket: aws.String(sd.cfg.S3Bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list S3 objects: %w", err)
	}

	var files []RemoteFile
	for _, obj := range result.Contents {
		if *obj.Key == prefix {
			continue
		}
		files = append(files, RemoteFile{
			Filename:  path.Base(*obj.Key),
			SizeBytes: *obj.Size,
			CreatedAt: obj.LastModified.Unix(),
		})
	}
	return files, nil
}

// Type returns the destination type.
func (sd *S3Destination) Type() string {
	return "s3"
}
