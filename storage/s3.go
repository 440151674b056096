package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"scriptorium/config"
	"scriptorium/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archive legt publizierte Scrolls als JSON-Schnappschuss im S3-Bucket ab.
// Der Bucket ist das dauerhafte Publikationsarchiv; die Datenbank bleibt
// die Quelle der Wahrheit.
type Archive struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewArchive erstellt das Publikationsarchiv. Liefert (nil, nil), wenn das
// Archiv per Konfiguration deaktiviert ist.
func NewArchive(cfg *config.Config) (*Archive, error) {
	if cfg.ArchiveS3Disabled || cfg.ArchiveS3Bucket == "" {
		return nil, nil
	}

	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.ArchiveS3URL,
				SigningRegion:     cfg.ArchiveS3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.ArchiveS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.ArchiveS3Key, cfg.ArchiveS3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return &Archive{
		client:  s3.NewFromConfig(awsCfg),
		bucket:  cfg.ArchiveS3Bucket,
		baseURL: cfg.ArchiveS3URL,
	}, nil
}

// ArchiveScroll lädt den Scroll als JSON hoch und gibt den Link zurück.
// Der Key enthält die Version, damit jede publizierte Fassung erhalten bleibt.
func (a *Archive) ArchiveScroll(scroll *models.Scroll) (string, error) {
	data, err := json.MarshalIndent(scroll, "", "  ")
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("scrolls/%s/v%d.json", scroll.ScrollID, scroll.Version)
	_, err = a.client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", a.baseURL, a.bucket, key), nil
}
