package installer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// DefaultArtifactBaseURL hosts the released Greengrass nucleus archives.
const DefaultArtifactBaseURL = "https://d2s8p88vqu9w66.cloudfront.net/releases"

const downloadTimeout = 5 * time.Minute

// ArtifactSource fetches a versioned agent artifact to a local destination.
type ArtifactSource interface {
	Fetch(ctx context.Context, version, destination string) error
}

// SourceFor creates an artifact source from a location URI:
//
//   - https://host/base or http://host/base - direct download, the artifact
//     is expected at <base>/greengrass-<version>.zip
//   - s3://bucket/prefix?region=us-east-1 - S3 object at
//     <prefix>/greengrass-<version>.zip
//   - file:///local/dir or a bare path - local archive mirror
func SourceFor(locationURI string, log *slog.Logger) (ArtifactSource, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("invalid artifact location %q: %w", locationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return &HTTPSource{baseURL: strings.TrimSuffix(locationURI, "/"), log: log}, nil

	case "s3":
		region := u.Query().Get("region")
		if region == "" {
			region = "us-east-1"
		}
		sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		return &S3Source{
			client: s3.New(sess),
			bucket: u.Host,
			prefix: strings.Trim(u.Path, "/"),
			log:    log,
		}, nil

	case "", "file":
		dir := u.Path
		if u.Scheme == "" {
			dir = locationURI
		}
		return &FileSource{dir: dir, log: log}, nil

	default:
		return nil, fmt.Errorf("unsupported artifact source scheme: %s", u.Scheme)
	}
}

func artifactName(version string) string {
	return fmt.Sprintf("greengrass-%s.zip", version)
}

// writeArtifact streams the reader to destination via a temp file so a
// partial download never shadows a usable artifact.
func writeArtifact(r io.Reader, destination string) error {
	if err := os.MkdirAll(path.Dir(destination), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp := destination + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create artifact file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close artifact file: %w", err)
	}
	return os.Rename(tmp, destination)
}

// HTTPSource downloads artifacts over plain HTTPS.
type HTTPSource struct {
	baseURL string
	log     *slog.Logger
}

func (s *HTTPSource) Fetch(ctx context.Context, version, destination string) error {
	artifactURL := fmt.Sprintf("%s/%s", s.baseURL, artifactName(version))
	s.log.Info("Downloading agent artifact",
		slog.String("url", artifactURL),
		slog.String("destination", destination))

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifactURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", artifactURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: unexpected status %s", artifactURL, resp.Status)
	}
	return writeArtifact(resp.Body, destination)
}

// S3Source fetches artifacts from an S3 bucket.
type S3Source struct {
	client *s3.S3
	bucket string
	prefix string
	log    *slog.Logger
}

func (s *S3Source) Fetch(ctx context.Context, version, destination string) error {
	key := path.Join(s.prefix, artifactName(version))
	s.log.Info("Fetching agent artifact from S3",
		slog.String("bucket", s.bucket),
		slog.String("key", key))

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to fetch s3://%s/%s: %w", s.bucket, key, err)
	}
	defer result.Body.Close()

	return writeArtifact(result.Body, destination)
}

// FileSource copies artifacts from a local mirror directory.
type FileSource struct {
	dir string
	log *slog.Logger
}

func (s *FileSource) Fetch(ctx context.Context, version, destination string) error {
	source := path.Join(s.dir, artifactName(version))
	s.log.Info("Copying agent artifact",
		slog.String("source", source),
		slog.String("destination", destination))

	f, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open artifact %s: %w", source, err)
	}
	defer f.Close()

	return writeArtifact(f, destination)
}
