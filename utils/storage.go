package utils

import (
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// R2Client wraps the S3 client + bucket name for the R2-compatible
// object store that holds profile photos.
type R2Client struct {
	S3     *s3.Client
	Bucket string
}

func NewCloudClient(ctx context.Context) (*R2Client, error) {
	bucket := os.Getenv("R2_BUCKET")
	accessKey := os.Getenv("R2_ACCESS_KEY_ID")
	secretKey := os.Getenv("R2_SECRET_ACCESS_KEY")
	endpoint := os.Getenv("R2_ENDPOINT") // https://<account-id>.r2.cloudflarestorage.com

	if bucket == "" || accessKey == "" || secretKey == "" || endpoint == "" {
		return nil, fmt.Errorf("missing R2 env vars (R2_BUCKET, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_ENDPOINT)")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("r2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true // required for R2
	})

	return &R2Client{S3: client, Bucket: bucket}, nil
}

// UploadAvatarToCloud stores a profile photo and returns its public URL.
func UploadAvatarToCloud(
	ctx context.Context,
	r2 *R2Client,
	userSlug string,
	fileHeader *multipart.FileHeader,
) (string, error) {

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	allowed := map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
	}
	if !allowed[ext] {
		return "", fmt.Errorf("file type not allowed (allowed: jpg, jpeg, png, webp)")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	ct := fileHeader.Header.Get("Content-Type")
	if ct == "" {
		ct = mime.TypeByExtension(ext)
	}
	if ct == "" {
		ct = "application/octet-stream"
	}

	objectName := fmt.Sprintf(
		"avatars/%s/%d-%s%s",
		userSlug, time.Now().UTC().Unix(), uuid.New().String(), ext,
	)

	_, err = r2.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(r2.Bucket),
		Key:          aws.String(objectName),
		Body:         file,
		ContentType:  aws.String(ct),
		CacheControl: aws.String("no-cache"),
	})
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}

	return publicURL(objectName), nil
}

// DeleteCloudObjects removes stale objects (e.g. a replaced avatar).
func DeleteCloudObjects(ctx context.Context, r2 *R2Client, objectNames []string) error {
	var firstErr error
	for _, obj := range objectNames {
		if obj == "" {
			continue
		}
		_, err := r2.S3.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(r2.Bucket),
			Key:    aws.String(obj),
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("delete %s: %w", obj, err)
		}
	}
	return firstErr
}

// ObjectNameFromCloudPublicURL parses R2 public URLs, both custom domain
// (R2_PUBLIC_DOMAIN) and r2.dev subdomain style.
func ObjectNameFromCloudPublicURL(raw string) (string, error) {
	domain := strings.TrimRight(os.Getenv("R2_PUBLIC_DOMAIN"), "/")
	bucket := os.Getenv("R2_BUCKET")
	if domain != "" && strings.HasPrefix(raw, domain+"/"+bucket+"/") {
		return strings.TrimPrefix(raw, domain+"/"+bucket+"/"), nil
	}

	// r2.dev style: https://<bucket>.<account>.r2.dev/<object>
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(raw, prefix) {
			withoutScheme := strings.TrimPrefix(raw, prefix)
			slash := strings.Index(withoutScheme, "/")
			if slash == -1 {
				return "", fmt.Errorf("no object path in url")
			}
			return withoutScheme[slash+1:], nil
		}
	}

	return "", fmt.Errorf("not a recognised R2 public url")
}

// publicURL builds the public URL for a stored object. Set
// R2_PUBLIC_DOMAIN to your custom domain or r2.dev URL.
func publicURL(objectName string) string {
	bucket := os.Getenv("R2_BUCKET")
	domain := strings.TrimRight(os.Getenv("R2_PUBLIC_DOMAIN"), "/")
	return fmt.Sprintf("%s/%s/%s", domain, bucket, objectName)
}
