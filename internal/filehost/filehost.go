// Package filehost retrieves encrypted file assets (thumbnails, attachments)
// from the object store and decrypts them with the key resolved for the
// owning item. Access is gated by a short-lived session token issued over the
// bus.
package filehost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrijs2005/feedkeeper/internal/cipherx"
	"github.com/dmitrijs2005/feedkeeper/internal/codecx"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/models"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrTokenExpired = errors.New("filehost token expired")
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return c.GetObject(ctx, in)
	}
)

// Settings locates the object store. Endpoint and static credentials follow
// the MinIO deployment convention.
type Settings struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	RootUser     string // MINIO_ROOT_USER
	RootPassword string // MINIO_ROOT_PASSWORD
}

// TokenSource obtains a fresh session token when the current one has lapsed.
type TokenSource func(ctx context.Context) (string, error)

type Client struct {
	settings Settings
	log      logging.Logger
	tokens   TokenSource

	mu       sync.Mutex
	token    string
	tokenExp time.Time
	s3c      *s3.Client
}

func NewClient(settings Settings, tokens TokenSource, log logging.Logger) *Client {
	return &Client{settings: settings, tokens: tokens, log: log}
}

func (c *Client) getS3Client(ctx context.Context) (*s3.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s3c != nil {
		return c.s3c, nil
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.settings.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.settings.RootUser,
			c.settings.RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	c.s3c = newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.settings.BaseEndpoint)
		o.UsePathStyle = true
	})
	return c.s3c, nil
}

// OpenFile fetches the object keyed by fuuid and decrypts it with secretKey
// according to the file's decryption envelope. The ciphertext is streamed
// through the chunked decryptor rather than decrypted in one piece.
func (c *Client) OpenFile(ctx context.Context, fuuid string, secretKey []byte, decryption models.EncryptedData) ([]byte, error) {
	if decryption.Format != cipherx.FormatMGS4 {
		return nil, fmt.Errorf("file %s: %w: %q", fuuid, cipherx.ErrUnsupportedFormat, decryption.Format)
	}
	nonce, err := codecx.DecodeBase64(decryption.Nonce)
	if err != nil {
		return nil, fmt.Errorf("file %s: decoding nonce: %w", fuuid, err)
	}

	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	client, err := c.getS3Client(ctx)
	if err != nil {
		return nil, err
	}

	out, err := getObject(client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.settings.Bucket),
		Key:    aws.String(fuuid),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fuuid)
		}
		return nil, fmt.Errorf("fetching %s: %w", fuuid, err)
	}
	defer out.Body.Close()

	cleartext, err := c.decryptStream(out.Body, secretKey, nonce)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", fuuid, err)
	}

	return codecx.Decompress(decryption.Compression, cleartext)
}

func (c *Client) decryptStream(body io.Reader, key, nonce []byte) ([]byte, error) {
	dec, err := cipherx.NewDecryptor(key, nonce)
	if err != nil {
		return nil, err
	}

	var plain bytes.Buffer
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk, werr := dec.Write(buf[:n])
			if werr != nil {
				return nil, werr
			}
			plain.Write(chunk)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	tail, err := dec.Finalize()
	if err != nil {
		return nil, err
	}
	plain.Write(tail)
	return plain.Bytes(), nil
}
