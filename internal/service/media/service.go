package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-resty/resty/v2"
	"github.com/nfnt/resize"
	"github.com/vincent-petithory/dataurl"

	"github.com/felipe/zapgate/internal/config"
	"github.com/felipe/zapgate/internal/logger"
	"github.com/felipe/zapgate/internal/transport"
)

const (
	maxFetchSize  = 50 << 20 // 50 MiB
	thumbnailEdge = 96
)

// Service resolve conteúdos de mídia para envio (data URL, URL remota ou
// base64 cru) e arquiva mídia recebida no bucket S3 opcional
type Service struct {
	cfg      *config.Config
	client   *resty.Client
	s3Client *s3.Client
	logger   logger.Logger
}

// NewService cria o serviço de mídia; o cliente S3 só é montado quando o
// arquivo remoto está habilitado
func NewService(cfg *config.Config) *Service {
	s := &Service{
		cfg: cfg,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)),
		logger: logger.Get(),
	}

	if cfg.S3.Enabled {
		s.s3Client = newS3Client(cfg.S3)
	}

	return s
}

func newS3Client(cfg config.S3Config) *s3.Client {
	awsCfg := aws.Config{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	}

	if cfg.Endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				if service == s3.ServiceID {
					return aws.Endpoint{
						URL:               cfg.Endpoint,
						HostnameImmutable: cfg.PathStyle,
					}, nil
				}
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			})
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
	})
}

// Resolve converte o conteúdo recebido na API em mídia pronta para envio.
// Aceita data URL, URL http(s) ou base64 puro.
func (s *Service) Resolve(ctx context.Context, mediaType, content, mimeType, filename, caption string) (*transport.Media, error) {
	var data []byte
	var detectedMime string

	switch {
	case strings.HasPrefix(content, "data:"):
		decoded, err := dataurl.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("invalid data URL: %w", err)
		}
		data = decoded.Data
		detectedMime = decoded.MediaType.ContentType()

	case strings.HasPrefix(content, "http://") || strings.HasPrefix(content, "https://"):
		fetched, fetchedMime, err := s.fetch(ctx, content)
		if err != nil {
			return nil, err
		}
		data = fetched
		detectedMime = fetchedMime

	default:
		decoded, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("content is not a data URL, URL or base64: %w", err)
		}
		data = decoded
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("media content is empty")
	}

	if mimeType == "" {
		mimeType = detectedMime
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	media := &transport.Media{
		Type:     mediaType,
		Data:     data,
		MimeType: mimeType,
		Caption:  caption,
		Filename: filename,
	}

	if mediaType == "image" {
		if thumb, err := s.Thumbnail(data); err == nil {
			media.Thumbnail = thumb
		} else {
			s.logger.Debug().Err(err).Msg("Thumbnail generation skipped")
		}
	}

	return media, nil
}

// fetch baixa o conteúdo de uma URL remota
func (s *Service) fetch(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch media: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, "", fmt.Errorf("media fetch returned status %d", resp.StatusCode())
	}

	body := resp.Body()
	if len(body) > maxFetchSize {
		return nil, "", fmt.Errorf("media exceeds %d bytes", maxFetchSize)
	}

	return body, resp.Header().Get("Content-Type"), nil
}

// Thumbnail reduz uma imagem para a miniatura JPEG embutida na mensagem
func (s *Service) Thumbnail(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := resize.Thumbnail(thumbnailEdge, thumbnailEdge, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return buf.Bytes(), nil
}

// Archive grava um blob de mídia recebida no bucket configurado; no-op
// quando o arquivo S3 está desabilitado
func (s *Service) Archive(ctx context.Context, instanceID, messageID string, data []byte, mimeType string) (string, error) {
	if s.s3Client == nil {
		return "", nil
	}

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	key := s.objectKey(instanceID, messageID, mimeType)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	}
	if strings.HasPrefix(mimeType, "image/") || strings.HasPrefix(mimeType, "video/") {
		input.ContentDisposition = aws.String("inline")
	}

	if _, err := s.s3Client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to archive media: %w", err)
	}

	s.logger.Debug().Str("key", key).Str("instance_id", instanceID).Msg("Media archived")
	return key, nil
}

// objectKey monta a chave do objeto: <instância>/<ano-mês>/<mensagem>.<ext>
func (s *Service) objectKey(instanceID, messageID, mimeType string) string {
	ext := extensionFor(mimeType)
	return path.Join(instanceID, time.Now().UTC().Format("2006-01"), messageID+ext)
}

func extensionFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(mimeType, "image/png"):
		return ".png"
	case strings.HasPrefix(mimeType, "image/webp"):
		return ".webp"
	case strings.HasPrefix(mimeType, "video/"):
		return ".mp4"
	case strings.HasPrefix(mimeType, "audio/"):
		return ".ogg"
	case mimeType == "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
