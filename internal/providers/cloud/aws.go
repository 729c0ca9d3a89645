// Package cloud loads the shared AWS configuration used by object storage
// and operator alerts.
package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/smallbiznis/atelier/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.cloud",
	fx.Provide(NewAWSConfig),
)

// NewAWSConfig returns nil when neither S3 storage nor SNS alerts are
// configured, so the SDK never probes for credentials in local setups.
// AWS_S3_ENDPOINT or AWS_ENDPOINT redirect every client (LocalStack, MinIO).
func NewAWSConfig(cfg config.Config, log *zap.Logger) (*aws.Config, error) {
	if cfg.Storage.Driver != "s3" && cfg.SNSTopicARN == "" {
		return nil, nil
	}

	loaded, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Storage.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Storage.Endpoint != "" {
		loaded.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
		log.Info("aws endpoint override", zap.String("endpoint", cfg.Storage.Endpoint))
	}
	return &loaded, nil
}
