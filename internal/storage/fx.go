package storage

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/smallbiznis/atelier/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("storage",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Config config.Config
	AWS    *aws.Config `optional:"true"`
	Log    *zap.Logger
}

func New(p Params) (Store, error) {
	cfg := p.Config.Storage
	switch cfg.Driver {
	case "s3":
		if p.AWS == nil || cfg.Bucket == "" {
			return nil, errors.New("s3 storage requires S3_BUCKET and aws configuration")
		}
		client := s3.NewFromConfig(*p.AWS, func(o *s3.Options) {
			o.UsePathStyle = cfg.Endpoint != ""
		})
		publicURL := cfg.PublicURL
		if publicURL == "" {
			publicURL = "https://" + cfg.Bucket + ".s3." + cfg.Region + ".amazonaws.com"
		}
		p.Log.Info("object storage: s3", zap.String("bucket", cfg.Bucket))
		return NewS3(client, cfg.Bucket, publicURL), nil
	default:
		p.Log.Info("object storage: local disk", zap.String("dir", cfg.LocalDir))
		return NewLocal(cfg.LocalDir, cfg.PublicPath)
	}
}
