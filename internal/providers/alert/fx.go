package alert

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/smallbiznis/atelier/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.alert",
	fx.Provide(NewFromConfig),
)

type Params struct {
	fx.In

	Config config.Config
	AWS    *aws.Config `optional:"true"`
	Log    *zap.Logger
}

func NewFromConfig(p Params) Provider {
	if p.Config.SNSTopicARN == "" || p.AWS == nil {
		return &NoOpProvider{}
	}
	p.Log.Info("operator alerts enabled", zap.String("topic_arn", p.Config.SNSTopicARN))
	return NewSNS(sns.NewFromConfig(*p.AWS), p.Config.SNSTopicARN)
}
