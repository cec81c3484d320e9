package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"
)

// LoadConfig loads the default credential chain, assuming roleArn on top of
// it when one is given.
func LoadConfig(ctx context.Context, roleArn string) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		zap.L().Error("error loading default config", zap.Error(err))
		return aws.Config{}, err
	}
	if roleArn == "" {
		return cfg, nil
	}
	provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), roleArn, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = "eventix-api"
	})
	cfg.Credentials = aws.NewCredentialsCache(provider)
	return cfg, nil
}
