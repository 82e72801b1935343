package coverage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"

	"github.com/AndreyAkinshin/qgate/internal/config"
)

// SecretGetter is the subset of the Secrets Manager API used for tokens.
type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ErrTokenNotSet is returned when the configured token variable is empty.
var ErrTokenNotSet = errors.New("coverage token environment variable is not set")

// ResolveToken returns the repository token for the reporting service.
// token_secret takes precedence over token_env; neither set means no token.
func ResolveToken(ctx context.Context, cfg *config.UploadConfig, deps Deps) (string, error) {
	switch {
	case cfg.TokenSecret != "":
		getter := deps.Secrets
		if getter == nil {
			awsCfg, err := loadAWSConfig(ctx, cfg.Region)
			if err != nil {
				return "", err
			}
			getter = secretsmanager.NewFromConfig(awsCfg)
		}
		return secretToken(ctx, getter, cfg.TokenSecret)
	case cfg.TokenEnv != "":
		token := deps.getenv(cfg.TokenEnv)
		if token == "" {
			return "", fmt.Errorf("%w: %s", ErrTokenNotSet, cfg.TokenEnv)
		}
		return token, nil
	default:
		return "", nil
	}
}

func secretToken(ctx context.Context, getter SecretGetter, name string) (string, error) {
	out, err := getter.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &name})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("read secret %q: %s: %s", name, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return "", fmt.Errorf("read secret %q: %w", name, err)
	}
	switch {
	case out.SecretString != nil && *out.SecretString != "":
		return *out.SecretString, nil
	case len(out.SecretBinary) > 0:
		return string(out.SecretBinary), nil
	default:
		return "", fmt.Errorf("secret %q is empty", name)
	}
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return cfg, nil
}
