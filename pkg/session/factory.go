package session

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"comitebot/pkg/config"
)

// New builds the store selected by cfg.Store.
func New(ctx context.Context, cfg config.SessionConfig, opts ...Option) (Store, error) {
	opts = append([]Option{WithTTL(cfg.TTL)}, opts...)

	switch cfg.Store {
	case "", config.StoreMemory:
		return NewMemoryStore(opts...), nil
	case config.StorePostgres:
		store, err := OpenPostgres(ctx, cfg.DatabaseURL, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("session: load aws config: %w", err)
		}
		store, err := NewDynamoDBStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("session: unknown store %q", cfg.Store)
	}
}
