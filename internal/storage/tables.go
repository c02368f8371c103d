package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

// tableAdmin is the subset of the DynamoDB client used to bootstrap tables
type tableAdmin interface {
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// CreateTablesIfNotExist creates the activity table for local development
func CreateTablesIfNotExist(ctx context.Context, client tableAdmin, config DynamoConfig, logger zerolog.Logger) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(config.ActivityTable),
	})
	if err == nil {
		logger.Info().Str("table", config.ActivityTable).Msg("table already exists")
		return nil
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(config.ActivityTable),
		KeySchema: []dbtypes.KeySchemaElement{
			{AttributeName: aws.String(partitionKey), KeyType: dbtypes.KeyTypeHash},
			{AttributeName: aws.String(sortKey), KeyType: dbtypes.KeyTypeRange},
		},
		AttributeDefinitions: []dbtypes.AttributeDefinition{
			{AttributeName: aws.String(partitionKey), AttributeType: dbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String(sortKey), AttributeType: dbtypes.ScalarAttributeTypeS},
		},
		BillingMode: dbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", config.ActivityTable, err)
	}
	logger.Info().Str("table", config.ActivityTable).Msg("table created")
	return nil
}
