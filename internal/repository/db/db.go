package db

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/fyles/internal/repository/migrate"
)

type DynamoDb struct {
	Client        *dynamodb.Client
	TaggingClient *resourcegroupstaggingapi.Client
}

func NewDatabase(awsConfig aws.Config) (*DynamoDb, error) {
	client := dynamodb.NewFromConfig(awsConfig)
	if client == nil {
		return nil, fmt.Errorf("failed to create DynamoDB client")
	}

	taggingClient := resourcegroupstaggingapi.NewFromConfig(awsConfig)
	if taggingClient == nil {
		return nil, fmt.Errorf("failed to create Resource Groups Tagging API client")
	}

	return &DynamoDb{
		Client:        client,
		TaggingClient: taggingClient,
	}, nil
}

// MigrateDb creates the ledger table and tags it with the given tags.
func (d *DynamoDb) MigrateDb(ctx context.Context, table string, tags map[string]string) error {
	m := &migrate.CreateLedgerTable{Table: table}
	log.Infof("Applying migration %s to %s", m.Version(), m.TableName())

	arn, err := m.Up(ctx, d.Client)
	if err != nil {
		return fmt.Errorf("migration %s: %w", m.Version(), err)
	}

	if len(tags) == 0 {
		return nil
	}
	out, err := d.TaggingClient.TagResources(ctx, &resourcegroupstaggingapi.TagResourcesInput{
		ResourceARNList: []string{arn},
		Tags:            tags,
	})
	if err != nil {
		return fmt.Errorf("failed to tag %s: %w", arn, err)
	}
	for res, failure := range out.FailedResourcesMap {
		log.Warnf("Failed to tag %s: %s", res, aws.ToString(failure.ErrorMessage))
	}
	return nil
}

// MigrateDown drops the ledger table.
func (d *DynamoDb) MigrateDown(ctx context.Context, table string) error {
	m := &migrate.CreateLedgerTable{Table: table}
	log.Infof("Rolling back migration %s on %s", m.Version(), m.TableName())
	return m.Down(ctx, d.Client)
}
