package migrate

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	DefaultLedgerTableName = "fyles_ledger"
	LedgerTableVersion     = "20250731000000_ledger_table"
)

// CreateLedgerTable creates the append-only registry table: one partition per account, one item
// per registered file, sorted by registration index.
type CreateLedgerTable struct {
	Table string
}

func (m *CreateLedgerTable) Version() string {
	return LedgerTableVersion
}

func (m *CreateLedgerTable) TableName() string {
	if m.Table == "" {
		return DefaultLedgerTableName
	}
	return m.Table
}

// Up creates the table, waits for it to become active and returns its ARN.
func (m *CreateLedgerTable) Up(ctx context.Context, client *dynamodb.Client) (string, error) {
	input := &dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("account"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("idx"),
				AttributeType: types.ScalarAttributeTypeN,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("account"),
				KeyType:       types.KeyTypeHash, // Partition Key
			},
			{
				AttributeName: aws.String("idx"),
				KeyType:       types.KeyTypeRange, // Sort Key
			},
		},
		TableName:   aws.String(m.TableName()),
		BillingMode: types.BillingModePayPerRequest,
		Tags: []types.Tag{
			{
				Key:   aws.String("Purpose"),
				Value: aws.String("FileRegistryLedger"),
			},
		},
	}

	out, err := client.CreateTable(ctx, input)
	if err != nil {
		return "", err
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	err = waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(m.TableName()),
	}, 5*time.Minute)
	if err != nil {
		return "", err
	}

	return aws.ToString(out.TableDescription.TableArn), nil
}

func (m *CreateLedgerTable) Down(ctx context.Context, client *dynamodb.Client) error {
	input := &dynamodb.DeleteTableInput{
		TableName: aws.String(m.TableName()),
	}

	_, err := client.DeleteTable(ctx, input)
	return err
}
