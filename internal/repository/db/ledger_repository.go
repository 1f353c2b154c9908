package db

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/fyles/internal/domain"
	apperrors "github.com/zzenonn/fyles/internal/errors"
	"github.com/zzenonn/fyles/internal/hashcodec"
)

const maxAppendAttempts = 5

// DynamoAPI is the part of *dynamodb.Client the ledger repository uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ledgerItem is one registered file. Items are never updated or deleted.
type ledgerItem struct {
	Account      string          `dynamodbav:"account"`
	Index        int64           `dynamodbav:"idx"`
	FileHash     string          `dynamodbav:"file_hash"`
	HashFunction string          `dynamodbav:"hash_function"`
	HashSize     string          `dynamodbav:"hash_size"`
	FileType     domain.FileType `dynamodbav:"file_type"`
	TxID         string          `dynamodbav:"tx_id"`
	CreatedAt    time.Time       `dynamodbav:"created_at"`
}

// LedgerRepository keeps the file registry in a DynamoDB table, one partition per account,
// in registration order.
type LedgerRepository struct {
	client    DynamoAPI
	tableName string
	account   string
}

// NewLedgerRepository initializes a new LedgerRepository. account is the identity calls are
// made from.
func NewLedgerRepository(client DynamoAPI, tableName, account string) *LedgerRepository {
	return &LedgerRepository{
		client:    client,
		tableName: tableName,
		account:   account,
	}
}

func (repo *LedgerRepository) Account(ctx context.Context) (string, error) {
	if repo.account == "" {
		return "", apperrors.Wrap(apperrors.ErrProviderUnavailable, apperrors.ConfigNotSetError("ledger.account"))
	}
	return repo.account, nil
}

// AddFile appends rec to the from partition and returns a generated transaction id. The
// digest is stored padded to a full word, the way the contract stores it.
func (repo *LedgerRepository) AddFile(ctx context.Context, rec domain.FileRecord, from string) (string, error) {
	digest, err := hashcodec.DigestWord(rec.FileHash)
	if err != nil {
		return "", err
	}
	if _, err := hashcodec.PackRecord(rec); err != nil {
		return "", err
	}

	item := ledgerItem{
		Account:      from,
		FileHash:     "0x" + hex.EncodeToString(digest[:]),
		HashFunction: rec.HashFunction,
		HashSize:     rec.HashSize,
		FileType:     rec.FileType,
		TxID:         uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
	}

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		next, err := repo.nextIndex(ctx, from)
		if err != nil {
			return "", err
		}
		item.Index = next

		itemMap, err := attributevalue.MarshalMap(item)
		if err != nil {
			return "", fmt.Errorf("failed to marshal ledger item: %w", err)
		}

		_, err = repo.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                aws.String(repo.tableName),
			Item:                     itemMap,
			ConditionExpression:      aws.String("attribute_not_exists(#idx)"),
			ExpressionAttributeNames: map[string]string{"#idx": "idx"},
		})
		if err == nil {
			log.Debugf("Appended ledger item %d for %s", next, from)
			return item.TxID, nil
		}

		var conflict *types.ConditionalCheckFailedException
		if !errors.As(err, &conflict) {
			return "", fmt.Errorf("failed to append ledger item: %w", err)
		}
		log.Debugf("Index %d for %s taken, retrying", next, from)
	}

	return "", fmt.Errorf("failed to append ledger item after %d attempts", maxAppendAttempts)
}

// GetAllFileHashes returns the digest words registered by from, oldest first.
func (repo *LedgerRepository) GetAllFileHashes(ctx context.Context, from string) ([]string, error) {
	items, err := repo.listItems(ctx, from)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(items))
	for i, item := range items {
		hashes[i] = item.FileHash
	}
	return hashes, nil
}

// GetAllFileMetadata returns the packed metadata words registered by from, oldest first.
func (repo *LedgerRepository) GetAllFileMetadata(ctx context.Context, from string) ([]string, error) {
	items, err := repo.listItems(ctx, from)
	if err != nil {
		return nil, err
	}
	metadata := make([]string, len(items))
	for i, item := range items {
		word, err := hashcodec.PackRecord(domain.FileRecord{
			HashFunction: item.HashFunction,
			HashSize:     item.HashSize,
			FileType:     item.FileType,
		})
		if err != nil {
			return nil, fmt.Errorf("ledger item %d: %w", item.Index, err)
		}
		metadata[i] = word
	}
	return metadata, nil
}

func (repo *LedgerRepository) nextIndex(ctx context.Context, account string) (int64, error) {
	out, err := repo.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                aws.String(repo.tableName),
		KeyConditionExpression:   aws.String("#account = :account"),
		ExpressionAttributeNames: map[string]string{"#account": "account"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":account": &types.AttributeValueMemberS{Value: account},
		},
		ScanIndexForward: aws.Bool(false),
		ConsistentRead:   aws.Bool(true),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query last ledger index: %w", err)
	}
	if len(out.Items) == 0 {
		return 0, nil
	}

	idx, ok := out.Items[0]["idx"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, apperrors.Wrap(apperrors.ErrMalformedRecord, fmt.Errorf("ledger item without numeric idx"))
	}
	last, err := strconv.ParseInt(idx.Value, 10, 64)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrMalformedRecord, err)
	}
	return last + 1, nil
}

func (repo *LedgerRepository) listItems(ctx context.Context, account string) ([]ledgerItem, error) {
	input := &dynamodb.QueryInput{
		TableName:                aws.String(repo.tableName),
		KeyConditionExpression:   aws.String("#account = :account"),
		ExpressionAttributeNames: map[string]string{"#account": "account"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":account": &types.AttributeValueMemberS{Value: account},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}

	var items []ledgerItem
	paginator := dynamodb.NewQueryPaginator(repo.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query ledger: %w", err)
		}

		var pageItems []ledgerItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ledger items: %w", err)
		}
		items = append(items, pageItems...)
	}

	return items, nil
}
