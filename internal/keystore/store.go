// Package keystore reads and writes API key records in DynamoDB.
package keystore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/edvin/licensegate/internal/model"
)

var (
	// ErrNotFound is returned by admin operations addressing a key that does not exist.
	ErrNotFound = errors.New("api key not found")
	// ErrExists is returned by Put when the key is already stored.
	ErrExists = errors.New("api key already exists")
)

// DynamoAPI is the subset of the DynamoDB client used by the store.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store is the key-value adapter for the API keys table. The DynamoDB client
// is created on first use and shared by all requests.
type Store struct {
	table  string
	client func() DynamoAPI
}

// New returns a Store that lazily builds its DynamoDB client from cfg.
func New(cfg aws.Config, table string, optFns ...func(*dynamodb.Options)) *Store {
	return &Store{
		table: table,
		client: sync.OnceValue(func() DynamoAPI {
			return dynamodb.NewFromConfig(cfg, optFns...)
		}),
	}
}

// NewWithClient returns a Store backed by an existing client.
func NewWithClient(client DynamoAPI, table string) *Store {
	return &Store{
		table:  table,
		client: func() DynamoAPI { return client },
	}
}

// record mirrors the stored item. A missing active attribute means active,
// matching items written before the flag existed.
type record struct {
	Key       string `dynamodbav:"api_key"`
	ID        string `dynamodbav:"id,omitempty"`
	Customer  string `dynamodbav:"customer"`
	Active    *bool  `dynamodbav:"active"`
	CreatedAt string `dynamodbav:"created_at"`
}

func (r *record) toModel() *model.APIKey {
	k := &model.APIKey{
		Key:      r.Key,
		ID:       r.ID,
		Customer: r.Customer,
		Active:   r.Active == nil || *r.Active,
	}
	if t, err := time.Parse(time.RFC3339Nano, r.CreatedAt); err == nil {
		k.CreatedAt = t
	}
	return k
}

func keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"api_key": &types.AttributeValueMemberS{Value: key},
	}
}

// Lookup returns the active record for key. A missing key and a revoked key
// both yield nil with no error. An empty key never reaches the table.
func (s *Store) Lookup(ctx context.Context, key string) (*model.APIKey, error) {
	if key == "" {
		return nil, nil
	}
	k, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if k == nil || !k.Active {
		return nil, nil
	}
	return k, nil
}

func (s *Store) get(ctx context.Context, key string) (*model.APIKey, error) {
	out, err := s.client().GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       keyAttr(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var r record
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, fmt.Errorf("decode api key: %w", err)
	}
	return r.toModel(), nil
}

// Put stores a new record. Existing keys are never overwritten.
func (s *Store) Put(ctx context.Context, k *model.APIKey) error {
	active := k.Active
	item, err := attributevalue.MarshalMap(record{
		Key:       k.Key,
		ID:        k.ID,
		Customer:  k.Customer,
		Active:    &active,
		CreatedAt: k.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encode api key: %w", err)
	}

	_, err = s.client().PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(api_key)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrExists
		}
		return fmt.Errorf("put api key: %w", err)
	}
	return nil
}

// Revoke marks the key inactive. The record itself is kept.
func (s *Store) Revoke(ctx context.Context, key string) error {
	_, err := s.client().UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 keyAttr(key),
		UpdateExpression:    aws.String("SET active = :val"),
		ConditionExpression: aws.String("attribute_exists(api_key)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":val": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("revoke api key: %w", err)
	}
	return nil
}

// List scans the whole table, active and revoked records alike.
func (s *Store) List(ctx context.Context) ([]model.APIKey, error) {
	p := dynamodb.NewScanPaginator(s.client(), &dynamodb.ScanInput{
		TableName: aws.String(s.table),
	})

	var keys []model.APIKey
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan api keys: %w", err)
		}
		var recs []record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("decode api keys: %w", err)
		}
		for i := range recs {
			keys = append(keys, *recs[i].toModel())
		}
	}
	return keys, nil
}
