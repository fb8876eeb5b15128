// Package dynamoremote implements a DynamoDB remote store.
//
// One item per cache entry, keyed by cache_id, with a TTL attribute
// (expires_at) configured for server-side expiry. Large payloads are
// compressed; items that still exceed the DynamoDB item limit are
// dropped with a warning rather than failing the write path.
package dynamoremote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/packrat-io/packrat/internal/codec"
	"github.com/packrat-io/packrat/internal/codec/gzipcodec"
	"github.com/packrat-io/packrat/internal/remote"
)

const (
	// compressThreshold is the payload size above which compression kicks in.
	compressThreshold = 100_000

	// maxItemSize is the DynamoDB item size limit.
	maxItemSize = 400_000

	// createWaitTimeout bounds the wait for a newly created table to
	// become active.
	createWaitTimeout = 2 * time.Minute
)

// Process-wide cache of ensured tables, shared across stores so every
// coordinator can call EnsureReady cheaply.
var (
	ensuredMu     sync.Mutex
	ensuredTables = make(map[string]bool)
	ensureGroup   singleflight.Group
)

// Compile-time check that Store implements remote.Store.
var _ remote.Store = (*Store)(nil)

// Store is a DynamoDB-backed remote store.
type Store struct {
	client *dynamodb.Client
	table  string
	codec  codec.Codec
	logger *zap.Logger
}

// item is the DynamoDB representation of a remote record.
type item struct {
	CacheID    string `dynamodbav:"cache_id"`
	Payload    []byte `dynamodbav:"payload"`
	Compressed bool   `dynamodbav:"compressed"`
	Codec      string `dynamodbav:"codec,omitempty"`
	UpdatedAt  int64  `dynamodbav:"updated_at"`
	ExpiresAt  int64  `dynamodbav:"expires_at,omitempty"`
}

// New creates a DynamoDB store for the given table.
func New(ctx context.Context, table string, opts ...Option) (*Store, error) {
	if table == "" {
		return nil, errors.New("dynamoremote: table name required")
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	s := &Store{
		client: dynamodb.NewFromConfig(cfg),
		table:  table,
		codec:  gzipcodec.New(),
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Option configures a Store.
type Option func(*Store) error

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(s *Store) error {
		cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
		if err != nil {
			return fmt.Errorf("loading AWS config with region: %w", err)
		}
		s.client = dynamodb.NewFromConfig(cfg)
		return nil
	}
}

// WithEndpoint sets a custom endpoint (for DynamoDB Local).
func WithEndpoint(endpoint string) Option {
	return func(s *Store) error {
		cfg, err := config.LoadDefaultConfig(context.Background())
		if err != nil {
			return fmt.Errorf("loading AWS config for endpoint: %w", err)
		}
		s.client = dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
		return nil
	}
}

// WithCodec sets the payload codec used above the compression threshold.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) error {
		s.codec = c
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) error {
		s.logger = l
		return nil
	}
}

// EnsureReady verifies the table exists with TTL enabled, creating it
// on first use. The ensured state is cached process-wide and duplicate
// concurrent setup calls collapse into one.
func (s *Store) EnsureReady(ctx context.Context) error {
	ensuredMu.Lock()
	done := ensuredTables[s.table]
	ensuredMu.Unlock()
	if done {
		return nil
	}

	_, err, _ := ensureGroup.Do(s.table, func() (any, error) {
		if err := s.ensureTable(ctx); err != nil {
			return nil, err
		}
		ensuredMu.Lock()
		ensuredTables[s.table] = true
		ensuredMu.Unlock()
		return nil, nil
	})
	return err
}

func (s *Store) ensureTable(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err == nil {
		return nil
	}
	var nf *types.ResourceNotFoundException
	if !errors.As(err, &nf) {
		return fmt.Errorf("describing table: %w", err)
	}

	s.logger.Info("creating remote cache table", zap.String("table", s.table))
	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{{
			AttributeName: aws.String("cache_id"),
			AttributeType: types.ScalarAttributeTypeS,
		}},
		KeySchema: []types.KeySchemaElement{{
			AttributeName: aws.String("cache_id"),
			KeyType:       types.KeyTypeHash,
		}},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var exists *types.ResourceInUseException
		if !errors.As(err, &exists) {
			return fmt.Errorf("creating table: %w", err)
		}
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	}, createWaitTimeout); err != nil {
		return fmt.Errorf("waiting for table: %w", err)
	}

	_, err = s.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(s.table),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String("expires_at"),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		var verr *types.ResourceInUseException
		// TTL may already be enabled from a concurrent creator.
		if !errors.As(err, &verr) {
			return fmt.Errorf("enabling TTL: %w", err)
		}
	}
	return nil
}

// Get fetches a record using an eventually consistent read.
func (s *Store) Get(ctx context.Context, id string) (*remote.Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"cache_id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if out.Item == nil {
		return nil, remote.ErrNotFound
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshaling item: %w", err)
	}

	payload := it.Payload
	if it.Compressed {
		payload, err = s.codec.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("decompressing payload: %w", err)
		}
	}

	return &remote.Record{
		ID:        it.CacheID,
		Payload:   payload,
		UpdatedAt: time.Unix(it.UpdatedAt, 0),
		ExpiresAt: it.ExpiresAt,
	}, nil
}

// Put upserts a record. Payloads over the compression threshold are
// compressed; a payload still over the item limit is dropped with a
// warning so the local tier stays authoritative.
func (s *Store) Put(ctx context.Context, rec *remote.Record) error {
	it := item{
		CacheID:   rec.ID,
		Payload:   rec.Payload,
		UpdatedAt: rec.UpdatedAt.Unix(),
		ExpiresAt: rec.ExpiresAt,
	}

	if len(rec.Payload) > compressThreshold && s.codec.Name() != "" {
		compressed, err := s.codec.Encode(rec.Payload)
		if err != nil {
			return fmt.Errorf("compressing payload: %w", err)
		}
		s.logger.Debug("compressed remote payload",
			zap.String("id", rec.ID),
			zap.Int("raw", len(rec.Payload)),
			zap.Int("compressed", len(compressed)),
		)
		it.Payload = compressed
		it.Compressed = true
		it.Codec = s.codec.Name()
	}

	if len(it.Payload) > maxItemSize {
		s.logger.Warn("payload exceeds item size limit, not stored",
			zap.String("id", rec.ID),
			zap.Int("size", len(it.Payload)),
		)
		return nil
	}

	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting item: %w", err)
	}
	return nil
}

// Delete removes a record. Deleting an absent record is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"cache_id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// Keys lists cache IDs with scan pagination.
func (s *Store) Keys(ctx context.Context, limit int, startAfter string) ([]string, string, error) {
	input := &dynamodb.ScanInput{
		TableName:            aws.String(s.table),
		ProjectionExpression: aws.String("cache_id"),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}
	if startAfter != "" {
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			"cache_id": &types.AttributeValueMemberS{Value: startAfter},
		}
	}

	out, err := s.client.Scan(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("scanning table: %w", err)
	}

	ids := make([]string, 0, len(out.Items))
	for _, raw := range out.Items {
		var it item
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			continue
		}
		ids = append(ids, it.CacheID)
	}

	cursor := ""
	if out.LastEvaluatedKey != nil {
		if av, ok := out.LastEvaluatedKey["cache_id"].(*types.AttributeValueMemberS); ok {
			cursor = av.Value
		}
	}
	return ids, cursor, nil
}

// Close releases resources. The DynamoDB client needs no explicit close.
func (s *Store) Close() error {
	return nil
}
