package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const recommendationPK = "RECOMMENDATION"

// S3API is the part of *s3.Client the archive uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// DynamoAPI is the part of *dynamodb.Client the archive uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// AWSStorage keeps reports in S3 and the recommendation history in DynamoDB.
type AWSStorage struct {
	dynamoDB  DynamoAPI
	s3Client  S3API
	tableName string
	bucket    string
	ttl       time.Duration
	now       func() time.Time
}

// dynamoItem is the DynamoDB layout of a RecommendationEntry.
type dynamoItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	RecommendationEntry
	TTL int64 `dynamodbav:"TTL,omitempty"`
}

// NewAWSStorage loads the default AWS config for region and profile.
func NewAWSStorage(ctx context.Context, tableName, bucket, region, profile string) (*AWSStorage, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewAWSStorageWithClients(dynamodb.NewFromConfig(cfg), s3.NewFromConfig(cfg), tableName, bucket), nil
}

// NewAWSStorageWithClients wires explicit clients.
func NewAWSStorageWithClients(db DynamoAPI, s3c S3API, tableName, bucket string) *AWSStorage {
	return &AWSStorage{
		dynamoDB:  db,
		s3Client:  s3c,
		tableName: tableName,
		bucket:    bucket,
		ttl:       90 * 24 * time.Hour,
		now:       time.Now,
	}
}

// SaveToS3 writes data as indented JSON under key.
func (s *AWSStorage) SaveToS3(ctx context.Context, key string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling data: %w", err)
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(jsonData),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting object to S3: %w", err)
	}
	return nil
}

// GetFromS3 reads the JSON object at key into target.
func (s *AWSStorage) GetFromS3(ctx context.Context, key string, target interface{}) error {
	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("getting object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("reading S3 object body: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshaling S3 data: %w", err)
	}
	return nil
}

// PutRecommendation stores one history entry, sorted by generation time.
func (s *AWSStorage) PutRecommendation(ctx context.Context, e RecommendationEntry) error {
	item := dynamoItem{
		PK:                  recommendationPK,
		SK:                  e.GeneratedAt.UTC().Format(time.RFC3339Nano),
		RecommendationEntry: e,
	}
	if s.ttl > 0 {
		item.TTL = s.now().Add(s.ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	_, err = s.dynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting item to DynamoDB: %w", err)
	}
	return nil
}

// QueryRecommendations returns up to limit entries, newest first.
func (s *AWSStorage) QueryRecommendations(ctx context.Context, limit int) ([]RecommendationEntry, error) {
	result, err := s.dynamoDB.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: recommendationPK},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("querying DynamoDB: %w", err)
	}

	out := make([]RecommendationEntry, 0, len(result.Items))
	for _, raw := range result.Items {
		var item dynamoItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		e := item.RecommendationEntry
		if t, err := time.Parse(time.RFC3339Nano, item.SK); err == nil {
			e.GeneratedAt = t
		}
		out = append(out, e)
	}
	return out, nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nsk)
}
