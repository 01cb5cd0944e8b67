package storage

import (
	"context"
	"strconv"

	"github.com/autowar/autowar/pkg/credentials"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

type DynamoDBCredentialStorage struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBCredentialStorage(client DynamoDBAPI, tableName string) *DynamoDBCredentialStorage {
	return &DynamoDBCredentialStorage{client: client, tableName: tableName}
}

func (s *DynamoDBCredentialStorage) Put(ctx context.Context, r credentials.Record) error {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return errors.Wrap(err, "marshalling credential record")
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: item})
	return errors.Wrap(err, "putting credential record")
}

func (s *DynamoDBCredentialStorage) Get(ctx context.Context, id string) (*credentials.Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, errors.Wrap(err, "getting credential record")
	}
	if out.Item == nil {
		return nil, nil
	}
	var r credentials.Record
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, errors.Wrap(err, "unmarshalling credential record")
	}
	return &r, nil
}

// List scans the whole table. Fine at the expected low-thousands scale; a
// time-bucketed index would replace this if record counts grow.
func (s *DynamoDBCredentialStorage) List(ctx context.Context) ([]credentials.Record, error) {
	records := []credentials.Record{}
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, errors.Wrap(err, "scanning credential records")
		}
		page := []credentials.Record{}
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, errors.Wrap(err, "unmarshalling credential records")
		}
		records = append(records, page...)
		if out.LastEvaluatedKey == nil {
			return records, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (s *DynamoDBCredentialStorage) MarkExpired(ctx context.Context, id string, deletedAt int64) error {
	return s.update(ctx, id, &dynamodb.UpdateItemInput{
		UpdateExpression:         aws.String("SET #status = :expired, deleted_at = :ts"),
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expired": &types.AttributeValueMemberS{Value: credentials.StatusExpired},
			":ts":      numberAV(deletedAt),
		},
	})
}

func (s *DynamoDBCredentialStorage) MarkRotated(ctx context.Context, id string, rotatedAt int64) error {
	return s.update(ctx, id, &dynamodb.UpdateItemInput{
		UpdateExpression: aws.String("SET last_rotated_ts = :ts REMOVE rotation_due"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ts": numberAV(rotatedAt),
		},
	})
}

func (s *DynamoDBCredentialStorage) MarkRotationDue(ctx context.Context, id string, ts int64) error {
	return s.update(ctx, id, &dynamodb.UpdateItemInput{
		UpdateExpression: aws.String("SET rotation_due = :ts"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ts": numberAV(ts),
		},
	})
}

func (s *DynamoDBCredentialStorage) UpdateSessionExpiry(ctx context.Context, id string, expiryTS, rotatedAt int64) error {
	return s.update(ctx, id, &dynamodb.UpdateItemInput{
		UpdateExpression: aws.String("SET expiry_ts = :expiry, last_rotated_ts = :rotated REMOVE rotation_due"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expiry":  numberAV(expiryTS),
			":rotated": numberAV(rotatedAt),
		},
	})
}

func (s *DynamoDBCredentialStorage) update(ctx context.Context, id string, input *dynamodb.UpdateItemInput) error {
	input.TableName = &s.tableName
	input.Key = map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
	_, err := s.client.UpdateItem(ctx, input)
	return errors.Wrap(err, "updating credential record")
}

func numberAV(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
