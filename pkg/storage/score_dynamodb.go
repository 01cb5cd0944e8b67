package storage

import (
	"context"

	"github.com/autowar/autowar/pkg/scores"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

type DynamoDBScoreStorage struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBScoreStorage(client DynamoDBAPI, tableName string) *DynamoDBScoreStorage {
	return &DynamoDBScoreStorage{client: client, tableName: tableName}
}

func (s *DynamoDBScoreStorage) Put(ctx context.Context, sc scores.Score) error {
	item, err := attributevalue.MarshalMap(sc)
	if err != nil {
		return errors.Wrap(err, "marshalling score record")
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: item})
	return errors.Wrap(err, "putting score record")
}

func (s *DynamoDBScoreStorage) Get(ctx context.Context, id string) (*scores.Score, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, errors.Wrap(err, "getting score record")
	}
	if out.Item == nil {
		return nil, nil
	}
	var sc scores.Score
	if err := attributevalue.UnmarshalMap(out.Item, &sc); err != nil {
		return nil, errors.Wrap(err, "unmarshalling score record")
	}
	return &sc, nil
}

// ListForEvaluation queries the evaluationIndex GSI and falls back to a
// filtered scan when the index is unavailable.
func (s *DynamoDBScoreStorage) ListForEvaluation(ctx context.Context, evaluationID string, limit int) ([]scores.Score, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		IndexName:              aws.String("evaluationIndex"),
		KeyConditionExpression: aws.String("evaluation_id = :eid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":eid": &types.AttributeValueMemberS{Value: evaluationID},
		},
		Limit: aws.Int32(int32(limit)),
	})
	if err == nil {
		return unmarshalScores(out.Items)
	}

	scanned, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: aws.String("evaluation_id = :eid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":eid": &types.AttributeValueMemberS{Value: evaluationID},
		},
		Limit: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing score records")
	}
	return unmarshalScores(scanned.Items)
}

func unmarshalScores(items []map[string]types.AttributeValue) ([]scores.Score, error) {
	out := []scores.Score{}
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, errors.Wrap(err, "unmarshalling score records")
	}
	return out, nil
}
