package storage

import (
	"context"

	"github.com/autowar/autowar/pkg/reports"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

type DynamoDBReportStorage struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBReportStorage(client DynamoDBAPI, tableName string) *DynamoDBReportStorage {
	return &DynamoDBReportStorage{client: client, tableName: tableName}
}

func (s *DynamoDBReportStorage) PutPending(ctx context.Context, evaluationID string, createdAt int64) error {
	item, err := attributevalue.MarshalMap(reports.Record{
		EvaluationID: evaluationID,
		Status:       reports.StatusPending,
		CreatedAt:    createdAt,
	})
	if err != nil {
		return errors.Wrap(err, "marshalling report record")
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: item})
	return errors.Wrap(err, "putting report record")
}

func (s *DynamoDBReportStorage) Get(ctx context.Context, evaluationID string) (*reports.Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"evaluation_id": &types.AttributeValueMemberS{Value: evaluationID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, errors.Wrap(err, "getting report record")
	}
	if out.Item == nil {
		return nil, nil
	}
	var r reports.Record
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, errors.Wrap(err, "unmarshalling report record")
	}
	return &r, nil
}

func (s *DynamoDBReportStorage) MarkCompleted(ctx context.Context, evaluationID, location string, generatedAt int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"evaluation_id": &types.AttributeValueMemberS{Value: evaluationID},
		},
		UpdateExpression: aws.String("SET #status = :completed, #location = :loc, generated_at = :ts"),
		ExpressionAttributeNames: map[string]string{
			"#status":   "status",
			"#location": "location",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":completed": &types.AttributeValueMemberS{Value: reports.StatusCompleted},
			":loc":       &types.AttributeValueMemberS{Value: location},
			":ts":        numberAV(generatedAt),
		},
	})
	return errors.Wrap(err, "completing report record")
}
