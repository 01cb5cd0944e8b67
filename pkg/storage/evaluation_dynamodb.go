package storage

import (
	"context"
	"strconv"

	"github.com/autowar/autowar/pkg/evaluation"
	"github.com/autowar/autowar/pkg/validation"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

type DynamoDBEvaluationStorage struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBEvaluationStorage(client DynamoDBAPI, tableName string) *DynamoDBEvaluationStorage {
	return &DynamoDBEvaluationStorage{client: client, tableName: tableName}
}

func (s *DynamoDBEvaluationStorage) Put(ctx context.Context, e evaluation.Evaluation) error {
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return errors.Wrap(err, "marshalling evaluation")
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: item})
	return errors.Wrap(err, "putting evaluation")
}

func (s *DynamoDBEvaluationStorage) Get(ctx context.Context, id string) (*evaluation.Evaluation, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, errors.Wrap(err, "getting evaluation")
	}
	if out.Item == nil {
		return nil, nil
	}
	var e evaluation.Evaluation
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return nil, errors.Wrap(err, "unmarshalling evaluation")
	}
	return &e, nil
}

// ListForClient queries the clientIndex GSI and falls back to a filtered
// scan when the index is unavailable.
func (s *DynamoDBEvaluationStorage) ListForClient(ctx context.Context, clientID string, limit int) ([]evaluation.Evaluation, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		IndexName:              aws.String("clientIndex"),
		KeyConditionExpression: aws.String("client_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: clientID},
		},
		Limit: aws.Int32(int32(limit)),
	})
	if err == nil {
		return unmarshalEvaluations(out.Items)
	}

	scanned, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: aws.String("client_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: clientID},
		},
		Limit: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing evaluations")
	}
	return unmarshalEvaluations(scanned.Items)
}

func unmarshalEvaluations(items []map[string]types.AttributeValue) ([]evaluation.Evaluation, error) {
	evals := []evaluation.Evaluation{}
	if err := attributevalue.UnmarshalListOfMaps(items, &evals); err != nil {
		return nil, errors.Wrap(err, "unmarshalling evaluations")
	}
	return evals, nil
}

// Complete transitions PENDING to COMPLETED as a single conditional write so
// concurrent deliveries of the same evaluation produce exactly one result
// set.
func (s *DynamoDBEvaluationStorage) Complete(ctx context.Context, id string, results []validation.Verdict, completedAt int64) error {
	resultsAV, err := attributevalue.Marshal(results)
	if err != nil {
		return errors.Wrap(err, "marshalling results")
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:    aws.String("SET #status = :completed, #results = :results, completed_at = :ts"),
		ConditionExpression: aws.String("#status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status":  "status",
			"#results": "results",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":completed": &types.AttributeValueMemberS{Value: evaluation.StatusCompleted},
			":pending":   &types.AttributeValueMemberS{Value: evaluation.StatusPending},
			":results":   resultsAV,
			":ts":        &types.AttributeValueMemberN{Value: strconv.FormatInt(completedAt, 10)},
		},
	})
	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return evaluation.ErrAlreadyCompleted
	}
	return errors.Wrap(err, "completing evaluation")
}

type DynamoDBEvidenceStorage struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBEvidenceStorage(client DynamoDBAPI, tableName string) *DynamoDBEvidenceStorage {
	return &DynamoDBEvidenceStorage{client: client, tableName: tableName}
}

func (s *DynamoDBEvidenceStorage) Put(ctx context.Context, e evaluation.EvidenceEntry) error {
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return errors.Wrap(err, "marshalling evidence entry")
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: item})
	return errors.Wrap(err, "putting evidence entry")
}

func (s *DynamoDBEvidenceStorage) ListForEvaluation(ctx context.Context, evaluationID string) ([]evaluation.EvidenceEntry, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		IndexName:              aws.String("evaluationIndex"),
		KeyConditionExpression: aws.String("evaluation_id = :eid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":eid": &types.AttributeValueMemberS{Value: evaluationID},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying evidence")
	}
	entries := []evaluation.EvidenceEntry{}
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &entries); err != nil {
		return nil, errors.Wrap(err, "unmarshalling evidence entries")
	}
	return entries, nil
}
