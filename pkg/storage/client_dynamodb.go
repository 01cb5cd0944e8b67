package storage

import (
	"context"

	"github.com/autowar/autowar/pkg/clients"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

type DynamoDBClientStorage struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBClientStorage(client DynamoDBAPI, tableName string) *DynamoDBClientStorage {
	return &DynamoDBClientStorage{client: client, tableName: tableName}
}

func (s *DynamoDBClientStorage) Put(ctx context.Context, c clients.Client) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return errors.Wrap(err, "marshalling client record")
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: item})
	return errors.Wrap(err, "putting client record")
}

func (s *DynamoDBClientStorage) Get(ctx context.Context, id string) (*clients.Client, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, errors.Wrap(err, "getting client record")
	}
	if out.Item == nil {
		return nil, nil
	}
	var c clients.Client
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, errors.Wrap(err, "unmarshalling client record")
	}
	return &c, nil
}

func (s *DynamoDBClientStorage) List(ctx context.Context) ([]clients.Client, error) {
	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{TableName: &s.tableName})
	if err != nil {
		return nil, errors.Wrap(err, "scanning client records")
	}
	records := []clients.Client{}
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
		return nil, errors.Wrap(err, "unmarshalling client records")
	}
	return records, nil
}
