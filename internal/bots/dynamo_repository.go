package bots

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoRepository stores the bot mirror in DynamoDB keyed on providerId.
type DynamoRepository struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ Repository = (*DynamoRepository)(nil)

// NewDynamoRepository builds a repository backed by the provided client.
func NewDynamoRepository(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoRepository {
	if client == nil {
		panic("bots: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("bots: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoRepository{client: client, tableName: tableName, logger: logger}
}

func (r *DynamoRepository) Create(ctx context.Context, bot *Bot) error {
	now := time.Now().UTC()
	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = now
	}
	bot.UpdatedAt = now
	item, err := attributevalue.MarshalMap(bot)
	if err != nil {
		return fmt.Errorf("bots: marshal bot: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(providerId)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrDuplicateProviderID
		}
		return fmt.Errorf("bots: persist bot: %w", err)
	}
	return nil
}

func (r *DynamoRepository) GetByProviderID(ctx context.Context, providerID string) (*Bot, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       providerKey(providerID),
	})
	if err != nil {
		return nil, fmt.Errorf("bots: fetch bot: %w", err)
	}
	if out.Item == nil {
		return nil, ErrBotNotFound
	}
	var bot Bot
	if err := attributevalue.UnmarshalMap(out.Item, &bot); err != nil {
		return nil, fmt.Errorf("bots: decode bot: %w", err)
	}
	return &bot, nil
}

func (r *DynamoRepository) List(ctx context.Context) ([]*Bot, error) {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String(r.tableName)})
	if err != nil {
		return nil, fmt.Errorf("bots: scan bots: %w", err)
	}
	bots := make([]*Bot, 0, len(out.Items))
	for _, item := range out.Items {
		var bot Bot
		if err := attributevalue.UnmarshalMap(item, &bot); err != nil {
			return nil, fmt.Errorf("bots: decode bot: %w", err)
		}
		bots = append(bots, &bot)
	}
	sort.Slice(bots, func(i, j int) bool {
		return bots[i].CreatedAt.After(bots[j].CreatedAt)
	})
	return bots, nil
}

func (r *DynamoRepository) Upsert(ctx context.Context, bot *Bot) error {
	now := time.Now().UTC()
	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = now
	}
	bot.UpdatedAt = now
	item, err := attributevalue.MarshalMap(bot)
	if err != nil {
		return fmt.Errorf("bots: marshal bot: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("bots: upsert bot: %w", err)
	}
	return nil
}

func (r *DynamoRepository) Update(ctx context.Context, providerID string, req *UpdateBotRequest) (*Bot, error) {
	sets := []string{"updatedAt = :updated"}
	names := map[string]string{}
	values := map[string]types.AttributeValue{
		":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}

	if req.Name != nil {
		sets = append(sets, "#name = :name")
		names["#name"] = "name"
		values[":name"] = &types.AttributeValueMemberS{Value: *req.Name}
	}
	if req.Description != nil {
		sets = append(sets, "description = :description")
		values[":description"] = &types.AttributeValueMemberS{Value: *req.Description}
	}
	if req.Prompt != nil {
		sets = append(sets, "prompt = :prompt")
		values[":prompt"] = &types.AttributeValueMemberS{Value: *req.Prompt}
	}
	if req.FirstMessage != nil {
		sets = append(sets, "firstMessage = :firstMessage")
		values[":firstMessage"] = &types.AttributeValueMemberS{Value: *req.FirstMessage}
	}
	if req.IsActive != nil {
		sets = append(sets, "isActive = :isActive")
		values[":isActive"] = &types.AttributeValueMemberBOOL{Value: *req.IsActive}
	}
	if req.Settings != nil {
		av, err := attributevalue.Marshal(*req.Settings)
		if err != nil {
			return nil, fmt.Errorf("bots: marshal settings: %w", err)
		}
		sets = append(sets, "settings = :settings")
		values[":settings"] = av
	}
	if req.PostCallSettings != nil {
		av, err := attributevalue.Marshal(*req.PostCallSettings)
		if err != nil {
			return nil, fmt.Errorf("bots: marshal post-call settings: %w", err)
		}
		sets = append(sets, "postCallSettings = :postCallSettings")
		values[":postCallSettings"] = av
	}

	expr := "SET " + sets[0]
	for _, s := range sets[1:] {
		expr += ", " + s
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       providerKey(providerID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(providerId)"),
		ReturnValues:              types.ReturnValueAllNew,
	}
	if len(names) > 0 {
		input.ExpressionAttributeNames = names
	}

	out, err := r.client.UpdateItem(ctx, input)
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, ErrBotNotFound
		}
		return nil, fmt.Errorf("bots: update bot: %w", err)
	}
	var bot Bot
	if err := attributevalue.UnmarshalMap(out.Attributes, &bot); err != nil {
		return nil, fmt.Errorf("bots: decode bot: %w", err)
	}
	return &bot, nil
}

func (r *DynamoRepository) Delete(ctx context.Context, providerID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 providerKey(providerID),
		ConditionExpression: aws.String("attribute_exists(providerId)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrBotNotFound
		}
		return fmt.Errorf("bots: delete bot: %w", err)
	}
	return nil
}

func providerKey(providerID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"providerId": &types.AttributeValueMemberS{Value: providerID},
	}
}
