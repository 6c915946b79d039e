package calls

import (
	"context"
	"encoding/json"
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
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoRepository stores call documents in DynamoDB keyed on callId. Every
// mutation is a single conditional write so retried webhook deliveries never
// race each other.
type DynamoRepository struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ Repository = (*DynamoRepository)(nil)

// NewDynamoRepository builds a repository backed by the provided client.
func NewDynamoRepository(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoRepository {
	if client == nil {
		panic("calls: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("calls: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoRepository{client: client, tableName: tableName, logger: logger}
}

func (r *DynamoRepository) Create(ctx context.Context, call *Call) error {
	if err := call.Validate(); err != nil {
		return err
	}
	if call.Status == "" {
		call.Status = StatusInitiated
	}
	now := time.Now().UTC()
	call.CreatedAt = now
	call.UpdatedAt = now

	item, err := attributevalue.MarshalMap(call)
	if err != nil {
		return fmt.Errorf("calls: marshal call: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(callId)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrDuplicateCall
		}
		return fmt.Errorf("calls: persist call: %w", err)
	}
	return nil
}

func (r *DynamoRepository) GetByCallID(ctx context.Context, callID string) (*Call, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       callKey(callID),
	})
	if err != nil {
		return nil, fmt.Errorf("calls: fetch call: %w", err)
	}
	if out.Item == nil {
		return nil, ErrCallNotFound
	}
	var call Call
	if err := attributevalue.UnmarshalMap(out.Item, &call); err != nil {
		return nil, fmt.Errorf("calls: decode call: %w", err)
	}
	return &call, nil
}

func (r *DynamoRepository) FindByPhoneAndBot(ctx context.Context, phone, botID string) (*Call, error) {
	items, err := r.scanAll(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("phoneNumber = :phone AND providerBotId = :bot AND attribute_exists(patientId)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":phone": &types.AttributeValueMemberS{Value: phone},
			":bot":   &types.AttributeValueMemberS{Value: botID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calls: scan by phone and bot: %w", err)
	}
	matches, err := decodeCalls(items)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrCallNotFound
	}
	return matches[0], nil
}

func (r *DynamoRepository) List(ctx context.Context, filter Filter) ([]*Call, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(r.tableName)}

	var exprs []string
	values := map[string]types.AttributeValue{}
	names := map[string]string{}
	if filter.BotID != "" {
		exprs = append(exprs, "providerBotId = :bot")
		values[":bot"] = &types.AttributeValueMemberS{Value: filter.BotID}
	}
	if filter.Status != "" {
		exprs = append(exprs, "#status = :status")
		names["#status"] = "status"
		values[":status"] = &types.AttributeValueMemberS{Value: string(filter.Status)}
	}
	if len(exprs) > 0 {
		expr := exprs[0]
		for _, e := range exprs[1:] {
			expr += " AND " + e
		}
		input.FilterExpression = aws.String(expr)
		input.ExpressionAttributeValues = values
		if len(names) > 0 {
			input.ExpressionAttributeNames = names
		}
	}

	items, err := r.scanAll(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("calls: scan calls: %w", err)
	}
	return decodeCalls(items)
}

// scanAll follows LastEvaluatedKey until the table is exhausted. Filtered
// scans return partial pages once results pass 1 MB, so stopping after the
// first page would silently drop matches.
func (r *DynamoRepository) scanAll(ctx context.Context, input *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, input)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (r *DynamoRepository) MarkInProgress(ctx context.Context, callID string, snapshot json.RawMessage) error {
	expr := "SET #status = :inprogress, updatedAt = :updated"
	values := map[string]types.AttributeValue{
		":inprogress": &types.AttributeValueMemberS{Value: string(StatusInProgress)},
		":initiated":  &types.AttributeValueMemberS{Value: string(StatusInitiated)},
		":updated":    &types.AttributeValueMemberS{Value: nowString()},
	}
	if len(snapshot) > 0 {
		expr += ", webhookData.functionCall = :snap"
		values[":snap"] = &types.AttributeValueMemberB{Value: snapshot}
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       callKey(callID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(callId) AND #status IN (:initiated, :inprogress)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return r.classifyConditionFailure(ctx, callID)
		}
		return fmt.Errorf("calls: mark in progress: %w", err)
	}
	return nil
}

func (r *DynamoRepository) AttachPatient(ctx context.Context, callID, patientID string, extracted ExtractedData) error {
	ed, err := attributevalue.Marshal(extracted)
	if err != nil {
		return fmt.Errorf("calls: marshal extracted data: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              callKey(callID),
		UpdateExpression: aws.String("SET patientId = :pid, extractedData = :extracted, updatedAt = :updated"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid":       &types.AttributeValueMemberS{Value: patientID},
			":extracted": ed,
			":updated":   &types.AttributeValueMemberS{Value: nowString()},
		},
		ConditionExpression: aws.String("attribute_exists(callId)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrCallNotFound
		}
		return fmt.Errorf("calls: attach patient: %w", err)
	}
	return nil
}

func (r *DynamoRepository) CompletePostCall(ctx context.Context, callID string, upd PostCallUpdate) (*Call, error) {
	if !Terminal(upd.Status) {
		return nil, ErrInvalidStatus
	}
	extracted, err := attributevalue.Marshal(upd.ExtractedData)
	if err != nil {
		return nil, fmt.Errorf("calls: marshal extracted data: %w", err)
	}
	metadata, err := attributevalue.Marshal(upd.Metadata)
	if err != nil {
		return nil, fmt.Errorf("calls: marshal metadata: %w", err)
	}

	expr := "SET #status = :status, #duration = :duration, transcript = :transcript, " +
		"summary = :summary, extractedData = :extracted, metadata = :metadata, " +
		"postCallDigest = :digest, updatedAt = :updated"
	values := map[string]types.AttributeValue{
		":status":     &types.AttributeValueMemberS{Value: string(upd.Status)},
		":duration":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", upd.Duration)},
		":transcript": &types.AttributeValueMemberS{Value: upd.Transcript},
		":summary":    &types.AttributeValueMemberS{Value: upd.Summary},
		":extracted":  extracted,
		":metadata":   metadata,
		":digest":     &types.AttributeValueMemberS{Value: upd.Digest},
		":updated":    &types.AttributeValueMemberS{Value: nowString()},
	}
	if len(upd.Snapshot) > 0 {
		expr += ", webhookData.postCall = :snap"
		values[":snap"] = &types.AttributeValueMemberB{Value: upd.Snapshot}
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       callKey(callID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  map[string]string{"#status": "status", "#duration": "duration"},
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(callId) AND (attribute_not_exists(postCallDigest) OR postCallDigest <> :digest)"),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			if _, getErr := r.GetByCallID(ctx, callID); errors.Is(getErr, ErrCallNotFound) {
				return nil, ErrCallNotFound
			}
			return nil, ErrAlreadyCompleted
		}
		return nil, fmt.Errorf("calls: complete post-call: %w", err)
	}
	var call Call
	if err := attributevalue.UnmarshalMap(out.Attributes, &call); err != nil {
		return nil, fmt.Errorf("calls: decode call: %w", err)
	}
	return &call, nil
}

// classifyConditionFailure tells a missing item apart from a call that is
// already terminal.
func (r *DynamoRepository) classifyConditionFailure(ctx context.Context, callID string) error {
	if _, err := r.GetByCallID(ctx, callID); errors.Is(err, ErrCallNotFound) {
		return ErrCallNotFound
	}
	return ErrInvalidTransition
}

func decodeCalls(items []map[string]types.AttributeValue) ([]*Call, error) {
	out := make([]*Call, 0, len(items))
	for _, item := range items {
		var call Call
		if err := attributevalue.UnmarshalMap(item, &call); err != nil {
			return nil, fmt.Errorf("calls: decode call: %w", err)
		}
		out = append(out, &call)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func callKey(callID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"callId": &types.AttributeValueMemberS{Value: callID},
	}
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
