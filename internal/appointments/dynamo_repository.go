package appointments

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
	"github.com/google/uuid"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoRepository stores appointment documents in DynamoDB keyed on id.
type DynamoRepository struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ Repository = (*DynamoRepository)(nil)

// NewDynamoRepository builds a repository backed by the provided client.
func NewDynamoRepository(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoRepository {
	if client == nil {
		panic("appointments: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("appointments: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoRepository{client: client, tableName: tableName, logger: logger}
}

func (r *DynamoRepository) Create(ctx context.Context, req *CreateAppointmentRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = StatusPending
	}
	now := time.Now().UTC()
	appt := &Appointment{
		ID:        uuid.NewString(),
		PatientID: req.PatientID,
		MedicalID: req.MedicalID,
		Status:    status,
		Date:      req.Date,
		Time:      req.Time,
		Note:      req.Note,
		CreatedAt: now,
		UpdatedAt: now,
	}
	item, err := attributevalue.MarshalMap(appt)
	if err != nil {
		return nil, fmt.Errorf("appointments: marshal appointment: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: persist appointment: %w", err)
	}
	return appt, nil
}

func (r *DynamoRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       idKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: fetch appointment: %w", err)
	}
	if out.Item == nil {
		return nil, ErrAppointmentNotFound
	}
	var appt Appointment
	if err := attributevalue.UnmarshalMap(out.Item, &appt); err != nil {
		return nil, fmt.Errorf("appointments: decode appointment: %w", err)
	}
	return &appt, nil
}

func (r *DynamoRepository) List(ctx context.Context) ([]*Appointment, error) {
	items, err := r.scanAll(ctx, &dynamodb.ScanInput{TableName: aws.String(r.tableName)})
	if err != nil {
		return nil, fmt.Errorf("appointments: scan appointments: %w", err)
	}
	return decodeAppointments(items)
}

func (r *DynamoRepository) LatestForMedicalID(ctx context.Context, medicalID string) (*Appointment, error) {
	items, err := r.scanAll(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("medicalId = :mid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":mid": &types.AttributeValueMemberS{Value: medicalID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: scan by medical id: %w", err)
	}
	matches, err := decodeAppointments(items)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrAppointmentNotFound
	}
	return matches[0], nil
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

func (r *DynamoRepository) ApplyOutcome(ctx context.Context, id string, outcome Outcome) (*Appointment, error) {
	if !ValidStatus(outcome.Status) {
		return nil, ErrInvalidStatus
	}

	sets := []string{"#status = :status", "updatedAt = :updated"}
	names := map[string]string{"#status": "status"}
	values := map[string]types.AttributeValue{
		":status":  &types.AttributeValueMemberS{Value: string(outcome.Status)},
		":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}
	if outcome.Status == StatusRescheduled {
		if outcome.Date != "" {
			sets = append(sets, "#date = :date")
			names["#date"] = "date"
			values[":date"] = &types.AttributeValueMemberS{Value: outcome.Date}
		}
		if outcome.Time != "" {
			sets = append(sets, "#time = :time")
			names["#time"] = "time"
			values[":time"] = &types.AttributeValueMemberS{Value: outcome.Time}
		}
	}
	if outcome.Note != "" {
		sets = append(sets, "note = :note")
		values[":note"] = &types.AttributeValueMemberS{Value: outcome.Note}
	}

	expr := "SET " + sets[0]
	for _, s := range sets[1:] {
		expr += ", " + s
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       idKey(id),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: apply outcome: %w", err)
	}
	var appt Appointment
	if err := attributevalue.UnmarshalMap(out.Attributes, &appt); err != nil {
		return nil, fmt.Errorf("appointments: decode appointment: %w", err)
	}
	return &appt, nil
}

func (r *DynamoRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 idKey(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrAppointmentNotFound
		}
		return fmt.Errorf("appointments: delete appointment: %w", err)
	}
	return nil
}

func decodeAppointments(items []map[string]types.AttributeValue) ([]*Appointment, error) {
	out := make([]*Appointment, 0, len(items))
	for _, item := range items {
		var appt Appointment
		if err := attributevalue.UnmarshalMap(item, &appt); err != nil {
			return nil, fmt.Errorf("appointments: decode appointment: %w", err)
		}
		out = append(out, &appt)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}
