package patients

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
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

// DynamoRepository stores patient documents in DynamoDB keyed on medicalId.
type DynamoRepository struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ Repository = (*DynamoRepository)(nil)

// NewDynamoRepository builds a repository backed by the provided client.
func NewDynamoRepository(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoRepository {
	if client == nil {
		panic("patients: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("patients: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoRepository{client: client, tableName: tableName, logger: logger}
}

func (r *DynamoRepository) Create(ctx context.Context, patient *Patient) error {
	now := time.Now().UTC()
	if patient.CreatedAt.IsZero() {
		patient.CreatedAt = now
	}
	patient.UpdatedAt = now

	item, err := marshalPatient(patient)
	if err != nil {
		return err
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(medicalId)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrDuplicateMedicalID
		}
		return fmt.Errorf("patients: persist patient: %w", err)
	}
	return nil
}

func (r *DynamoRepository) GetByMedicalID(ctx context.Context, medicalID string) (*Patient, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       medicalIDKey(medicalID),
	})
	if err != nil {
		return nil, fmt.Errorf("patients: fetch patient: %w", err)
	}
	if out.Item == nil {
		return nil, ErrPatientNotFound
	}
	return decodePatient(out.Item)
}

// GetByPhone follows the scan cursor so a match beyond the first 1 MB
// page is still found. A scan limit would not help here: DynamoDB
// applies Limit before the filter expression.
func (r *DynamoRepository) GetByPhone(ctx context.Context, phone string) (*Patient, error) {
	input := &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("phone = :phone"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":phone": &types.AttributeValueMemberS{Value: phone},
		},
	}
	for {
		out, err := r.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("patients: scan by phone: %w", err)
		}
		if len(out.Items) > 0 {
			return decodePatient(out.Items[0])
		}
		if out.LastEvaluatedKey == nil {
			return nil, ErrPatientNotFound
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (r *DynamoRepository) List(ctx context.Context) ([]*Patient, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	}
	var patientsOut []*Patient
	for {
		out, err := r.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("patients: scan patients: %w", err)
		}
		for _, item := range out.Items {
			patient, err := decodePatient(item)
			if err != nil {
				return nil, err
			}
			patientsOut = append(patientsOut, patient)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sort.Slice(patientsOut, func(i, j int) bool {
		return patientsOut[i].CreatedAt.After(patientsOut[j].CreatedAt)
	})
	return patientsOut, nil
}

func (r *DynamoRepository) Update(ctx context.Context, medicalID string, req *UpdatePatientRequest) (*Patient, error) {
	sets := []string{"updatedAt = :updated"}
	var removes []string
	values := map[string]types.AttributeValue{
		":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}

	if req.Email != nil {
		sets = append(sets, "email = :email")
		values[":email"] = &types.AttributeValueMemberS{Value: *req.Email}
	}
	if req.Phone != nil {
		sets = append(sets, "phone = :phone")
		values[":phone"] = &types.AttributeValueMemberS{Value: *req.Phone}
	}
	if req.Address != nil {
		attr, err := attributevalue.Marshal(*req.Address)
		if err != nil {
			return nil, fmt.Errorf("patients: marshal address: %w", err)
		}
		sets = append(sets, "address = :address")
		values[":address"] = attr
	}
	if req.Insurance != nil {
		attr, err := attributevalue.Marshal(*req.Insurance)
		if err != nil {
			return nil, fmt.Errorf("patients: marshal insurance: %w", err)
		}
		sets = append(sets, "insurance = :insurance")
		values[":insurance"] = attr
	}
	if req.MedicalHistory != nil {
		attr, err := attributevalue.Marshal(*req.MedicalHistory)
		if err != nil {
			return nil, fmt.Errorf("patients: marshal medical history: %w", err)
		}
		// Replacing the history also replaces the hoisted allergy set.
		if history, ok := attr.(*types.AttributeValueMemberM); ok {
			if set, present := history.Value[allergiesAttr]; present {
				sets = append(sets, "allergies = :allergies")
				values[":allergies"] = set
				delete(history.Value, allergiesAttr)
			} else {
				removes = append(removes, allergiesAttr)
			}
		}
		sets = append(sets, "medicalHistory = :history")
		values[":history"] = attr
	}

	expression := "SET " + strings.Join(sets, ", ")
	if len(removes) > 0 {
		expression += " REMOVE " + strings.Join(removes, ", ")
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       medicalIDKey(medicalID),
		UpdateExpression:          aws.String(expression),
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(medicalId)"),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: update patient: %w", err)
	}
	return decodePatient(out.Attributes)
}

func (r *DynamoRepository) Delete(ctx context.Context, medicalID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 medicalIDKey(medicalID),
		ConditionExpression: aws.String("attribute_exists(medicalId)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrPatientNotFound
		}
		return fmt.Errorf("patients: delete patient: %w", err)
	}
	return nil
}

// AppendNote stores notes as a string set, so re-adding the same note during
// a webhook retry is a no-op at the storage layer.
func (r *DynamoRepository) AppendNote(ctx context.Context, medicalID, note string) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil
	}
	return r.addToSet(ctx, medicalID, "ADD notes :entry SET updatedAt = :updated", note)
}

// AddAllergy unions the allergy into the patient's allergy set. The set
// lives in a top-level attribute because ADD only accepts top-level
// paths; decodePatient folds it back under medicalHistory.
func (r *DynamoRepository) AddAllergy(ctx context.Context, medicalID, allergy string) error {
	allergy = normalizeAllergy(allergy)
	if allergy == "" {
		return nil
	}
	return r.addToSet(ctx, medicalID, "ADD allergies :entry SET updatedAt = :updated", allergy)
}

func (r *DynamoRepository) TouchLastVisit(ctx context.Context, medicalID string, at time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              medicalIDKey(medicalID),
		UpdateExpression: aws.String("SET lastVisit = :visit, updatedAt = :updated"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":visit":   &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339Nano)},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_exists(medicalId)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrPatientNotFound
		}
		return fmt.Errorf("patients: touch last visit: %w", err)
	}
	return nil
}

func (r *DynamoRepository) addToSet(ctx context.Context, medicalID, expression, entry string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              medicalIDKey(medicalID),
		UpdateExpression: aws.String(expression),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":entry":   &types.AttributeValueMemberSS{Value: []string{entry}},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_exists(medicalId)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrPatientNotFound
		}
		return fmt.Errorf("patients: update set attribute: %w", err)
	}
	return nil
}

func medicalIDKey(medicalID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"medicalId": &types.AttributeValueMemberS{Value: medicalID},
	}
}

// allergiesAttr is where the table stores the allergy string set. It is
// top-level rather than inside the medicalHistory map because ADD, the
// action AddAllergy depends on for set union, rejects nested paths.
// marshalPatient and decodePatient translate between the stored shape
// and MedicalHistory.Allergies so callers never see the difference.
const allergiesAttr = "allergies"

func marshalPatient(patient *Patient) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(patient)
	if err != nil {
		return nil, fmt.Errorf("patients: marshal patient: %w", err)
	}
	if history, ok := item["medicalHistory"].(*types.AttributeValueMemberM); ok {
		if set, present := history.Value[allergiesAttr]; present {
			item[allergiesAttr] = set
			delete(history.Value, allergiesAttr)
		}
	}
	return item, nil
}

func decodePatient(item map[string]types.AttributeValue) (*Patient, error) {
	if set, present := item[allergiesAttr]; present {
		history, ok := item["medicalHistory"].(*types.AttributeValueMemberM)
		if !ok {
			history = &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}}
			item["medicalHistory"] = history
		}
		history.Value[allergiesAttr] = set
		delete(item, allergiesAttr)
	}
	var patient Patient
	if err := attributevalue.UnmarshalMap(item, &patient); err != nil {
		return nil, fmt.Errorf("patients: decode patient: %w", err)
	}
	return &patient, nil
}
