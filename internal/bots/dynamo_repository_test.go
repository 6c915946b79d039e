package bots

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/medintake/intake-ai-platform/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDynamo struct {
	putInput    *dynamodb.PutItemInput
	updateInput *dynamodb.UpdateItemInput
	deleteInput *dynamodb.DeleteItemInput

	putErr       error
	updateErr    error
	deleteErr    error
	getOutput    *dynamodb.GetItemOutput
	updateOutput *dynamodb.UpdateItemOutput
	scanItems    []map[string]types.AttributeValue
}

func (m *mockDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInput = in
	return &dynamodb.PutItemOutput{}, m.putErr
}

func (m *mockDynamo) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getOutput != nil {
		return m.getOutput, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.updateInput = in
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if m.updateOutput != nil {
		return m.updateOutput, nil
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.deleteInput = in
	return &dynamodb.DeleteItemOutput{}, m.deleteErr
}

func (m *mockDynamo) Scan(_ context.Context, _ *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return &dynamodb.ScanOutput{Items: m.scanItems}, nil
}

func marshalBot(t *testing.T, bot *Bot) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(bot)
	require.NoError(t, err)
	return item
}

func TestDynamoCreateGuardsProviderID(t *testing.T) {
	mock := &mockDynamo{}
	repo := NewDynamoRepository(mock, "bots", logging.Default())

	err := repo.Create(context.Background(), &Bot{ID: "local-1", ProviderID: "bot-1", Name: "Intake"})
	require.NoError(t, err)
	assert.Equal(t, "attribute_not_exists(providerId)", *mock.putInput.ConditionExpression)
}

func TestDynamoCreateDuplicate(t *testing.T) {
	mock := &mockDynamo{putErr: &types.ConditionalCheckFailedException{}}
	repo := NewDynamoRepository(mock, "bots", logging.Default())

	err := repo.Create(context.Background(), &Bot{ID: "local-1", ProviderID: "bot-1", Name: "Intake"})
	assert.ErrorIs(t, err, ErrDuplicateProviderID)
}

func TestDynamoUpsertIsUnconditional(t *testing.T) {
	mock := &mockDynamo{}
	repo := NewDynamoRepository(mock, "bots", logging.Default())

	require.NoError(t, repo.Upsert(context.Background(), &Bot{ID: "local-1", ProviderID: "bot-1", Name: "Intake"}))
	assert.Nil(t, mock.putInput.ConditionExpression)
}

func TestDynamoUpdateBuildsPartialExpression(t *testing.T) {
	updated := &Bot{ID: "local-1", ProviderID: "bot-1", Name: "Front Desk", IsActive: false}
	mock := &mockDynamo{updateOutput: &dynamodb.UpdateItemOutput{Attributes: marshalBot(t, updated)}}
	repo := NewDynamoRepository(mock, "bots", logging.Default())

	name := "Front Desk"
	active := false
	got, err := repo.Update(context.Background(), "bot-1", &UpdateBotRequest{Name: &name, IsActive: &active})
	require.NoError(t, err)

	expr := *mock.updateInput.UpdateExpression
	assert.Contains(t, expr, "#name = :name")
	assert.Contains(t, expr, "isActive = :isActive")
	assert.NotContains(t, expr, "prompt")
	assert.Equal(t, "attribute_exists(providerId)", *mock.updateInput.ConditionExpression)
	assert.Equal(t, "Front Desk", got.Name)
}

func TestDynamoUpdateMissingBot(t *testing.T) {
	mock := &mockDynamo{updateErr: &types.ConditionalCheckFailedException{}}
	repo := NewDynamoRepository(mock, "bots", logging.Default())

	_, err := repo.Update(context.Background(), "nope", &UpdateBotRequest{})
	assert.ErrorIs(t, err, ErrBotNotFound)
}

func TestDynamoDeleteMissingBot(t *testing.T) {
	mock := &mockDynamo{deleteErr: &types.ConditionalCheckFailedException{}}
	repo := NewDynamoRepository(mock, "bots", logging.Default())

	assert.ErrorIs(t, repo.Delete(context.Background(), "nope"), ErrBotNotFound)
}
