package calls

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

type mockDynamo struct {
	putInput    *dynamodb.PutItemInput
	getInput    *dynamodb.GetItemInput
	updateInput *dynamodb.UpdateItemInput
	scanInput   *dynamodb.ScanInput

	putErr       error
	updateErr    error
	getOutput    *dynamodb.GetItemOutput
	updateOutput *dynamodb.UpdateItemOutput
	scanItems    []map[string]types.AttributeValue
	scanPages    []*dynamodb.ScanOutput
	scanCalls    int
}

func (m *mockDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInput = in
	return &dynamodb.PutItemOutput{}, m.putErr
}

func (m *mockDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.getInput = in
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

func (m *mockDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	m.scanInput = in
	m.scanCalls++
	if len(m.scanPages) > 0 {
		out := m.scanPages[0]
		m.scanPages = m.scanPages[1:]
		return out, nil
	}
	return &dynamodb.ScanOutput{Items: m.scanItems}, nil
}

func marshalCall(t *testing.T, call *Call) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(call)
	if err != nil {
		t.Fatalf("failed to marshal call: %v", err)
	}
	return item
}

func TestDynamoCreateRejectsDuplicateCallID(t *testing.T) {
	mock := &mockDynamo{putErr: &types.ConditionalCheckFailedException{}}
	repo := NewDynamoRepository(mock, "calls", logging.Default())

	err := repo.Create(context.Background(), &Call{CallID: "call-1", ProviderBotID: "bot-1", PhoneNumber: "+1555"})
	if !errors.Is(err, ErrDuplicateCall) {
		t.Fatalf("expected ErrDuplicateCall, got %v", err)
	}
	if expr := mock.putInput.ConditionExpression; expr == nil || *expr != "attribute_not_exists(callId)" {
		t.Fatalf("expected duplicate guard, got %v", expr)
	}
}

func TestDynamoGetByCallIDNotFound(t *testing.T) {
	mock := &mockDynamo{}
	repo := NewDynamoRepository(mock, "calls", logging.Default())

	if _, err := repo.GetByCallID(context.Background(), "missing"); !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
}

func TestDynamoMarkInProgressGuardsTerminalStates(t *testing.T) {
	existing := &Call{CallID: "call-1", ProviderBotID: "bot-1", PhoneNumber: "+1555",
		Status: StatusCompleted, CreatedAt: time.Now().UTC()}
	mock := &mockDynamo{
		updateErr: &types.ConditionalCheckFailedException{},
		getOutput: &dynamodb.GetItemOutput{Item: marshalCall(t, existing)},
	}
	repo := NewDynamoRepository(mock, "calls", logging.Default())

	err := repo.MarkInProgress(context.Background(), "call-1", json.RawMessage(`{}`))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if cond := mock.updateInput.ConditionExpression; cond == nil ||
		!strings.Contains(*cond, "#status IN (:initiated, :inprogress)") {
		t.Fatalf("expected status guard, got %v", cond)
	}
}

func TestDynamoMarkInProgressNotFound(t *testing.T) {
	mock := &mockDynamo{updateErr: &types.ConditionalCheckFailedException{}}
	repo := NewDynamoRepository(mock, "calls", logging.Default())

	if err := repo.MarkInProgress(context.Background(), "missing", nil); !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
}

func TestDynamoCompletePostCallSingleGuardedUpdate(t *testing.T) {
	final := &Call{CallID: "call-1", ProviderBotID: "bot-1", PhoneNumber: "+1555",
		Status: StatusCompleted, Duration: 90, PostCallDigest: "digest-1"}
	mock := &mockDynamo{
		updateOutput: &dynamodb.UpdateItemOutput{Attributes: marshalCall(t, final)},
	}
	repo := NewDynamoRepository(mock, "calls", logging.Default())

	call, err := repo.CompletePostCall(context.Background(), "call-1", PostCallUpdate{
		Status:     StatusCompleted,
		Duration:   90,
		Transcript: "hello",
		Summary:    "routine",
		Snapshot:   json.RawMessage(`{"status":"completed"}`),
		Digest:     "digest-1",
	})
	if err != nil {
		t.Fatalf("CompletePostCall failed: %v", err)
	}
	if call.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", call.Status)
	}

	cond := *mock.updateInput.ConditionExpression
	if !strings.Contains(cond, "attribute_not_exists(postCallDigest) OR postCallDigest <> :digest") {
		t.Fatalf("expected digest guard, got %q", cond)
	}
	expr := *mock.updateInput.UpdateExpression
	for _, want := range []string{"transcript = :transcript", "summary = :summary", "postCallDigest = :digest", "webhookData.postCall = :snap"} {
		if !strings.Contains(expr, want) {
			t.Fatalf("expected %q in update expression, got %q", want, expr)
		}
	}
}

func TestDynamoCompletePostCallAlreadyApplied(t *testing.T) {
	existing := &Call{CallID: "call-1", ProviderBotID: "bot-1", PhoneNumber: "+1555",
		Status: StatusCompleted, PostCallDigest: "digest-1"}
	mock := &mockDynamo{
		updateErr: &types.ConditionalCheckFailedException{},
		getOutput: &dynamodb.GetItemOutput{Item: marshalCall(t, existing)},
	}
	repo := NewDynamoRepository(mock, "calls", logging.Default())

	_, err := repo.CompletePostCall(context.Background(), "call-1", PostCallUpdate{
		Status: StatusCompleted, Digest: "digest-1",
	})
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestDynamoFindByPhoneAndBotPicksNewestResolved(t *testing.T) {
	older := &Call{CallID: "call-1", ProviderBotID: "bot-1", PhoneNumber: "+1555",
		PatientID: "p1", Status: StatusCompleted, CreatedAt: time.Now().UTC().Add(-time.Hour)}
	newer := &Call{CallID: "call-2", ProviderBotID: "bot-1", PhoneNumber: "+1555",
		PatientID: "p1", Status: StatusCompleted, CreatedAt: time.Now().UTC()}

	mock := &mockDynamo{scanItems: []map[string]types.AttributeValue{
		marshalCall(t, older),
		marshalCall(t, newer),
	}}
	repo := NewDynamoRepository(mock, "calls", logging.Default())

	match, err := repo.FindByPhoneAndBot(context.Background(), "+1555", "bot-1")
	if err != nil {
		t.Fatalf("FindByPhoneAndBot failed: %v", err)
	}
	if match.CallID != "call-2" {
		t.Fatalf("expected newest call, got %s", match.CallID)
	}
	if !strings.Contains(*mock.scanInput.FilterExpression, "attribute_exists(patientId)") {
		t.Fatal("expected resolved-patient filter")
	}
}

// A prior call past the first 1 MB scan page must still be found, and the
// newest-call pick has to consider matches from every page.
func TestDynamoFindByPhoneAndBotFollowsScanCursor(t *testing.T) {
	older := &Call{CallID: "call-1", ProviderBotID: "bot-1", PhoneNumber: "+1555",
		PatientID: "p1", Status: StatusCompleted, CreatedAt: time.Now().UTC().Add(-time.Hour)}
	newer := &Call{CallID: "call-2", ProviderBotID: "bot-1", PhoneNumber: "+1555",
		PatientID: "p1", Status: StatusCompleted, CreatedAt: time.Now().UTC()}

	cursor := map[string]types.AttributeValue{
		"callId": &types.AttributeValueMemberS{Value: "call-1"},
	}
	mock := &mockDynamo{scanPages: []*dynamodb.ScanOutput{
		{Items: []map[string]types.AttributeValue{marshalCall(t, older)}, LastEvaluatedKey: cursor},
		{Items: []map[string]types.AttributeValue{marshalCall(t, newer)}},
	}}
	repo := NewDynamoRepository(mock, "calls", logging.Default())

	match, err := repo.FindByPhoneAndBot(context.Background(), "+1555", "bot-1")
	if err != nil {
		t.Fatalf("FindByPhoneAndBot failed: %v", err)
	}
	if match.CallID != "call-2" {
		t.Fatalf("expected newest call across pages, got %s", match.CallID)
	}
	if mock.scanCalls != 2 {
		t.Fatalf("expected two scan pages, got %d", mock.scanCalls)
	}
	if mock.scanInput.ExclusiveStartKey == nil {
		t.Fatal("expected second page to resume from the cursor")
	}
}

func TestDynamoListBuildsFilters(t *testing.T) {
	mock := &mockDynamo{}
	repo := NewDynamoRepository(mock, "calls", logging.Default())

	if _, err := repo.List(context.Background(), Filter{BotID: "bot-1", Status: StatusCompleted}); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	expr := *mock.scanInput.FilterExpression
	if !strings.Contains(expr, "providerBotId = :bot") || !strings.Contains(expr, "#status = :status") {
		t.Fatalf("expected both filters, got %q", expr)
	}

	mock.scanInput = nil
	if _, err := repo.List(context.Background(), Filter{}); err != nil {
		t.Fatalf("unfiltered List failed: %v", err)
	}
	if mock.scanInput.FilterExpression != nil {
		t.Fatal("expected no filter expression for empty filter")
	}
}
