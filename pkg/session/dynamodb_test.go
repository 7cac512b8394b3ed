package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"comitebot/pkg/action"
)

type fakeDynamo struct {
	mu        sync.Mutex
	items     map[string]map[string]types.AttributeValue
	putErr    error
	deleteErr error
	lastPut   *dynamodb.PutItemInput
	lastDel   *dynamodb.DeleteItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	pk := in.Item["PK"].(*types.AttributeValueMemberS).Value
	f.items[pk] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastDel = in
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
	old, ok := f.items[pk]
	delete(f.items, pk)
	if !ok || in.ReturnValues != types.ReturnValueAllOld {
		return &dynamodb.DeleteItemOutput{}, nil
	}
	return &dynamodb.DeleteItemOutput{Attributes: old}, nil
}

func mustNewDynamoStore(t *testing.T, db *fakeDynamo, opts ...Option) *DynamoDBStore {
	t.Helper()
	store, err := NewDynamoDBStore(db, "sessions", opts...)
	require.NoError(t, err)
	return store
}

func TestNewDynamoDBStoreValidatesArguments(t *testing.T) {
	_, err := NewDynamoDBStore(nil, "sessions")
	require.Error(t, err)

	_, err = NewDynamoDBStore(newFakeDynamo(), "  ")
	require.Error(t, err)
}

func TestDynamoDBStoreOpenWritesItemWithTTL(t *testing.T) {
	clock := newFakeClock()
	db := newFakeDynamo()
	store := mustNewDynamoStore(t, db, WithTTL(time.Hour), WithClock(clock.Now))

	_, err := store.Open(context.Background(), 55, action.Suggestion)
	require.NoError(t, err)

	require.NotNil(t, db.lastPut)
	require.Equal(t, "sessions", *db.lastPut.TableName)
	item := db.lastPut.Item
	require.Equal(t, "USER#55", item["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "sugerencia", item["action"].(*types.AttributeValueMemberS).Value)

	ttl, ok := item["ttl"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	require.Equal(t, "1772359200", ttl.Value)
}

func TestDynamoDBStoreOpenWithoutTTLOmitsAttribute(t *testing.T) {
	db := newFakeDynamo()
	store := mustNewDynamoStore(t, db)

	_, err := store.Open(context.Background(), 55, action.Query)
	require.NoError(t, err)

	_, ok := db.lastPut.Item["ttl"]
	require.False(t, ok)
}

func TestDynamoDBStoreTakeConsumesOnce(t *testing.T) {
	ctx := context.Background()
	db := newFakeDynamo()
	store := mustNewDynamoStore(t, db)

	_, err := store.Open(ctx, 3, action.Query)
	require.NoError(t, err)
	_, err = store.Open(ctx, 3, action.Suggestion)
	require.NoError(t, err)

	sess, found, err := store.Take(ctx, 3)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, action.Suggestion, sess.Action)
	require.Equal(t, types.ReturnValueAllOld, db.lastDel.ReturnValues)

	_, found, err = store.Take(ctx, 3)
	require.NoError(t, err)
	require.False(t, found)
}

func TestDynamoDBStoreTakeIgnoresExpiredItem(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	db := newFakeDynamo()
	store := mustNewDynamoStore(t, db, WithTTL(time.Minute), WithClock(clock.Now))

	_, err := store.Open(ctx, 3, action.Query)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	_, found, err := store.Take(ctx, 3)
	require.NoError(t, err)
	require.False(t, found)
}

func TestDynamoDBStoreClear(t *testing.T) {
	ctx := context.Background()
	store := mustNewDynamoStore(t, newFakeDynamo())

	existed, err := store.Clear(ctx, 8)
	require.NoError(t, err)
	require.False(t, existed)

	_, err = store.Open(ctx, 8, action.Query)
	require.NoError(t, err)

	existed, err = store.Clear(ctx, 8)
	require.NoError(t, err)
	require.True(t, existed)
}

func TestDynamoDBStorePropagatesErrors(t *testing.T) {
	ctx := context.Background()
	db := newFakeDynamo()
	db.putErr = errors.New("throttled")
	db.deleteErr = errors.New("unavailable")
	store := mustNewDynamoStore(t, db)

	_, err := store.Open(ctx, 1, action.Query)
	require.ErrorContains(t, err, "throttled")

	_, _, err = store.Take(ctx, 1)
	require.ErrorContains(t, err, "unavailable")

	_, err = store.Clear(ctx, 1)
	require.ErrorContains(t, err, "unavailable")
}

func TestDynamoDBStoreMalformedItem(t *testing.T) {
	ctx := context.Background()
	db := newFakeDynamo()
	db.items[userPK(4)] = map[string]types.AttributeValue{
		"PK":     &types.AttributeValueMemberS{Value: userPK(4)},
		"action": &types.AttributeValueMemberN{Value: "1"},
	}
	store := mustNewDynamoStore(t, db)

	_, _, err := store.Take(ctx, 4)
	require.ErrorContains(t, err, "not a string")
}
