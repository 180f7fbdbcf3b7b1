package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-digest/models"
)

// fakeDynamo emulates the conditional put and a paginated, filtered scan.
type fakeDynamo struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	pageSize int
	putErr   error
	scans    int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue), pageSize: 2}
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.putErr != nil {
		return nil, f.putErr
	}
	id := in.Item["id"].(*types.AttributeValueMemberS).Value
	if _, exists := f.items[id]; exists && aws.ToString(in.ConditionExpression) == "attribute_not_exists(id)" {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++

	ids := make([]string, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := 0
	if k, ok := in.ExclusiveStartKey["id"].(*types.AttributeValueMemberS); ok {
		start = sort.SearchStrings(ids, k.Value) + 1
	}
	end := start + f.pageSize
	if end > len(ids) {
		end = len(ids)
	}

	field := in.ExpressionAttributeNames["#u"]
	cutoff := in.ExpressionAttributeValues[":t"].(*types.AttributeValueMemberS).Value

	out := &dynamodb.ScanOutput{}
	for _, id := range ids[start:end] {
		item := f.items[id]
		if item[field].(*types.AttributeValueMemberS).Value >= cutoff {
			out.Items = append(out.Items, item)
		}
	}
	if end < len(ids) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: ids[end-1]}}
	}
	return out, nil
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   in.TableName,
		TableStatus: types.TableStatusActive,
	}}, nil
}

func TestDynamoStoreConditionalInsert(t *testing.T) {
	fake := newFakeDynamo()
	store := NewDynamoStore(fake, "listings")
	l := listing("https://example.com/imovel/1", 2100, time.Now())

	first, err := store.InsertIfAbsent(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, models.Inserted, first)

	second, err := store.InsertIfAbsent(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, models.AlreadyExists, second)

	assert.Len(t, fake.items, 1)
}

func TestDynamoStoreInsertError(t *testing.T) {
	fake := newFakeDynamo()
	fake.putErr = errors.New("ProvisionedThroughputExceededException")
	store := NewDynamoStore(fake, "listings")

	_, err := store.InsertIfAbsent(context.Background(), listing("https://example.com/1", 100, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ProvisionedThroughputExceeded")
}

func TestDynamoStoreScanSincePaginates(t *testing.T) {
	fake := newFakeDynamo()
	store := NewDynamoStore(fake, "listings")
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i, age := range []time.Duration{time.Hour, 2 * time.Hour, 3 * time.Hour, 10 * time.Hour, 20 * time.Hour} {
		id := "https://example.com/" + string(rune('a'+i))
		_, err := store.InsertIfAbsent(ctx, listing(id, float64(1000+i), now.Add(-age)))
		require.NoError(t, err)
	}

	got, err := store.ScanSince(ctx, now.Add(-8*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 3, fake.scans, "five items in pages of two need three scan calls")

	for _, l := range got {
		assert.False(t, l.LastUpdatedAt.Before(now.Add(-8*time.Hour)))
		assert.Equal(t, "70 m²", l.Area)
		assert.Equal(t, 2, l.Rooms)
	}
}

func TestDynamoItemRoundTripKeepsTimestamps(t *testing.T) {
	ts := time.Date(2026, 10, 15, 8, 30, 0, 123456000, time.UTC)
	l := listing("https://example.com/1", 2100.5, ts)

	got, err := itemToListing(listingToItem(l))
	require.NoError(t, err)
	assert.True(t, got.LastUpdatedAt.Equal(ts))
	assert.Equal(t, 2100.5, got.Price)
}

func TestDynamoStorePing(t *testing.T) {
	store := NewDynamoStore(newFakeDynamo(), "listings")
	assert.NoError(t, store.Ping(context.Background()))
}
