package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"rental-digest/models"
)

// DynamoAPI is the subset of the DynamoDB client the store needs.
type DynamoAPI interface {
	dynamodb.ScanAPIClient
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoStore persists listings in a DynamoDB table whose partition key is
// "id". Timestamps are fixed-width UTC strings so the scan filter can compare
// them lexically.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

// NewDynamoStore wraps a DynamoDB client for the given table.
func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (d *DynamoStore) InsertIfAbsent(ctx context.Context, l *models.Listing) (models.InsertOutcome, error) {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.table),
		Item:                listingToItem(l),
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return models.AlreadyExists, nil
		}
		return 0, fmt.Errorf("dynamodb: put item: %w", err)
	}
	return models.Inserted, nil
}

func (d *DynamoStore) ScanSince(ctx context.Context, cutoff time.Time) ([]*models.Listing, error) {
	p := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName:                aws.String(d.table),
		FilterExpression:         aws.String("#u >= :t"),
		ExpressionAttributeNames: map[string]string{"#u": "last_updated_at"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberS{Value: cutoff.UTC().Format(models.TimestampLayout)},
		},
	})

	var listings []*models.Listing
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb: scan: %w", err)
		}
		for _, item := range page.Items {
			l, err := itemToListing(item)
			if err != nil {
				return nil, fmt.Errorf("dynamodb: decode item: %w", err)
			}
			listings = append(listings, l)
		}
	}
	return listings, nil
}

// Ping checks that the table exists and is reachable with the current credentials.
func (d *DynamoStore) Ping(ctx context.Context) error {
	out, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)})
	if err != nil {
		return fmt.Errorf("dynamodb: describe table %q: %w", d.table, err)
	}
	if out.Table != nil && out.Table.TableStatus != types.TableStatusActive {
		return fmt.Errorf("dynamodb: table %q is %s", d.table, out.Table.TableStatus)
	}
	return nil
}

func (d *DynamoStore) Close() error { return nil }

func listingToItem(l *models.Listing) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id":              &types.AttributeValueMemberS{Value: l.ID},
		"source":          &types.AttributeValueMemberS{Value: l.Source},
		"neighborhood":    &types.AttributeValueMemberS{Value: l.Neighborhood},
		"address":         &types.AttributeValueMemberS{Value: l.Address},
		"price":           &types.AttributeValueMemberN{Value: strconv.FormatFloat(l.Price, 'f', 2, 64)},
		"area":            &types.AttributeValueMemberS{Value: l.Area},
		"rooms":           &types.AttributeValueMemberN{Value: strconv.Itoa(l.Rooms)},
		"parking_spaces":  &types.AttributeValueMemberN{Value: strconv.Itoa(l.ParkingSpaces)},
		"link":            &types.AttributeValueMemberS{Value: l.DetailURL},
		"first_seen_at":   &types.AttributeValueMemberS{Value: l.FirstSeenAt.UTC().Format(models.TimestampLayout)},
		"last_updated_at": &types.AttributeValueMemberS{Value: l.LastUpdatedAt.UTC().Format(models.TimestampLayout)},
	}
}

func itemToListing(item map[string]types.AttributeValue) (*models.Listing, error) {
	l := &models.Listing{
		ID:           attrS(item, "id"),
		Source:       attrS(item, "source"),
		Neighborhood: attrS(item, "neighborhood"),
		Address:      attrS(item, "address"),
		Area:         attrS(item, "area"),
		DetailURL:    attrS(item, "link"),
	}
	if l.ID == "" {
		return nil, errors.New("item has no id")
	}

	var err error
	if l.Price, err = strconv.ParseFloat(attrN(item, "price"), 64); err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	if l.Rooms, err = strconv.Atoi(attrN(item, "rooms")); err != nil {
		return nil, fmt.Errorf("rooms: %w", err)
	}
	if l.ParkingSpaces, err = strconv.Atoi(attrN(item, "parking_spaces")); err != nil {
		return nil, fmt.Errorf("parking_spaces: %w", err)
	}
	if l.FirstSeenAt, err = time.Parse(models.TimestampLayout, attrS(item, "first_seen_at")); err != nil {
		return nil, fmt.Errorf("first_seen_at: %w", err)
	}
	if l.LastUpdatedAt, err = time.Parse(models.TimestampLayout, attrS(item, "last_updated_at")); err != nil {
		return nil, fmt.Errorf("last_updated_at: %w", err)
	}
	return l, nil
}

func attrS(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// attrN returns a numeric attribute's text, "0" when absent.
func attrN(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberN); ok {
		return v.Value
	}
	return "0"
}
