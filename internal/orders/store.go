package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-storefront/internal/aws"
)

// UserIndex is the GSI on user_id (sort key created_at) used to list a
// user's orders.
const UserIndex = "user_id-created_at-index"

var (
	// ErrStatusMismatch is returned when the stored status changed between
	// read and conditional update.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrGuardFailed is returned when one of the extra guard items passed to
	// CreateWithStockDecrement failed its condition.
	ErrGuardFailed = errors.New("transaction guard condition failed")
)

// Decrement removes Quantity units of one product.
type Decrement struct {
	ProductID string
	Quantity  int
}

// Store encapsulates operations on the orders table.
type Store struct {
	client        aws.DynamoDBAPI
	tableName     string
	productsTable string
	nowFunc       func() time.Time
}

// NewStore creates a new orders Store. productsTable is the table whose
// stock counters are decremented when an order is created.
func NewStore(client aws.DynamoDBAPI, tableName, productsTable string) *Store {
	return &Store{
		client:        client,
		tableName:     tableName,
		productsTable: productsTable,
		nowFunc:       time.Now,
	}
}

// CreateWithStockDecrement atomically writes, in one TransactWriteItems call:
//   - every guard item (e.g. an idempotency claim), in order
//   - the order record (attribute_not_exists(order_id))
//   - one stock decrement per product (attribute_exists(product_id) AND stock >= :qty)
//
// decrements must name each product at most once. When a decrement condition
// fails nothing is written and the stock seen by DynamoDB is reported as
// *InsufficientStockError, or *ProductNotFoundError if the product is gone.
func (s *Store) CreateWithStockDecrement(ctx context.Context, order Order, decrements []Decrement, guards ...types.TransactWriteItem) error {
	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	transactItems := make([]types.TransactWriteItem, 0, len(guards)+1+len(decrements))
	transactItems = append(transactItems, guards...)
	transactItems = append(transactItems, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &s.tableName,
			Item:                orderMap,
			ConditionExpression: awsString("attribute_not_exists(order_id)"),
		},
	})

	updatedAt := order.UpdatedAt.UTC().Format(time.RFC3339Nano)
	for _, d := range decrements {
		transactItems = append(transactItems, types.TransactWriteItem{
			Update: &types.Update{
				TableName: &s.productsTable,
				Key: map[string]types.AttributeValue{
					"product_id": &types.AttributeValueMemberS{Value: d.ProductID},
				},
				UpdateExpression:    awsString("SET stock = stock - :qty, updated_at = :ua"),
				ConditionExpression: awsString("attribute_exists(product_id) AND stock >= :qty"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":qty": &types.AttributeValueMemberN{Value: strconv.Itoa(d.Quantity)},
					":ua":  &types.AttributeValueMemberS{Value: updatedAt},
				},
				ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err == nil {
		return nil
	}

	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return fmt.Errorf("transact write: %w", err)
	}
	for i, reason := range tce.CancellationReasons {
		if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
			continue
		}
		switch {
		case i < len(guards):
			return ErrGuardFailed
		case i == len(guards):
			return fmt.Errorf("order %s already exists: %w", order.ID, err)
		}
		d := decrements[i-len(guards)-1]
		if len(reason.Item) == 0 {
			return &ProductNotFoundError{ProductID: d.ProductID}
		}
		var seen struct {
			Name  string `dynamodbav:"name"`
			Stock int    `dynamodbav:"stock"`
		}
		if uerr := attributevalue.UnmarshalMap(reason.Item, &seen); uerr != nil {
			return fmt.Errorf("unmarshal cancelled product: %w", uerr)
		}
		return &InsufficientStockError{
			ProductID:   d.ProductID,
			ProductName: seen.Name,
			Available:   seen.Stock,
			Requested:   d.Quantity,
		}
	}
	return fmt.Errorf("transaction canceled: %w", err)
}

// Get fetches an order by order_id. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	key := map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// ListByUser returns every order of userID, optionally restricted to one
// status, in no particular order.
func (s *Store) ListByUser(ctx context.Context, userID string, status Status) ([]Order, error) {
	builder := expression.NewBuilder().
		WithKeyCondition(expression.Key("user_id").Equal(expression.Value(userID)))
	if status != "" {
		builder = builder.WithFilter(expression.Name("status").Equal(expression.Value(string(status))))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	pager := dyn.NewQueryPaginator(s.client, &dyn.QueryInput{
		TableName:                 &s.tableName,
		IndexName:                 awsString(UserIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return collect(ctx, func(ctx context.Context) ([]map[string]types.AttributeValue, bool, error) {
		if !pager.HasMorePages() {
			return nil, false, nil
		}
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("query orders: %w", err)
		}
		return page.Items, true, nil
	})
}

// All returns every order in the table.
func (s *Store) All(ctx context.Context) ([]Order, error) {
	pager := dyn.NewScanPaginator(s.client, &dyn.ScanInput{TableName: &s.tableName})
	return collect(ctx, func(ctx context.Context) ([]map[string]types.AttributeValue, bool, error) {
		if !pager.HasMorePages() {
			return nil, false, nil
		}
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("scan orders: %w", err)
		}
		return page.Items, true, nil
	})
}

func collect(ctx context.Context, next func(context.Context) ([]map[string]types.AttributeValue, bool, error)) ([]Order, error) {
	orders := []Order{}
	for {
		items, more, err := next(ctx)
		if err != nil {
			return nil, err
		}
		if !more {
			return orders, nil
		}
		var batch []Order
		if err := attributevalue.UnmarshalListOfMaps(items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		orders = append(orders, batch...)
	}
}

// UpdateStatus conditionally updates the order status from expected -> newStatus
// and returns the updated order. Returns ErrStatusMismatch if condition failed.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, expectedStatus, newStatus Status) (*Order, error) {
	now := s.nowFunc().UTC()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:         awsString("SET #s = :new, updated_at = :ua"),
		ConditionExpression:      awsString("#s = :expected"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: string(newStatus)},
			":expected": &types.AttributeValueMemberS{Value: string(expectedStatus)},
			":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueAllNew,
	}

	out, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		// detect conditional check failing
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
			return nil, ErrStatusMismatch
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Attributes, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

func awsString(s string) *string { return &s }
