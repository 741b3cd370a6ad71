package catalog

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
	"github.com/google/uuid"

	"github.com/imrishuroy/go-storefront/internal/aws"
)

// NameIndex is the GSI keyed by name_lc used for duplicate-name checks.
const NameIndex = "name_lc-index"

// batchGetLimit is the DynamoDB cap on keys per BatchGetItem request.
const batchGetLimit = 100

// ErrConflict is returned when a product changed between read and write.
var ErrConflict = errors.New("product was modified concurrently")

// Store encapsulates operations on the products table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	newID     func() string
}

// NewStore creates a new products Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

// TableName is the products table the store writes to.
func (s *Store) TableName() string { return s.tableName }

// Get fetches a product by id. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       productKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// FindByName looks a product up by case-insensitive exact name.
// Returns (nil, nil) if none exists.
func (s *Store) FindByName(ctx context.Context, name string) (*Product, error) {
	probe := Product{Name: name}
	probe.normalize()

	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(NameIndex),
		KeyConditionExpression: awsString("name_lc = :n"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n": &types.AttributeValueMemberS{Value: probe.NameLC},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query name index: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Items[0], &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// Create assigns an id and timestamps and persists the product.
// Returns ErrDuplicateName if another product has the same name ignoring case.
func (s *Store) Create(ctx context.Context, p Product) (*Product, error) {
	p.normalize()

	existing, err := s.FindByName(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateName
	}

	now := s.nowFunc().UTC()
	p.ID = s.newID()
	p.CreatedAt = now
	p.UpdatedAt = now

	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return nil, fmt.Errorf("marshal product: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(product_id)"),
	})
	if err != nil {
		return nil, fmt.Errorf("put item: %w", err)
	}
	return &p, nil
}

// Update applies patch to the stored product. The write is conditioned on the
// stock read beforehand so a concurrent order decrement is never overwritten;
// in that case ErrConflict is returned.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (*Product, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil && *patch.Name != cur.Name {
		dup, err := s.FindByName(ctx, *patch.Name)
		if err != nil {
			return nil, err
		}
		if dup != nil && dup.ID != id {
			return nil, ErrDuplicateName
		}
	}

	seenStock := cur.Stock
	patch.apply(cur)
	cur.normalize()
	cur.UpdatedAt = s.nowFunc().UTC()

	item, err := attributevalue.MarshalMap(cur)
	if err != nil {
		return nil, fmt.Errorf("marshal product: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_exists(product_id) AND stock = :seen"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":seen": &types.AttributeValueMemberN{Value: strconv.Itoa(seenStock)},
		},
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			if _, getErr := s.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("put item: %w", err)
	}
	return cur, nil
}

// Delete removes a product regardless of remaining stock or existing orders
// and returns the deleted record.
func (s *Store) Delete(ctx context.Context, id string) (*Product, error) {
	out, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 productKey(id),
		ConditionExpression: awsString("attribute_exists(product_id)"),
		ReturnValues:        types.ReturnValueAllOld,
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete item: %w", err)
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Attributes, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// Scan returns every product matching f, in no particular order.
func (s *Store) Scan(ctx context.Context, f Filter) ([]Product, error) {
	input := &dyn.ScanInput{TableName: &s.tableName}
	if cond, ok := f.Condition(); ok {
		expr, err := expression.NewBuilder().WithFilter(cond).Build()
		if err != nil {
			return nil, fmt.Errorf("build filter: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	products := []Product{}
	pager := dyn.NewScanPaginator(s.client, input)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan products: %w", err)
		}
		var batch []Product
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal products: %w", err)
		}
		products = append(products, batch...)
	}
	return products, nil
}

// BatchGet fetches products by id. Missing ids are absent from the result.
func (s *Store) BatchGet(ctx context.Context, ids []string) (map[string]Product, error) {
	unique := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	found := make(map[string]Product, len(unique))
	for start := 0; start < len(unique); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(unique) {
			end = len(unique)
		}
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range unique[start:end] {
			keys = append(keys, productKey(id))
		}

		request := map[string]types.KeysAndAttributes{s.tableName: {Keys: keys}}
		for len(request) > 0 {
			out, err := s.client.BatchGetItem(ctx, &dyn.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, fmt.Errorf("batch get products: %w", err)
			}
			var batch []Product
			if err := attributevalue.UnmarshalListOfMaps(out.Responses[s.tableName], &batch); err != nil {
				return nil, fmt.Errorf("unmarshal products: %w", err)
			}
			for _, p := range batch {
				found[p.ID] = p
			}
			// DynamoDB may hand back keys it did not get to under load
			request = out.UnprocessedKeys
		}
	}
	return found, nil
}

func productKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }
