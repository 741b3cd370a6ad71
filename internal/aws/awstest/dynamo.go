// Package awstest provides an in-memory DynamoDB for store and handler tests.
//
// It understands the condition, filter, key-condition and SET update
// expressions the stores issue (including those produced by the expression
// builder) and applies TransactWriteItems atomically.
package awstest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

type table struct {
	key   string
	items map[string]item
}

// Dynamo is a goroutine-safe fake implementing the DynamoDB client surface
// used by this module.
type Dynamo struct {
	mu     sync.Mutex
	tables map[string]*table
	calls  map[string]int
	fail   map[string]error

	// PageSize caps the items evaluated per Scan/Query page when the request
	// sets no Limit. Zero means unlimited.
	PageSize int
}

// New returns an empty fake with no tables.
func New() *Dynamo {
	return &Dynamo{
		tables: map[string]*table{},
		calls:  map[string]int{},
		fail:   map[string]error{},
	}
}

// CreateTable registers a table keyed by a single string partition key.
func (d *Dynamo) CreateTable(name, key string) *Dynamo {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[name] = &table{key: key, items: map[string]item{}}
	return d
}

// Seed marshals v with attributevalue and stores it unconditionally.
func (d *Dynamo) Seed(tableName string, v interface{}) error {
	it, err := attributevalue.MarshalMap(v)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.table(tableName)
	if err != nil {
		return err
	}
	k, err := t.keyOf(it)
	if err != nil {
		return err
	}
	t.items[k] = clone(it)
	return nil
}

// Item returns a copy of the stored item, or nil.
func (d *Dynamo) Item(tableName, key string) map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tables[tableName]
	if !ok {
		return nil
	}
	if it, ok := t.items[key]; ok {
		return clone(it)
	}
	return nil
}

// Len reports how many items a table holds.
func (d *Dynamo) Len(tableName string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.tables[tableName]; ok {
		return len(t.items)
	}
	return 0
}

// Calls reports how many times an operation (e.g. "TransactWriteItems") ran.
func (d *Dynamo) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// FailOn makes every subsequent call of op return err.
func (d *Dynamo) FailOn(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[op] = err
}

func (d *Dynamo) enter(op string) error {
	d.calls[op]++
	return d.fail[op]
}

func (d *Dynamo) table(name string) (*table, error) {
	t, ok := d.tables[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: sdkaws.String("table not found: " + name)}
	}
	return t, nil
}

func (t *table) keyOf(it item) (string, error) {
	switch v := it[t.key].(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return v.Value, nil
	}
	return "", validationError(fmt.Sprintf("missing key attribute %q", t.key))
}

func clone(it item) item {
	if it == nil {
		return nil
	}
	out := make(item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

func validationError(msg string) error {
	return &smithy.GenericAPIError{Code: "ValidationException", Message: msg}
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: sdkaws.String("The conditional request failed")}
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (d *Dynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("PutItem"); err != nil {
		return nil, err
	}
	t, err := d.table(strOrEmpty(params.TableName))
	if err != nil {
		return nil, err
	}
	k, err := t.keyOf(params.Item)
	if err != nil {
		return nil, err
	}
	sc := scope{names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues}
	ok, err := evalCondition(strOrEmpty(params.ConditionExpression), sc, t.items[k])
	if err != nil {
		return nil, validationError(err.Error())
	}
	if !ok {
		return nil, conditionFailed()
	}
	t.items[k] = clone(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (d *Dynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("GetItem"); err != nil {
		return nil, err
	}
	t, err := d.table(strOrEmpty(params.TableName))
	if err != nil {
		return nil, err
	}
	k, err := t.keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	return &dyn.GetItemOutput{Item: clone(t.items[k])}, nil
}

func (d *Dynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("DeleteItem"); err != nil {
		return nil, err
	}
	t, err := d.table(strOrEmpty(params.TableName))
	if err != nil {
		return nil, err
	}
	k, err := t.keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	old := t.items[k]
	sc := scope{names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues}
	ok, err := evalCondition(strOrEmpty(params.ConditionExpression), sc, old)
	if err != nil {
		return nil, validationError(err.Error())
	}
	if !ok {
		return nil, conditionFailed()
	}
	delete(t.items, k)
	out := &dyn.DeleteItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = clone(old)
	}
	return out, nil
}

func (d *Dynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("UpdateItem"); err != nil {
		return nil, err
	}
	t, err := d.table(strOrEmpty(params.TableName))
	if err != nil {
		return nil, err
	}
	k, err := t.keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	sc := scope{names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues}
	updated, err := d.prepareUpdate(t, k, params.Key, strOrEmpty(params.ConditionExpression), strOrEmpty(params.UpdateExpression), sc)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, conditionFailed()
	}
	t.items[k] = updated
	out := &dyn.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew || params.ReturnValues == types.ReturnValueUpdatedNew {
		out.Attributes = clone(updated)
	}
	return out, nil
}

// prepareUpdate returns the new item, or nil when the condition fails.
func (d *Dynamo) prepareUpdate(t *table, k string, key item, cond, update string, sc scope) (item, error) {
	old := t.items[k]
	ok, err := evalCondition(cond, sc, old)
	if err != nil {
		return nil, validationError(err.Error())
	}
	if !ok {
		return nil, nil
	}
	base := clone(old)
	if base == nil {
		base = clone(key)
	}
	updated, err := applyUpdate(update, sc, base)
	if err != nil {
		return nil, validationError(err.Error())
	}
	return updated, nil
}

func (d *Dynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("TransactWriteItems"); err != nil {
		return nil, err
	}
	if len(params.TransactItems) > 100 {
		return nil, validationError("transaction exceeds 100 items")
	}

	type write struct {
		t      *table
		key    string
		value  item
		delete bool
	}
	var (
		writes  []write
		reasons = make([]types.CancellationReason, len(params.TransactItems))
		failed  bool
		seen    = map[string]bool{}
	)

	for i, ti := range params.TransactItems {
		reasons[i] = types.CancellationReason{Code: sdkaws.String("None")}

		var (
			tableName, cond string
			key             item
			sc              scope
			onFail          types.ReturnValuesOnConditionCheckFailure
		)
		switch {
		case ti.Put != nil:
			tableName, cond, key = strOrEmpty(ti.Put.TableName), strOrEmpty(ti.Put.ConditionExpression), ti.Put.Item
			sc = scope{names: ti.Put.ExpressionAttributeNames, values: ti.Put.ExpressionAttributeValues}
			onFail = ti.Put.ReturnValuesOnConditionCheckFailure
		case ti.Update != nil:
			tableName, cond, key = strOrEmpty(ti.Update.TableName), strOrEmpty(ti.Update.ConditionExpression), ti.Update.Key
			sc = scope{names: ti.Update.ExpressionAttributeNames, values: ti.Update.ExpressionAttributeValues}
			onFail = ti.Update.ReturnValuesOnConditionCheckFailure
		case ti.Delete != nil:
			tableName, cond, key = strOrEmpty(ti.Delete.TableName), strOrEmpty(ti.Delete.ConditionExpression), ti.Delete.Key
			sc = scope{names: ti.Delete.ExpressionAttributeNames, values: ti.Delete.ExpressionAttributeValues}
			onFail = ti.Delete.ReturnValuesOnConditionCheckFailure
		case ti.ConditionCheck != nil:
			tableName, cond, key = strOrEmpty(ti.ConditionCheck.TableName), strOrEmpty(ti.ConditionCheck.ConditionExpression), ti.ConditionCheck.Key
			sc = scope{names: ti.ConditionCheck.ExpressionAttributeNames, values: ti.ConditionCheck.ExpressionAttributeValues}
			onFail = ti.ConditionCheck.ReturnValuesOnConditionCheckFailure
		default:
			return nil, validationError("empty transact item")
		}

		t, err := d.table(tableName)
		if err != nil {
			return nil, err
		}
		k, err := t.keyOf(key)
		if err != nil {
			return nil, err
		}
		if seen[tableName+"/"+k] {
			return nil, validationError("Transaction request cannot include multiple operations on one item")
		}
		seen[tableName+"/"+k] = true

		old := t.items[k]
		ok, err := evalCondition(cond, sc, old)
		if err != nil {
			return nil, validationError(err.Error())
		}
		if !ok {
			failed = true
			reasons[i].Code = sdkaws.String("ConditionalCheckFailed")
			reasons[i].Message = sdkaws.String("The conditional request failed")
			if onFail == types.ReturnValuesOnConditionCheckFailureAllOld {
				reasons[i].Item = clone(old)
			}
			continue
		}

		switch {
		case ti.Put != nil:
			writes = append(writes, write{t: t, key: k, value: clone(ti.Put.Item)})
		case ti.Update != nil:
			base := clone(old)
			if base == nil {
				base = clone(key)
			}
			updated, err := applyUpdate(strOrEmpty(ti.Update.UpdateExpression), sc, base)
			if err != nil {
				return nil, validationError(err.Error())
			}
			writes = append(writes, write{t: t, key: k, value: updated})
		case ti.Delete != nil:
			writes = append(writes, write{t: t, key: k, delete: true})
		}
	}

	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             sdkaws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}
	for _, w := range writes {
		if w.delete {
			delete(w.t.items, w.key)
			continue
		}
		w.t.items[w.key] = w.value
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (d *Dynamo) BatchGetItem(ctx context.Context, params *dyn.BatchGetItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchGetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("BatchGetItem"); err != nil {
		return nil, err
	}
	out := &dyn.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
	for name, ka := range params.RequestItems {
		t, err := d.table(name)
		if err != nil {
			return nil, err
		}
		if len(ka.Keys) > 100 {
			return nil, validationError("too many items requested for the BatchGetItem call")
		}
		for _, key := range ka.Keys {
			k, err := t.keyOf(key)
			if err != nil {
				return nil, err
			}
			if it, ok := t.items[k]; ok {
				out.Responses[name] = append(out.Responses[name], clone(it))
			}
		}
	}
	return out, nil
}

func (d *Dynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Scan"); err != nil {
		return nil, err
	}
	t, err := d.table(strOrEmpty(params.TableName))
	if err != nil {
		return nil, err
	}
	sc := scope{names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues}
	page, err := d.page(t, params.ExclusiveStartKey, params.Limit, "", strOrEmpty(params.FilterExpression), sc)
	if err != nil {
		return nil, err
	}
	return &dyn.ScanOutput{
		Items:            page.items,
		Count:            int32(len(page.items)),
		ScannedCount:     page.scanned,
		LastEvaluatedKey: page.last,
	}, nil
}

// Query treats the key condition as an additional filter over the whole
// table; index names are accepted but results come back in key order.
func (d *Dynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Query"); err != nil {
		return nil, err
	}
	t, err := d.table(strOrEmpty(params.TableName))
	if err != nil {
		return nil, err
	}
	sc := scope{names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues}
	page, err := d.page(t, params.ExclusiveStartKey, params.Limit, strOrEmpty(params.KeyConditionExpression), strOrEmpty(params.FilterExpression), sc)
	if err != nil {
		return nil, err
	}
	return &dyn.QueryOutput{
		Items:            page.items,
		Count:            int32(len(page.items)),
		ScannedCount:     page.scanned,
		LastEvaluatedKey: page.last,
	}, nil
}

type scanPage struct {
	items   []map[string]types.AttributeValue
	scanned int32
	last    map[string]types.AttributeValue
}

func (d *Dynamo) page(t *table, start item, limit *int32, keyCond, filter string, sc scope) (scanPage, error) {
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	from := 0
	if len(start) > 0 {
		sk, err := t.keyOf(start)
		if err != nil {
			return scanPage{}, err
		}
		from = sort.SearchStrings(keys, sk)
		if from < len(keys) && keys[from] == sk {
			from++
		}
	}

	max := d.PageSize
	if limit != nil {
		max = int(*limit)
	}

	var p scanPage
	for i := from; i < len(keys); i++ {
		if max > 0 && int(p.scanned) == max {
			p.last = item{t.key: &types.AttributeValueMemberS{Value: keys[i-1]}}
			break
		}
		it := t.items[keys[i]]
		p.scanned++
		ok, err := evalCondition(keyCond, sc, it)
		if err != nil {
			return scanPage{}, validationError(err.Error())
		}
		if !ok {
			continue
		}
		ok, err = evalCondition(filter, sc, it)
		if err != nil {
			return scanPage{}, validationError(err.Error())
		}
		if ok {
			p.items = append(p.items, clone(it))
		}
	}
	return p, nil
}
