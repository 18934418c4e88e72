package dynamodb

import (
	"context"
	"reflect"
	"regexp"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeTable tabla en memoria que entiende las expresiones que generan los
// repositorios: igualdades unidas por AND, attribute_not_exists y SET.
type fakeTable struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	order []string
	err   error
}

func newFakeTable() *fakeTable {
	return &fakeTable{items: map[string]map[string]types.AttributeValue{}}
}

var (
	equalityRE  = regexp.MustCompile(`(#\d+) = (:\d+)`)
	notExistsRE = regexp.MustCompile(`attribute_not_exists ?\((#\d+)\)`)
)

func keyOf(av map[string]types.AttributeValue) string {
	return av["id"].(*types.AttributeValueMemberS).Value
}

func sameValue(a, b types.AttributeValue) bool {
	var x, y any
	_ = attributevalue.Unmarshal(a, &x)
	_ = attributevalue.Unmarshal(b, &y)
	return reflect.DeepEqual(x, y)
}

func matches(item map[string]types.AttributeValue, expr *string, names map[string]string, values map[string]types.AttributeValue) bool {
	if expr == nil {
		return true
	}
	for _, m := range notExistsRE.FindAllStringSubmatch(*expr, -1) {
		if item != nil {
			if _, ok := item[names[m[1]]]; ok {
				return false
			}
		}
	}
	for _, m := range equalityRE.FindAllStringSubmatch(*expr, -1) {
		if item == nil {
			return false
		}
		got, ok := item[names[m[1]]]
		if !ok || !sameValue(got, values[m[2]]) {
			return false
		}
	}
	return true
}

func (f *fakeTable) put(item map[string]types.AttributeValue) {
	id := keyOf(item)
	if _, ok := f.items[id]; !ok {
		f.order = append(f.order, id)
	}
	f.items[id] = item
}

func (f *fakeTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.put(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// Scan devuelve una sola página en orden de inserción, invertido para que el
// repositorio tenga que ordenar.
func (f *fakeTable) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := &dynamodb.ScanOutput{}
	for i := len(f.order) - 1; i >= 0; i-- {
		item := f.items[f.order[i]]
		if matches(item, in.FilterExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func (f *fakeTable) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, ti := range in.TransactItems {
		ok := true
		switch {
		case ti.Put != nil:
			ok = matches(f.items[keyOf(ti.Put.Item)], ti.Put.ConditionExpression, ti.Put.ExpressionAttributeNames, ti.Put.ExpressionAttributeValues)
		case ti.Update != nil:
			ok = matches(f.items[keyOf(ti.Update.Key)], ti.Update.ConditionExpression, ti.Update.ExpressionAttributeNames, ti.Update.ExpressionAttributeValues)
		case ti.Delete != nil:
			ok = matches(f.items[keyOf(ti.Delete.Key)], ti.Delete.ConditionExpression, ti.Delete.ExpressionAttributeNames, ti.Delete.ExpressionAttributeValues)
		}
		reasons[i].Code = aws.String("None")
		if !ok {
			reasons[i].Code = aws.String("ConditionalCheckFailed")
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{Message: aws.String("Transaction cancelled"), CancellationReasons: reasons}
	}
	for _, ti := range in.TransactItems {
		switch {
		case ti.Put != nil:
			f.put(ti.Put.Item)
		case ti.Update != nil:
			item := f.items[keyOf(ti.Update.Key)]
			for _, m := range equalityRE.FindAllStringSubmatch(*ti.Update.UpdateExpression, -1) {
				item[ti.Update.ExpressionAttributeNames[m[1]]] = ti.Update.ExpressionAttributeValues[m[2]]
			}
		case ti.Delete != nil:
			id := keyOf(ti.Delete.Key)
			delete(f.items, id)
			f.order = removeID(f.order, id)
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (f *fakeTable) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kinds []string
	for _, item := range f.items {
		kinds = append(kinds, item["kind"].(*types.AttributeValueMemberS).Value)
	}
	sort.Strings(kinds)
	return kinds
}
