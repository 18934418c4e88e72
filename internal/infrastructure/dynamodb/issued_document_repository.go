package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/comprobantes-sri/internal/domain"
	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
	"github.com/jhoicas/comprobantes-sri/internal/domain/repository"
)

const (
	kindDocument = "document"
	kindGuard    = "active_key"

	guardPrefix = "ACTIVE#"
	dateLayout  = "2006-01-02"
)

// DocumentItem ítem DynamoDB de un comprobante emitido.
type DocumentItem struct {
	ID                 string          `dynamodbav:"id"`
	Kind               string          `dynamodbav:"kind"`
	AccessKey          string          `dynamodbav:"accessKey"`
	DocumentType       string          `dynamodbav:"documentType"`
	SRIVersion         string          `dynamodbav:"sriVersion"`
	XMLContent         string          `dynamodbav:"xmlContent"`
	SupplierID         string          `dynamodbav:"supplierId"`
	DocumentNumber     string          `dynamodbav:"documentNumber"`
	IssueDate          string          `dynamodbav:"issueDate"`
	InternalStatus     string          `dynamodbav:"internalStatus"`
	IsDeleted          bool            `dynamodbav:"isDeleted"`
	ShipperRUC         string          `dynamodbav:"shipperRuc,omitempty"`
	RegistrationNumber string          `dynamodbav:"registrationNumber,omitempty"`
	BuyerID            string          `dynamodbav:"buyerId,omitempty"`
	TotalAmount        string          `dynamodbav:"totalAmount,omitempty"`
	Consignees         []ConsigneeItem `dynamodbav:"consignees,omitempty"`
	CreatedAt          string          `dynamodbav:"createdAt"` // RFC3339Nano, ordena lexicográficamente
	UpdatedAt          string          `dynamodbav:"updatedAt"`
}

// ConsigneeItem destinatario embebido; la posición en la lista es el orden de inserción.
type ConsigneeItem struct {
	ID                     string `dynamodbav:"id"`
	ConsigneeNumber        string `dynamodbav:"consigneeNumber"`
	CustomDocNumber        string `dynamodbav:"customDocNumber,omitempty"`
	ReferenceDocCod        string `dynamodbav:"referenceDocCod,omitempty"`
	ReferenceDocNumber     string `dynamodbav:"referenceDocNumber,omitempty"`
	ReferenceDocAuthNumber string `dynamodbav:"referenceDocAuthNumber,omitempty"`
}

// guardItem reserva la clave de acceso mientras el comprobante esté activo.
type guardItem struct {
	ID         string `dynamodbav:"id"`
	Kind       string `dynamodbav:"kind"`
	DocumentID string `dynamodbav:"documentId"`
}

var _ repository.IssuedDocumentRepository = (*IssuedDocumentRepo)(nil)

// IssuedDocumentRepo implementación DynamoDB. Save y MarkDeleted escriben
// comprobante y candado en una transacción condicional.
type IssuedDocumentRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

// NewIssuedDocumentRepository crea el repositorio sobre la tabla indicada.
func NewIssuedDocumentRepository(client API, tableName string) *IssuedDocumentRepo {
	return &IssuedDocumentRepo{client: client, tableName: tableName, now: time.Now}
}

func guardID(accessKey string) string { return guardPrefix + accessKey }

func toDocumentItem(doc *entity.IssuedDocument) *DocumentItem {
	item := &DocumentItem{
		ID:                 doc.ID,
		Kind:               kindDocument,
		AccessKey:          doc.AccessKey,
		DocumentType:       doc.DocumentType,
		SRIVersion:         doc.SRIVersion,
		XMLContent:         doc.XMLContent,
		SupplierID:         doc.SupplierID,
		DocumentNumber:     doc.DocumentNumber,
		IssueDate:          doc.IssueDate.Format(dateLayout),
		InternalStatus:     doc.InternalStatus,
		IsDeleted:          doc.IsDeleted,
		ShipperRUC:         doc.ShipperRUC,
		RegistrationNumber: doc.RegistrationNumber,
		BuyerID:            doc.BuyerID,
		CreatedAt:          doc.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:          doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if doc.BuyerID != "" {
		item.TotalAmount = doc.TotalAmount.StringFixed(2)
	}
	for _, c := range doc.Consignees {
		item.Consignees = append(item.Consignees, ConsigneeItem{
			ID:                     c.ID,
			ConsigneeNumber:        c.ConsigneeNumber,
			CustomDocNumber:        c.CustomDocNumber,
			ReferenceDocCod:        c.ReferenceDocCod,
			ReferenceDocNumber:     c.ReferenceDocNumber,
			ReferenceDocAuthNumber: c.ReferenceDocAuthNumber,
		})
	}
	return item
}

func toDomainDocument(item *DocumentItem) (*entity.IssuedDocument, error) {
	issueDate, err := time.Parse(dateLayout, item.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse issueDate: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse createdAt: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updatedAt: %w", err)
	}
	doc := &entity.IssuedDocument{
		ID:                 item.ID,
		AccessKey:          item.AccessKey,
		DocumentType:       item.DocumentType,
		SRIVersion:         item.SRIVersion,
		XMLContent:         item.XMLContent,
		SupplierID:         item.SupplierID,
		DocumentNumber:     item.DocumentNumber,
		IssueDate:          issueDate,
		InternalStatus:     item.InternalStatus,
		IsDeleted:          item.IsDeleted,
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
		ShipperRUC:         item.ShipperRUC,
		RegistrationNumber: item.RegistrationNumber,
		BuyerID:            item.BuyerID,
	}
	if item.TotalAmount != "" {
		total, err := decimal.NewFromString(item.TotalAmount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse totalAmount: %w", err)
		}
		doc.TotalAmount = total
	}
	for _, c := range item.Consignees {
		doc.Consignees = append(doc.Consignees, entity.Consignee{
			ID:                     c.ID,
			ConsigneeNumber:        c.ConsigneeNumber,
			CustomDocNumber:        c.CustomDocNumber,
			ReferenceDocCod:        c.ReferenceDocCod,
			ReferenceDocNumber:     c.ReferenceDocNumber,
			ReferenceDocAuthNumber: c.ReferenceDocAuthNumber,
		})
	}
	return doc, nil
}

// Save escribe candado y comprobante. Si el candado ya existe la transacción
// se cancela y se devuelve domain.ErrDuplicate.
func (r *IssuedDocumentRepo) Save(ctx context.Context, doc *entity.IssuedDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := r.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.InternalStatus == "" {
		doc.InternalStatus = entity.StatusCreated
	}
	for i := range doc.Consignees {
		if doc.Consignees[i].ID == "" {
			doc.Consignees[i].ID = uuid.New().String()
		}
	}

	docAV, err := attributevalue.MarshalMap(toDocumentItem(doc))
	if err != nil {
		return fmt.Errorf("failed to marshal document item: %w", err)
	}
	guardAV, err := attributevalue.MarshalMap(guardItem{ID: guardID(doc.AccessKey), Kind: kindGuard, DocumentID: doc.ID})
	if err != nil {
		return fmt.Errorf("failed to marshal guard item: %w", err)
	}
	absent, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("id"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(r.tableName),
				Item:                     guardAV,
				ConditionExpression:      absent.Condition(),
				ExpressionAttributeNames: absent.Names(),
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.tableName),
				Item:                     docAV,
				ConditionExpression:      absent.Condition(),
				ExpressionAttributeNames: absent.Names(),
			}},
		},
	})
	if err != nil {
		if conditionFailed(err, 0) {
			return fmt.Errorf("%w: clave de acceso %s ya registrada", domain.ErrDuplicate, doc.AccessKey)
		}
		return fmt.Errorf("failed to write document in DynamoDB: %w", err)
	}
	return nil
}

// FindActiveByKey resuelve el candado y lee el comprobante. nil, nil si no hay activo.
func (r *IssuedDocumentRepo) FindActiveByKey(ctx context.Context, accessKey string) (*entity.IssuedDocument, error) {
	var guard guardItem
	found, err := r.getItem(ctx, guardID(accessKey), &guard)
	if err != nil || !found {
		return nil, err
	}
	var item DocumentItem
	found, err = r.getItem(ctx, guard.DocumentID, &item)
	if err != nil || !found {
		return nil, err
	}
	if item.IsDeleted {
		return nil, nil
	}
	return toDomainDocument(&item)
}

func (r *IssuedDocumentRepo) getItem(ctx context.Context, id string, out any) (bool, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"id": id})
	if err != nil {
		return false, fmt.Errorf("failed to marshal key: %w", err)
	}
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("failed to get item from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return true, nil
}

// FindActiveBySupplier recorre la tabla filtrando por emisor y ordena por createdAt.
func (r *IssuedDocumentRepo) FindActiveBySupplier(ctx context.Context, supplierID string) ([]string, error) {
	filter := expression.Name("kind").Equal(expression.Value(kindDocument)).
		And(expression.Name("supplierId").Equal(expression.Value(supplierID))).
		And(expression.Name("isDeleted").Equal(expression.Value(false)))
	expr, err := expression.NewBuilder().
		WithFilter(filter).
		WithProjection(expression.NamesList(expression.Name("id"), expression.Name("accessKey"), expression.Name("createdAt"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var items []DocumentItem
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan DynamoDB table: %w", err)
		}
		var pageItems []DocumentItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document items: %w", err)
		}
		items = append(items, pageItems...)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt != items[j].CreatedAt {
			return items[i].CreatedAt < items[j].CreatedAt
		}
		return items[i].ID < items[j].ID
	})
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, it.AccessKey)
	}
	return keys, nil
}

// MarkDeleted marca el comprobante y libera el candado de la clave.
func (r *IssuedDocumentRepo) MarkDeleted(ctx context.Context, doc *entity.IssuedDocument) error {
	now := r.now().UTC()
	update, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name("isDeleted"), expression.Value(true)).
			Set(expression.Name("updatedAt"), expression.Value(now.Format(time.RFC3339Nano)))).
		WithCondition(expression.Name("isDeleted").Equal(expression.Value(false))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	owned, err := expression.NewBuilder().
		WithCondition(expression.Name("documentId").Equal(expression.Value(doc.ID))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:                 aws.String(r.tableName),
				Key:                       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: doc.ID}},
				UpdateExpression:          update.Update(),
				ConditionExpression:       update.Condition(),
				ExpressionAttributeNames:  update.Names(),
				ExpressionAttributeValues: update.Values(),
			}},
			{Delete: &types.Delete{
				TableName:                 aws.String(r.tableName),
				Key:                       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: guardID(doc.AccessKey)}},
				ConditionExpression:       owned.Condition(),
				ExpressionAttributeNames:  owned.Names(),
				ExpressionAttributeValues: owned.Values(),
			}},
		},
	})
	if err != nil {
		if conditionFailed(err, -1) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to mark document deleted: %w", err)
	}
	doc.IsDeleted = true
	doc.UpdatedAt = now
	return nil
}

// conditionFailed indica si la transacción se canceló por una condición. Con
// index >= 0 sólo cuenta el ítem en esa posición.
func conditionFailed(err error, index int) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		var ccf *types.ConditionalCheckFailedException
		return errors.As(err, &ccf)
	}
	for i, reason := range tce.CancellationReasons {
		if index >= 0 && i != index {
			continue
		}
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}
