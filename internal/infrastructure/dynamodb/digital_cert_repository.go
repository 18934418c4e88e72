package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
	"github.com/jhoicas/comprobantes-sri/internal/domain/repository"
)

const (
	kindCert   = "cert"
	certPrefix = "CERT#"
)

// CertItem ítem DynamoDB de un certificado de firma.
type CertItem struct {
	ID        string `dynamodbav:"id"`
	Kind      string `dynamodbav:"kind"`
	Owner     string `dynamodbav:"owner"`
	Material  []byte `dynamodbav:"material"`
	Password  string `dynamodbav:"password"`
	CreatedAt string `dynamodbav:"createdAt"`
}

var _ repository.DigitalCertRepository = (*DigitalCertRepo)(nil)

type DigitalCertRepo struct {
	client    API
	tableName string
}

func NewDigitalCertRepository(client API, tableName string) *DigitalCertRepo {
	return &DigitalCertRepo{client: client, tableName: tableName}
}

// Add registra un certificado (usado para sembrar el certificado de desarrollo).
func (r *DigitalCertRepo) Add(ctx context.Context, cert *entity.DigitalCert) error {
	if cert.ID == "" {
		cert.ID = uuid.New().String()
	}
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = time.Now().UTC()
	}
	av, err := attributevalue.MarshalMap(CertItem{
		ID:        certPrefix + cert.ID,
		Kind:      kindCert,
		Owner:     cert.Owner,
		Material:  cert.Material,
		Password:  cert.Password,
		CreatedAt: cert.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cert item: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put item in DynamoDB: %w", err)
	}
	return nil
}

// FindByOwner devuelve los certificados del titular, el más antiguo primero.
func (r *DigitalCertRepo) FindByOwner(ctx context.Context, owner string) ([]*entity.DigitalCert, error) {
	filter := expression.Name("kind").Equal(expression.Value(kindCert)).
		And(expression.Name("owner").Equal(expression.Value(owner)))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var items []CertItem
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan DynamoDB table: %w", err)
		}
		var pageItems []CertItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cert items: %w", err)
		}
		items = append(items, pageItems...)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt < items[j].CreatedAt })

	certs := make([]*entity.DigitalCert, 0, len(items))
	for _, it := range items {
		createdAt, err := time.Parse(time.RFC3339Nano, it.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse createdAt: %w", err)
		}
		certs = append(certs, &entity.DigitalCert{
			ID:        strings.TrimPrefix(it.ID, certPrefix),
			Owner:     it.Owner,
			Material:  it.Material,
			Password:  it.Password,
			CreatedAt: createdAt,
		})
	}
	return certs, nil
}
