// Package audit keeps a per-run ledger in DynamoDB: one item per processed
// row and one summary item per run, all under the partition RUN#<run id>.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/ignite/lead-dispatch/internal/domain"
	"github.com/ignite/lead-dispatch/internal/pkg/logger"
)

// SummarySortKey is the sort key of the run summary item.
const SummarySortKey = "SUMMARY"

// DynamoAPI is the subset of the DynamoDB client used by Ledger.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// RowItem is the ledger entry for one processed row.
type RowItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Row        int    `dynamodbav:"Row"`
	Phone      string `dynamodbav:"Phone"`
	Outcome    string `dynamodbav:"Outcome"`
	Status     string `dynamodbav:"Status"`
	Detail     string `dynamodbav:"Detail,omitempty"`
	Attempts   int    `dynamodbav:"Attempts"`
	WriteError string `dynamodbav:"WriteError,omitempty"`
	Timestamp  string `dynamodbav:"Timestamp"`
	TTL        int64  `dynamodbav:"TTL,omitempty"`
}

// SummaryItem is the ledger entry for a finished run.
type SummaryItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	Table       string `dynamodbav:"Table"`
	Seen        int    `dynamodbav:"Seen"`
	Eligible    int    `dynamodbav:"Eligible"`
	Sent        int    `dynamodbav:"Sent"`
	Failed      int    `dynamodbav:"Failed"`
	Skipped     int    `dynamodbav:"Skipped"`
	Interrupted bool   `dynamodbav:"Interrupted"`
	Reason      string `dynamodbav:"Reason,omitempty"`
	StartedAt   string `dynamodbav:"StartedAt"`
	DurationMS  int64  `dynamodbav:"DurationMs"`
	TTL         int64  `dynamodbav:"TTL,omitempty"`
}

// Ledger is a dispatch.Observer that writes row results to DynamoDB.
type Ledger struct {
	client  DynamoAPI
	table   string
	tableID string
	ttl     time.Duration
	now     func() time.Time
}

// NewLedger creates a Ledger writing to the DynamoDB table named table.
// tableID identifies the lead table in summary items; ttl of zero keeps
// items forever.
func NewLedger(client DynamoAPI, table, tableID string, ttl time.Duration) *Ledger {
	return &Ledger{client: client, table: table, tableID: tableID, ttl: ttl, now: time.Now}
}

func partitionKey(runID string) string { return "RUN#" + runID }

// RowSortKey zero-pads the ordinal so rows sort in table order.
func RowSortKey(ordinal int) string { return fmt.Sprintf("ROW#%06d", ordinal) }

func (l *Ledger) expiry() int64 {
	if l.ttl <= 0 {
		return 0
	}
	return l.now().Add(l.ttl).Unix()
}

// Observe stores the row result. The phone number is masked.
func (l *Ledger) Observe(ctx context.Context, r domain.RowResult) error {
	return l.put(ctx, RowItem{
		PK:         partitionKey(r.RunID),
		SK:         RowSortKey(r.Ordinal),
		Row:        r.Ordinal,
		Phone:      logger.RedactPhone(r.Phone),
		Outcome:    string(r.Outcome.Kind),
		Status:     r.Outcome.StatusValue(),
		Detail:     r.Outcome.Detail,
		Attempts:   r.Attempts,
		WriteError: r.WriteError,
		Timestamp:  r.At.UTC().Format(time.RFC3339),
		TTL:        l.expiry(),
	})
}

// RecordSummary stores the final run summary.
func (l *Ledger) RecordSummary(ctx context.Context, s domain.RunSummary) error {
	return l.put(ctx, SummaryItem{
		PK:          partitionKey(s.RunID),
		SK:          SummarySortKey,
		Table:       l.tableID,
		Seen:        s.Seen,
		Eligible:    s.Eligible,
		Sent:        s.Sent,
		Failed:      s.Failed,
		Skipped:     s.Skipped,
		Interrupted: s.Interrupted,
		Reason:      s.Reason,
		StartedAt:   s.StartedAt.UTC().Format(time.RFC3339),
		DurationMS:  s.Duration.Milliseconds(),
		TTL:         l.expiry(),
	})
}

func (l *Ledger) put(ctx context.Context, item interface{}) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling ledger item: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting ledger item to DynamoDB: %w", err)
	}
	return nil
}
