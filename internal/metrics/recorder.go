// Package metrics publishes order business metrics to CloudWatch.
package metrics

import (
	"context"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/aws"
)

// Rejection reasons reported with OrderRejected.
const (
	ReasonProductNotFound   = "product_not_found"
	ReasonInsufficientStock = "insufficient_stock"
)

// Recorder receives order outcomes. Delivery failures are logged, never
// returned to the caller.
type Recorder interface {
	OrderPlaced(ctx context.Context, amount float64)
	OrderRejected(ctx context.Context, reason string)
}

// Nop discards every metric.
type Nop struct{}

func (Nop) OrderPlaced(context.Context, float64)  {}
func (Nop) OrderRejected(context.Context, string) {}

// DefaultPublishTimeout bounds one PutMetricData call.
const DefaultPublishTimeout = 2 * time.Second

// CloudWatch writes metrics with PutMetricData under one namespace. Each
// publish is detached from the caller's cancellation and capped by timeout,
// so a slow endpoint delays a request by at most that long.
type CloudWatch struct {
	client    aws.CloudWatchAPI
	namespace string
	log       logrus.FieldLogger
	timeout   time.Duration
	nowFunc   func() time.Time
}

func NewCloudWatch(client aws.CloudWatchAPI, namespace string, log logrus.FieldLogger) *CloudWatch {
	return &CloudWatch{
		client:    client,
		namespace: namespace,
		log:       log,
		timeout:   DefaultPublishTimeout,
		nowFunc:   time.Now,
	}
}

func (c *CloudWatch) OrderPlaced(ctx context.Context, amount float64) {
	now := c.nowFunc()
	c.put(ctx, []types.MetricDatum{
		{
			MetricName: sdkaws.String("OrdersPlaced"),
			Timestamp:  &now,
			Unit:       types.StandardUnitCount,
			Value:      sdkaws.Float64(1),
		},
		{
			MetricName: sdkaws.String("OrderValue"),
			Timestamp:  &now,
			Unit:       types.StandardUnitNone,
			Value:      sdkaws.Float64(amount),
		},
	})
}

func (c *CloudWatch) OrderRejected(ctx context.Context, reason string) {
	now := c.nowFunc()
	c.put(ctx, []types.MetricDatum{
		{
			MetricName: sdkaws.String("OrderRejected"),
			Dimensions: []types.Dimension{{Name: sdkaws.String("Reason"), Value: sdkaws.String(reason)}},
			Timestamp:  &now,
			Unit:       types.StandardUnitCount,
			Value:      sdkaws.Float64(1),
		},
	})
}

func (c *CloudWatch) put(ctx context.Context, data []types.MetricDatum) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &c.namespace,
		MetricData: data,
	})
	if err != nil {
		c.log.WithError(err).Warn("failed to publish metrics")
	}
}
