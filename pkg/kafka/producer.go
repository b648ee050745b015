package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	EventReportedChanged = "reported.changed"
	EventErpRequestSent  = "erp.request.sent"
)

type Config struct {
	Brokers     []string
	EventsTopic string
}

// ParseConfig splits a comma separated broker list.
func ParseConfig(brokers string, eventsTopic string) Config {
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}
	return Config{
		Brokers:     brokerList,
		EventsTopic: eventsTopic,
	}
}

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer MessageWriter
	logger ectologger.Logger
	topic  string
}

func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.EventsTopic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		// dev brokers may not have the topic yet
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(writer, cfg.EventsTopic, logger)
}

func NewProducerWithWriter(writer MessageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// ReportedChangedEvent is emitted after a reconciliation replaced the reported data of one key.
type ReportedChangedEvent struct {
	Type           string    `json:"type"`
	AssetType      string    `json:"asset_type"`
	Direction      string    `json:"direction,omitempty"`
	MaterialNumber string    `json:"material_number"`
	PartnerID      string    `json:"partner_id"`
	PartnerBpnl    string    `json:"partner_bpnl"`
	Records        int       `json:"records"`
	Route          string    `json:"route"`
	Timestamp      time.Time `json:"timestamp"`
	TraceID        string    `json:"trace_id,omitempty"`
}

// ErpRequestSentEvent is emitted when the ERP adapter acknowledged a request.
type ErpRequestSentEvent struct {
	Type           string    `json:"type"`
	RequestID      string    `json:"request_id"`
	PartnerBpnl    string    `json:"partner_bpnl"`
	MaterialNumber string    `json:"material_number"`
	AssetType      string    `json:"asset_type"`
	Direction      string    `json:"direction"`
	ResponseCode   int       `json:"response_code"`
	Timestamp      time.Time `json:"timestamp"`
	TraceID        string    `json:"trace_id,omitempty"`
}

func (p *Producer) PublishReportedChanged(ctx context.Context, evt *ReportedChangedEvent) error {
	if evt == nil {
		return fmt.Errorf("reported changed event is nil")
	}
	evt.Type = EventReportedChanged
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.TraceID = tracing.GetTraceID(ctx)

	key := fmt.Sprintf("%s:%s:%s", evt.PartnerBpnl, evt.MaterialNumber, evt.AssetType)
	return p.publish(ctx, evt.Type, key, evt, map[string]string{
		"partner_bpnl": evt.PartnerBpnl,
		"asset_type":   evt.AssetType,
	})
}

func (p *Producer) PublishErpRequestSent(ctx context.Context, evt *ErpRequestSentEvent) error {
	if evt == nil {
		return fmt.Errorf("erp request event is nil")
	}
	evt.Type = EventErpRequestSent
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.TraceID = tracing.GetTraceID(ctx)

	return p.publish(ctx, evt.Type, evt.RequestID, evt, map[string]string{
		"partner_bpnl": evt.PartnerBpnl,
		"asset_type":   evt.AssetType,
	})
}

func (p *Producer) publish(ctx context.Context, eventType, key string, value any, extra map[string]string) error {
	ctx, span := tracing.StartSpan(ctx, "Producer.Publish")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("event.type", eventType),
	)

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	headers := []kafka.Header{{Key: "type", Value: []byte(eventType)}}
	for k, v := range extra {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	// W3C trace context for downstream consumers
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}
	if tracestate := tracing.GetTraceState(ctx); tracestate != "" {
		headers = append(headers, kafka.Header{Key: "tracestate", Value: []byte(tracestate)})
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		metrics.RecordKafkaPublish(p.topic, "error", time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish message")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish %s to Kafka topic %s", eventType, p.topic)
		return err
	}

	metrics.RecordKafkaPublish(p.topic, "success", time.Since(start).Seconds())
	span.SetStatus(codes.Ok, "message published")
	p.logger.WithContext(ctx).Debugf("Published %s to Kafka: key=%s", eventType, key)
	return nil
}
