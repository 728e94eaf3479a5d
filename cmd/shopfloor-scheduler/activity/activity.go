// Copyright 2023 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package activity is the fire-and-forget sink the lifecycle controller
// notifies on start and complete. Publishing never fails a transition: send
// errors are logged and dropped.
package activity

import (
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/models"
	"go.uber.org/zap"
)

const (
	EventAssignmentStarted   = "assignment.started"
	EventAssignmentCompleted = "assignment.completed"
)

// Event is one activity notification.
type Event struct {
	Type             string                      `json:"type"`
	AssignmentID     string                      `json:"assignmentId"`
	WorkerID         string                      `json:"workerId"`
	NodeID           string                      `json:"nodeId"`
	QuantityProduced decimal.Decimal             `json:"quantityProduced"`
	DefectQuantity   decimal.Decimal             `json:"defectQuantity"`
	InputScrap       models.QuantityMap          `json:"inputScrap,omitempty"`
	ProductionScrap  models.QuantityMap          `json:"productionScrap,omitempty"`
	Adjustments      []models.MaterialAdjustment `json:"adjustments,omitempty"`
	Timestamp        time.Time                   `json:"timestamp"`
}

// Sink receives lifecycle events. Implementations must not block the caller
// and must not propagate failures.
type Sink interface {
	Publish(event Event)
	Close()
}

// LogSink writes events to the service log only. Used when no kafka brokers
// are configured.
type LogSink struct{}

func (LogSink) Publish(event Event) {
	zap.S().Infow("activity",
		"type", event.Type,
		"assignmentId", event.AssignmentID,
		"workerId", event.WorkerID,
		"quantityProduced", event.QuantityProduced,
		"defectQuantity", event.DefectQuantity,
	)
}

func (LogSink) Close() {}

// KafkaSink publishes events to a kafka topic through an async producer.
type KafkaSink struct {
	producer sarama.AsyncProducer
	topic    string
}

// NewKafkaSink connects to the brokers (comma separated) and starts the
// error drain. The producer does not wait for acks; activity logging is
// best-effort by design.
func NewKafkaSink(brokers string, topic string) (*KafkaSink, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.NoResponse
	config.Producer.Return.Errors = true
	config.Producer.Return.Successes = false

	producer, err := sarama.NewAsyncProducer(strings.Split(brokers, ","), config)
	if err != nil {
		return nil, err
	}

	sink := &KafkaSink{producer: producer, topic: topic}
	go sink.drainErrors()
	return sink, nil
}

func (k *KafkaSink) drainErrors() {
	for producerError := range k.producer.Errors() {
		zap.S().Warnf("Failed to publish activity event: %s", producerError.Err)
	}
}

func (k *KafkaSink) Publish(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		zap.S().Warnf("Failed to marshal activity event: %s", err)
		return
	}
	select {
	case k.producer.Input() <- &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(event.AssignmentID),
		Value: sarama.ByteEncoder(payload),
	}:
	default:
		// Dropping is preferable to blocking a transition on a full buffer
		zap.S().Warnf("Activity producer buffer full, dropping event for %s", event.AssignmentID)
	}
}

func (k *KafkaSink) Close() {
	k.producer.AsyncClose()
}
