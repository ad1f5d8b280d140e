package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/mq"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fluxshare/internal/services/scanner"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAck 记录消息的确认结果
type fakeAck struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (a *fakeAck) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.requeued = requeue
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func delivery(t *testing.T, body any) (amqp.Delivery, *fakeAck) {
	t.Helper()
	ack := &fakeAck{}
	raw, ok := body.([]byte)
	if !ok {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	return amqp.Delivery{Acknowledger: ack, Body: raw}, ack
}

type fakeScans struct {
	scanner.ScanService
	enabled bool
	scanned []uint64
	err     error
}

func (s *fakeScans) Enabled() bool { return s.enabled }

func (s *fakeScans) ScanFile(ctx context.Context, fileID uint64) error {
	s.scanned = append(s.scanned, fileID)
	return s.err
}

type fakeStorage struct {
	storage.StorageService
	err     error
	removed []string
}

func (s *fakeStorage) RemoveObject(ctx context.Context, key string) error {
	if s.err != nil {
		return s.err
	}
	s.removed = append(s.removed, key)
	return nil
}

type fakeConsumer struct {
	declared []string
	handlers map[string]func(amqp.Delivery)
}

func (c *fakeConsumer) DeclareQueue(queueName string) (amqp.Queue, error) {
	c.declared = append(c.declared, queueName)
	return amqp.Queue{Name: queueName}, nil
}

func (c *fakeConsumer) Consume(ctx context.Context, queueName string, handler func(msg amqp.Delivery)) error {
	c.handlers[queueName] = handler
	return nil
}

func TestHandleScan(t *testing.T) {
	scans := &fakeScans{enabled: true}
	w := NewScanWorker(&fakeConsumer{}, scans)

	msg, ack := delivery(t, models.ScanFileTask{FileID: 5})
	w.HandleScan(context.Background(), msg)
	assert.Equal(t, []uint64{5}, scans.scanned)
	assert.True(t, ack.acked)
}

func TestHandleScan_FailureStillAcks(t *testing.T) {
	scans := &fakeScans{enabled: true, err: errors.New("clamd down")}
	w := NewScanWorker(&fakeConsumer{}, scans)

	msg, ack := delivery(t, models.ScanFileTask{FileID: 5})
	w.HandleScan(context.Background(), msg)
	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
}

func TestHandleScan_MalformedTask(t *testing.T) {
	scans := &fakeScans{enabled: true}
	w := NewScanWorker(&fakeConsumer{}, scans)

	msg, ack := delivery(t, []byte("{not json"))
	w.HandleScan(context.Background(), msg)
	assert.Empty(t, scans.scanned)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeued)
}

func TestHandleDelete(t *testing.T) {
	store := &fakeStorage{}
	w := NewDeleteWorker(&fakeConsumer{}, store)

	msg, ack := delivery(t, models.DeleteObjectTask{FileID: 1, StorageKey: "7/report.pdf"})
	w.HandleDelete(context.Background(), msg)
	assert.Equal(t, []string{"7/report.pdf"}, store.removed)
	assert.True(t, ack.acked)
}

func TestHandleDelete_RequeuesOnFailure(t *testing.T) {
	store := &fakeStorage{err: errors.New("timeout")}
	w := NewDeleteWorker(&fakeConsumer{}, store)
	w.maxElapsed = 10 * time.Millisecond

	msg, ack := delivery(t, models.DeleteObjectTask{FileID: 1, StorageKey: "7/report.pdf"})
	w.HandleDelete(context.Background(), msg)
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeued)
}

func TestStartAllWorkers(t *testing.T) {
	consumer := &fakeConsumer{handlers: make(map[string]func(amqp.Delivery))}
	scans := &fakeScans{enabled: true}

	require.NoError(t, StartAllWorkers(context.Background(), consumer, scans, &fakeStorage{}))
	assert.ElementsMatch(t, []string{mq.DeleteQueueName, mq.ScanQueueName}, consumer.declared)

	// 回调会分发到对应的 Worker
	msg, ack := delivery(t, models.ScanFileTask{FileID: 8})
	consumer.handlers[mq.ScanQueueName](msg)
	assert.Equal(t, []uint64{8}, scans.scanned)
	assert.True(t, ack.acked)
}

func TestStartAllWorkers_ScanDisabled(t *testing.T) {
	consumer := &fakeConsumer{handlers: make(map[string]func(amqp.Delivery))}

	require.NoError(t, StartAllWorkers(context.Background(), consumer, &fakeScans{}, &fakeStorage{}))
	assert.Equal(t, []string{mq.DeleteQueueName}, consumer.declared)
}
