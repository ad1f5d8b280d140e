package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	ScanQueueName   = "file_scan_queue"
	DeleteQueueName = "file_delete_queue"
)

// Publisher 向指定队列投递消息
type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// RabbitMQClient 封装了 RabbitMQ 的连接和通道
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex // amqp.Channel 的发布操作不是并发安全的
}

var _ Publisher = (*RabbitMQClient)(nil)

// NewRabbitMQClient 创建一个新的 RabbitMQ 客户端实例
// 启动阶段 broker 可能尚未就绪，连接失败时按指数退避重试
func NewRabbitMQClient(ctx context.Context, amqpURL string) (*RabbitMQClient, error) {
	var conn *amqp.Connection
	policy := backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(30*time.Second)), ctx)
	err := backoff.RetryNotify(func() error {
		var dialErr error
		conn, dialErr = amqp.Dial(amqpURL)
		return dialErr
	}, policy, func(err error, wait time.Duration) {
		logger.Warn("RabbitMQ 连接失败，稍后重试", zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: ch,
	}, nil
}

// DeclareQueue 声明一个队列
func (c *RabbitMQClient) DeclareQueue(queueName string) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
}

// Publish a message to a specific queue
func (c *RabbitMQClient) Publish(ctx context.Context, queueName string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel.Publish(
		"",        // exchange (default)
		queueName, // routing key (queue name)
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent, // make message persistent
			Timestamp:    time.Now(),
		},
	)
}

// Consume messages from a specific queue
// ctx 结束后停止分发，已取出的消息交给 handler 处理完
func (c *RabbitMQClient) Consume(ctx context.Context, queueName string, handler func(msg amqp.Delivery)) error {
	c.mu.Lock()
	msgs, err := c.channel.Consume(
		queueName,
		"",    // consumer
		false, // auto-ack (we will manually ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				handler(msg)
			}
		}
	}()

	logger.Info("Waiting for messages", zap.String("queue", queueName))
	return nil
}

// Ping 检查连接是否仍然可用
func (c *RabbitMQClient) Ping() error {
	if c.conn == nil || c.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection closed")
	}
	return nil
}

// Close the channel and connection
func (c *RabbitMQClient) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
