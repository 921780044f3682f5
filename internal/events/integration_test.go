//go:build integration

package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"viralbot/internal/domain"
	"viralbot/testdata/utils"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) TestConnection() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange",
		RoutingKey: "test-routing-key",
		QueueName:  "test-queue",
	}

	sink, err := NewRabbitMQ(cfg, s.logger)
	s.NoError(err)
	s.NotNil(sink)

	err = sink.Close()
	s.NoError(err)
}

func (s *RabbitMQIntegrationSuite) TestPublishPosted() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-posted",
		RoutingKey: "test-routing-key-posted",
		QueueName:  "test-queue-posted",
	}

	sink, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer sink.Close()

	now := time.Now().Truncate(time.Millisecond)
	post := &domain.Post{
		ContentFingerprint: "a1b2c3d4e5f60718",
		PostID:             "1234567890",
		SourceURL:          utils.Ptr("https://i.redd.it/top.png"),
		ContentType:        domain.ContentMeme,
		Caption:            "POV: it works on my machine",
		CaptionType:        "funny",
		Hashtags:           "#memes #funny",
		PostedAt:           now,
		PostedHour:         now.Hour(),
	}

	err = sink.Publish(s.ctx, ActionPosted, post)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)
	s.Equal("application/json", msg.ContentType)
	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)

	var received PostEvent
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)
	s.Equal(ActionPosted, received.Action)
	s.Equal("1234567890", received.Post.PostID)
	s.Equal("a1b2c3d4e5f60718", received.Post.ContentFingerprint)
	s.Equal(domain.ContentMeme, received.Post.ContentType)
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestPublishMetricsUpdated() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-metrics",
		RoutingKey: "test-routing-key-metrics",
		QueueName:  "test-queue-metrics",
	}

	sink, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer sink.Close()

	post := &domain.Post{
		PostID:         "1234567890",
		Impressions:    1000,
		Likes:          40,
		Retweets:       5,
		Replies:        5,
		EngagementRate: 5.0,
	}

	err = sink.Publish(s.ctx, ActionMetricsUpdated, post)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	var received PostEvent
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)
	s.Equal(ActionMetricsUpdated, received.Action)
	s.Equal(int64(1000), received.Post.Impressions)
	s.Equal(5.0, received.Post.EngagementRate)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}
