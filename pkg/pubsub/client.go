package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/gcp"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoResources       = errors.New("no pubsub topics or subscriptions configured")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Resources lists the topics and subscriptions a binary depends on. Names may
// be short ids or full resource names.
type Resources struct {
	Topics        []string
	Subscriptions []string
}

// PublisherResources covers every topic the outbox routes events to.
func PublisherResources(cfg config.PubSubConfig) Resources {
	return Resources{Topics: nonBlank(cfg.OrdersTopic, cfg.AccountsTopic, cfg.CatalogTopic)}
}

// AnalyticsResources covers the subscription the analytics worker drains.
func AnalyticsResources(cfg config.PubSubConfig) Resources {
	return Resources{Subscriptions: nonBlank(cfg.AnalyticsSubscription)}
}

type Client struct {
	client    *pubsub.Client
	projectID string
	res       Resources
}

// NewClient creates a Pub/Sub v2 client and fails unless every declared
// resource exists.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, res Resources, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcpCfg.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	if len(res.Topics) == 0 && len(res.Subscriptions) == 0 {
		return nil, errNoResources
	}

	psClient, err := pubsub.NewClient(ctx, projectID, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: psClient, projectID: projectID, res: res}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"topics":        len(res.Topics),
			"subscriptions": len(res.Subscriptions),
		})
		logg.Info(ctx, "pubsub client initialized")
	}
	return c, nil
}

// Ping checks that every declared topic and subscription still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	for _, name := range c.res.Topics {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
			Topic: c.topicName(name),
		})
		if err := describeLookup("topic", name, err); err != nil {
			return err
		}
	}
	for _, name := range c.res.Subscriptions {
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
			Subscription: c.subscriptionName(name),
		})
		if err := describeLookup("subscription", name, err); err != nil {
			return err
		}
	}
	return nil
}

// Subscription returns a subscriber handle, or nil when name is blank.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.subscriptionName(name)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

// Publisher returns a publisher handle, or nil when name is blank.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.topicName(name)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) topicName(name string) string {
	return gcp.ResourceName(c.projectID, "topics", name)
}

func (c *Client) subscriptionName(name string) string {
	return gcp.ResourceName(c.projectID, "subscriptions", name)
}

// describeLookup turns a gRPC lookup failure into a readable startup error.
func describeLookup(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

func nonBlank(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
