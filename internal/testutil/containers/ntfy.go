//go:build integration

package containers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const ntfyPort = "80/tcp"

// NtfyContainer wraps an anonymous, HTTP-only ntfy server.
type NtfyContainer struct {
	container testcontainers.Container
	host      string
	client    *resty.Client
}

// NtfyMessage is one cached message returned by the poll endpoint.
type NtfyMessage struct {
	ID      string `json:"id"`
	Time    int64  `json:"time"`
	Event   string `json:"event"`
	Topic   string `json:"topic"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// NewNtfyContainer starts binwiederhier/ntfy. imageTag defaults to "latest".
func NewNtfyContainer(ctx context.Context, imageTag string) (*NtfyContainer, error) {
	if imageTag == "" {
		imageTag = "latest"
	}

	req := testcontainers.ContainerRequest{
		Image:        "binwiederhier/ntfy:" + imageTag,
		ExposedPorts: []string{ntfyPort},
		Cmd:          []string{"serve", "--cache-file=/tmp/ntfy/cache.db"},
		WaitingFor: wait.ForHTTP("/v1/health").
			WithPort(ntfyPort).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start ntfy container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, ntfyPort)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	nc := &NtfyContainer{
		container: container,
		host:      net.JoinHostPort(host, strconv.Itoa(port.Int())),
	}
	nc.client = resty.New().SetBaseURL("http://" + nc.host).SetTimeout(10 * time.Second)
	return nc, nil
}

// Host returns host:port of the server.
func (c *NtfyContainer) Host() string {
	return c.host
}

// ShoutrrrURL returns a shoutrrr service URL that publishes to topic over
// plain HTTP.
func (c *NtfyContainer) ShoutrrrURL(topic string) string {
	return fmt.Sprintf("ntfy://%s/%s?scheme=http", c.host, topic)
}

// PollMessages returns every cached message on topic.
func (c *NtfyContainer) PollMessages(ctx context.Context, topic string) ([]NtfyMessage, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"poll": "1", "since": "all"}).
		Get("/" + topic + "/json")
	if err != nil {
		return nil, fmt.Errorf("poll %s: %w", topic, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("poll %s: status %d", topic, resp.StatusCode())
	}

	// one JSON object per line
	var messages []NtfyMessage
	scanner := bufio.NewScanner(bytes.NewReader(resp.Body()))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var msg NtfyMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, fmt.Errorf("decode ntfy message: %w", err)
		}
		if msg.Event == "message" {
			messages = append(messages, msg)
		}
	}
	return messages, scanner.Err()
}

// Terminate stops and removes the container.
func (c *NtfyContainer) Terminate(ctx context.Context) error {
	if c.container == nil {
		return nil
	}
	return c.container.Terminate(ctx)
}
