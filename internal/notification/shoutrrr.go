package notification

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nicholas-fedor/shoutrrr"

	"github.com/smartgarden/gardend/internal/logger"
)

// SendFunc delivers a message to a shoutrrr service URL.
type SendFunc func(serviceURL, message string) error

// ShoutrrrChannel routes messages through shoutrrr, which covers ntfy, gotify,
// slack, pushover and the other services it knows.
type ShoutrrrChannel struct {
	send SendFunc
	log  logger.Logger
}

// NewShoutrrrChannel creates the shoutrrr channel. A nil send uses
// shoutrrr.Send. Config key: "url".
func NewShoutrrrChannel(send SendFunc, log logger.Logger) *ShoutrrrChannel {
	if send == nil {
		send = shoutrrr.Send
	}
	return &ShoutrrrChannel{send: send, log: log.With(logger.String("channel", TypeShoutrrr))}
}

func (c *ShoutrrrChannel) Type() string { return TypeShoutrrr }

func (c *ShoutrrrChannel) Deliver(ctx context.Context, cfg Config, msg Message) bool {
	serviceURL := cfg.String("url")
	if serviceURL == "" {
		c.log.Warn("shoutrrr url missing")
		return false
	}

	// shoutrrr has no context support; the send keeps running in the
	// background when ctx expires first. The dispatcher's recover does not
	// reach this goroutine, so panics are turned into errors here.
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("shoutrrr send panicked: %v", r)
			}
		}()
		done <- c.send(serviceURL, msg.Subject+"\n"+msg.Body)
	}()

	select {
	case err := <-done:
		if err != nil {
			c.log.Error("shoutrrr delivery failed",
				logger.String("service", serviceScheme(serviceURL)),
				logger.Error(err))
			return false
		}
		return true
	case <-ctx.Done():
		c.log.Warn("shoutrrr delivery timed out", logger.String("service", serviceScheme(serviceURL)))
		return false
	}
}

// serviceScheme returns only the scheme so credentials in the URL stay out of
// the logs.
func serviceScheme(serviceURL string) string {
	u, err := url.Parse(serviceURL)
	if err != nil || u.Scheme == "" {
		return "unknown"
	}
	return u.Scheme
}
