package rabbitmq_common

import (
	"fmt"
	"net/url"
)

// Config holds the settings shared by consumers and publishers.
type Config struct {
	URL string
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("rabbitmq url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq url is malformed: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return fmt.Errorf("rabbitmq url must use amqp or amqps scheme, got %q", u.Scheme)
	}
	return nil
}
