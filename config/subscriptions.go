package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tradebridge/models"
)

const defaultSubscriptionsPath = "config/subscriptions.yml"

var envSubscriptionPaths = map[string]string{
	environmentProduction: "config/subscriptions.production.yml",
	environmentStaging:    "config/subscriptions.staging.yml",
}

// SubscriptionFile is the caller-facing list of streams to open at start.
type SubscriptionFile struct {
	Subscriptions []models.Subscription `yaml:"subscriptions"`
}

// ResolveSubscriptionsPath returns the subscription file for APP_ENV.
func ResolveSubscriptionsPath(path string) string {
	return resolveEnvSpecificPath(path, defaultSubscriptionsPath, envSubscriptionPaths)
}

// LoadSubscriptions reads and validates a subscription file. Entries without
// a correlation id get one derived from their position.
func LoadSubscriptions(path string) ([]models.Subscription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subscriptions file: %w", err)
	}
	var file SubscriptionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse subscriptions file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Subscriptions))
	for i := range file.Subscriptions {
		sub := &file.Subscriptions[i]
		if sub.CorrelationID == "" {
			sub.CorrelationID = fmt.Sprintf("sub-%d", i+1)
		}
		if err := sub.Validate(); err != nil {
			return nil, fmt.Errorf("subscriptions[%d]: %w", i, err)
		}
		key := sub.Key()
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("subscriptions[%d]: duplicate subscription %q", i, sub.CorrelationID)
		}
		seen[key] = struct{}{}
	}
	return file.Subscriptions, nil
}
