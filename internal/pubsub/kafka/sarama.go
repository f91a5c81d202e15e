package kafka

import (
	"crypto/tls"
	"time"

	"github.com/Shopify/sarama"
	"github.com/assistly/billing/internal/config"
)

// saramaConfig builds the client config shared by the publisher and subscriber
func saramaConfig(cfg *config.Configuration) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_1_0_0
	sc.ClientID = cfg.Kafka.ClientID

	// events are keyed by aggregate, wait for all replicas before acking
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true

	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Offsets.AutoCommit.Enable = true
	sc.Consumer.Offsets.AutoCommit.Interval = 5 * time.Second

	if cfg.Kafka.TLS {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return sc
}
