package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/mapsearch/internal/cache/redisstore"
	"github.com/mohammed-shakir/mapsearch/internal/core/httpclient"
	"github.com/mohammed-shakir/mapsearch/internal/searchevents"
	"github.com/mohammed-shakir/mapsearch/internal/transport"
)

type checkOptions struct {
	redis   string
	backend string
	payload string
	brokers string
	topic   string
	timeout time.Duration
}

func newCheckCmd() *cobra.Command {
	var o checkOptions
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Smoke-test the dependencies of a deployment",
		Long: `Round-trips a key through redis, runs one search against the backend and
produces one test event to Kafka. Dependencies whose flag is empty are
skipped. Exits non-zero on the first failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
			defer cancel()
			return runCheck(ctx, cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().StringVar(&o.redis, "redis", "", "redis address, e.g. localhost:6379")
	cmd.Flags().StringVar(&o.backend, "backend", "", "search backend URL")
	cmd.Flags().StringVar(&o.payload, "payload", "pageView=map&json=true", "search payload sent to the backend")
	cmd.Flags().StringVar(&o.brokers, "brokers", "", "comma separated Kafka brokers")
	cmd.Flags().StringVar(&o.topic, "topic", "search-issued", "Kafka topic for the test event")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 20*time.Second, "overall timeout")
	return cmd
}

func runCheck(ctx context.Context, out io.Writer, o checkOptions) error {
	if o.redis != "" {
		if err := checkRedis(ctx, o.redis); err != nil {
			return err
		}
		fmt.Fprintln(out, "redis: ok")
	}
	if o.backend != "" {
		n, err := checkBackend(ctx, o.backend, o.payload)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "backend: ok (%d items)\n", n)
	}
	if o.brokers != "" {
		if err := checkKafka(strings.Split(o.brokers, ","), o.topic); err != nil {
			return err
		}
		fmt.Fprintln(out, "kafka: ok")
	}
	return nil
}

func checkRedis(ctx context.Context, addr string) error {
	c, err := redisstore.New(ctx, addr, redisstore.WithDialTimeout(2*time.Second))
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { _ = c.Close() }()

	const key = "searchctl:check"
	if err := c.Set(ctx, key, []byte("ok"), 30*time.Second); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	v, ok, err := c.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	if !ok || string(v) != "ok" {
		return fmt.Errorf("redis get: read back %q", v)
	}
	return c.Del(ctx, key)
}

func checkBackend(ctx context.Context, url, payload string) (int, error) {
	c, err := transport.New(nil, httpclient.NewOutbound(), url, 0)
	if err != nil {
		return 0, fmt.Errorf("backend: %w", err)
	}
	res, err := c.Fetch(ctx, payload)
	if err != nil {
		return 0, fmt.Errorf("backend: %w", err)
	}
	return len(res.Items), nil
}

func checkKafka(brokers []string, topic string) error {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Version = sarama.V2_5_0_0
	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	defer func() { _ = prod.Close() }()

	b, _ := json.Marshal(searchevents.Event{Outcome: "check", TS: time.Now().UTC()})
	if _, _, err := prod.SendMessage(&sarama.ProducerMessage{Topic: topic, Value: sarama.ByteEncoder(b)}); err != nil {
		return fmt.Errorf("kafka send: %w", err)
	}
	return nil
}
