// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/Thermoquad/boardlink/pkg/lineproto"
	"github.com/Thermoquad/boardlink/pkg/link"
	"github.com/Thermoquad/boardlink/pkg/publish"
	"github.com/rs/zerolog/log"
)

// session bundles the long-running pieces shared by monitor and control:
// the snapshot store, the link worker and the optional MQTT publisher.
type session struct {
	store     *link.Store
	worker    *link.Worker
	publisher *publish.MQTTPublisher
	connInfo  string
}

// newSession builds a worker from the effective configuration
func newSession(opts ...link.Option) (*session, error) {
	conn, err := newConnector()
	if err != nil {
		return nil, err
	}

	defaults, err := cfg.Defaults()
	if err != nil {
		return nil, err
	}
	workerCfg, err := cfg.WorkerConfig()
	if err != nil {
		return nil, err
	}

	store := link.NewStore(lineproto.NewState(defaults))
	return &session{
		store:    store,
		worker:   link.NewWorker(conn.Dialer(), store, workerCfg, opts...),
		connInfo: conn.Describe(),
	}, nil
}

// start launches the worker and, when a broker is configured, the publisher
func (s *session) start(ctx context.Context) error {
	if cfg.MQTT.Broker != "" {
		s.publisher = publish.NewMQTTPublisher(cfg.MQTT.Broker, cfg.MQTT.Topic, cfg.MQTT.CommandTopic)
		if err := s.publisher.Start(s.store, s.worker); err != nil {
			return fmt.Errorf("failed to start MQTT publisher: %w", err)
		}
	}

	if err := s.worker.Start(ctx); err != nil {
		s.stopPublisher()
		return err
	}
	log.Info().Str("connection", s.connInfo).Msg("link worker started")
	return nil
}

// stop shuts the worker down first so the final STOPPED snapshot is published
func (s *session) stop() {
	s.worker.Stop()
	s.stopPublisher()
}

func (s *session) stopPublisher() {
	if s.publisher != nil {
		s.publisher.Stop()
	}
}

// Reset restores the configured device state and zeroes the link statistics
func (s *session) Reset() {
	s.store.Reset()
	s.worker.ResetStats()
}
