package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ph-monitor/internal/models"
)

// ReadingStore persists accepted readings
type ReadingStore interface {
	SaveReading(ctx context.Context, reading models.Reading) error
}

// SensorService persists incoming pH states and routes them to their sessions
type SensorService struct {
	store    ReadingStore
	registry *Registry

	// Input channel from the MQTT subscriber
	ChangeChan chan models.StateChange

	saveTimeout time.Duration
	log         *slog.Logger
}

// SensorServiceConfig holds configuration for sensor service
type SensorServiceConfig struct {
	ChangeChannelSize int
	SaveTimeout       time.Duration
}

// DefaultSensorServiceConfig returns default configuration
func DefaultSensorServiceConfig() SensorServiceConfig {
	return SensorServiceConfig{
		ChangeChannelSize: 100,
		SaveTimeout:       5 * time.Second,
	}
}

// NewSensorService creates a new sensor service. store may be nil.
func NewSensorService(store ReadingStore, registry *Registry, config SensorServiceConfig) *SensorService {
	return &SensorService{
		store:       store,
		registry:    registry,
		ChangeChan:  make(chan models.StateChange, config.ChangeChannelSize),
		saveTimeout: config.SaveTimeout,
		log:         slog.Default().With("component", "sensor_service"),
	}
}

// Start processes state changes until ctx is cancelled
func (s *SensorService) Start(ctx context.Context) {
	s.log.Info("sensor service started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sensor service stopped")
			return
		case change, ok := <-s.ChangeChan:
			if !ok {
				return
			}
			s.process(ctx, change)
		}
	}
}

// process handles a single state change
func (s *SensorService) process(ctx context.Context, change models.StateChange) {
	if change.New != nil && s.store != nil {
		// invalid states are reported by the session, only persist real readings
		if reading, err := ParseReading(change.New.Source, change.New); err == nil {
			if reading.Timestamp.IsZero() {
				reading.Timestamp = time.Now()
			}
			s.save(ctx, reading)
		}
	}

	if err := s.registry.Route(change); err != nil {
		switch {
		case errors.Is(err, ErrUnknownSession):
			s.log.Debug("no monitor for source", "error", err)
		case errors.Is(err, ErrQueueFull):
			s.log.Warn("session queue full, dropping state", "error", err)
		default:
			s.log.Error("failed to route state", "error", err)
		}
	}
}

func (s *SensorService) save(ctx context.Context, reading models.Reading) {
	if s.saveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.saveTimeout)
		defer cancel()
	}
	if err := s.store.SaveReading(ctx, reading); err != nil {
		s.log.Error("failed to save reading", "source", reading.Source, "error", err)
	}
}
