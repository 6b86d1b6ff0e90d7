package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

// dependency is something the worker must reach before it starts consuming.
type dependency struct {
	name string
	ping func(context.Context) error
}

type consumer interface {
	Run(context.Context) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	Dependencies []dependency
	Consumer     consumer
}

type Service struct {
	logg     *logger.Logger
	deps     []dependency
	consumer consumer
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.Consumer == nil:
		return nil, errors.New("notification consumer is required")
	}
	for _, dep := range params.Dependencies {
		if dep.ping == nil {
			return nil, fmt.Errorf("%s client is required", dep.name)
		}
	}
	return &Service{logg: params.Logger, deps: params.Dependencies, consumer: params.Consumer}, nil
}

// ready pings each dependency in order and stops at the first failure.
func (s *Service) ready(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", dep.name), "worker.dependency_unreachable", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(s.logg.WithField(ctx, "dependencies", len(s.deps)), "worker.ready")
	return nil
}

// Run blocks until the consumer stops. Cancellation is reported as
// context.Canceled so the caller can tell a clean shutdown apart.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	err := s.consumer.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "worker.consumer_stopped", err)
	}
	return err
}
