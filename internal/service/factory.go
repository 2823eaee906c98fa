package service

import (
	"errors"

	"airoi.app/assessor/internal/capability"
	"airoi.app/assessor/internal/queue"
)

// ErrInvalidState is wrapped by every error caused by acting on a session or
// assessment in the wrong lifecycle state.
var ErrInvalidState = errors.New("invalid state")

type Services struct {
	stores    StoreProvider
	txRunner  TxRunner
	discovery DiscoveryAgent
	producer  queue.Producer
	matrix    capability.Matrix
}

func NewServices(stores StoreProvider, txRunner TxRunner, discovery DiscoveryAgent, producer queue.Producer, matrix capability.Matrix) *Services {
	return &Services{
		stores:    stores,
		txRunner:  txRunner,
		discovery: discovery,
		producer:  producer,
		matrix:    matrix,
	}
}

func (s *Services) Sessions() SessionService {
	return NewSessionService(s.stores.Sessions(), s.stores.Conversations(), s.txRunner, s.discovery)
}

func (s *Services) Assessments() AssessmentService {
	return NewAssessmentService(s.stores.Sessions(), s.stores.Conversations(), s.stores.Assessments(), s.txRunner, s.producer)
}

func (s *Services) Capabilities() capability.Matrix {
	return s.matrix
}
