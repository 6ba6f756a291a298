package signals

import (
	"context"
	"errors"
	"sync"

	"github.com/renewos/renewos/pkg/models"
)

// ErrSignalsNotFound indicates the signal store has no record for the
// customer.
var ErrSignalsNotFound = errors.New("customer signals not found")

// Source reads customer signals. The store itself is an external
// collaborator; the engine only consumes its numeric outputs.
type Source interface {
	GetSignals(ctx context.Context, customerID string) (*models.CustomerSignals, error)
}

// StaticSource is an in-memory Source used by tests and local development.
type StaticSource struct {
	mu     sync.RWMutex
	byCust map[string]*models.CustomerSignals
}

func NewStaticSource() *StaticSource {
	return &StaticSource{byCust: make(map[string]*models.CustomerSignals)}
}

func (s *StaticSource) Set(signals *models.CustomerSignals) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byCust[signals.CustomerID] = signals
}

func (s *StaticSource) GetSignals(_ context.Context, customerID string) (*models.CustomerSignals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	signals, ok := s.byCust[customerID]
	if !ok {
		return nil, ErrSignalsNotFound
	}

	clone := *signals

	return &clone, nil
}
