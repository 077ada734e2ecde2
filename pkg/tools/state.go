package tools

import (
	"sync"

	"github.com/jingkaihe/skill-engine/pkg/featureset"
	tooltypes "github.com/jingkaihe/skill-engine/pkg/types/tools"
)

var _ tooltypes.State = &BasicState{}

// BasicState holds what an agent run produces. It is safe for concurrent use.
type BasicState struct {
	mu         sync.RWMutex
	featureSet *featureset.FeatureSet
}

// NewBasicState returns an empty state for one agent run.
func NewBasicState() *BasicState {
	return &BasicState{}
}

// FeatureSet returns the last emitted feature set, or nil.
func (s *BasicState) FeatureSet() *featureset.FeatureSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.featureSet == nil {
		return nil
	}
	fs := *s.featureSet
	return &fs
}

func (s *BasicState) SetFeatureSet(fs featureset.FeatureSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.featureSet = &fs
}
