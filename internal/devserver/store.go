// Package devserver is an in-memory Tribe Service for local development and
// integration tests. It serves the same JSON contract as the real backend
// but does not run the simulation: a tick only advances the day counter.
package devserver

import (
	_ "embed"
	"os"
	"slices"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/genericsim/tribectl/internal/model"
)

//go:embed seed.yaml
var defaultSeed []byte

// ErrTribeNotFound is returned for unknown tribe ids.
var ErrTribeNotFound = eris.New("tribe not found")

// ErrInvalidPolicy is returned when an update carries a value the backend rejects.
var ErrInvalidPolicy = eris.New("invalid policy")

type seedFile struct {
	Tribes []seedTribe `yaml:"tribes"`
}

type seedTribe struct {
	ID             int64           `yaml:"id"`
	Name           string          `yaml:"name"`
	Description    string          `yaml:"description"`
	CurrentTick    int64           `yaml:"current_tick"`
	BondLevel      int             `yaml:"bond_level"`
	Resources      model.Resources `yaml:"resources"`
	CentralStorage model.Resources `yaml:"central_storage"`
	Policy         *model.Policy   `yaml:"policy"`
	Members        []model.Person  `yaml:"members"`
	Families       []model.Family  `yaml:"families"`
}

func (t seedTribe) state() model.TribeState {
	policy := model.DefaultPolicy()
	if t.Policy != nil {
		policy = *t.Policy
	}
	return model.TribeState{
		ID:             t.ID,
		Name:           t.Name,
		Description:    t.Description,
		CurrentTick:    t.CurrentTick,
		BondLevel:      t.BondLevel,
		Resources:      t.Resources,
		CentralStorage: t.CentralStorage,
		Policy:         policy,
		Members:        t.Members,
		Families:       t.Families,
	}
}

// Store holds tribe state in memory.
type Store struct {
	mu     sync.RWMutex
	tribes map[int64]model.TribeState
}

// ParseSeed builds a store from YAML seed data.
func ParseSeed(data []byte) (*Store, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "devserver: parse seed")
	}

	s := &Store{tribes: make(map[int64]model.TribeState, len(f.Tribes))}
	for _, t := range f.Tribes {
		if t.ID <= 0 {
			return nil, eris.Errorf("devserver: seed tribe %q has no id", t.Name)
		}
		if _, dup := s.tribes[t.ID]; dup {
			return nil, eris.Errorf("devserver: duplicate seed tribe id %d", t.ID)
		}
		st := t.state()
		if !st.Policy.SharingPriority.Valid() {
			return nil, eris.Wrapf(ErrInvalidPolicy, "devserver: seed tribe %d sharing priority %q", t.ID, st.Policy.SharingPriority)
		}
		s.tribes[t.ID] = st
	}
	return s, nil
}

// LoadSeed reads a seed file. An empty path loads the built-in seed.
func LoadSeed(path string) (*Store, error) {
	if path == "" {
		return ParseSeed(defaultSeed)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "devserver: read seed %s", path)
	}
	return ParseSeed(data)
}

// List returns every tribe ordered by id.
func (s *Store) List() []model.TribeState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.TribeState, 0, len(s.tribes))
	for _, t := range s.tribes {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b model.TribeState) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Get returns one tribe.
func (s *Store) Get(id int64) (model.TribeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tribes[id]
	if !ok {
		return model.TribeState{}, eris.Wrapf(ErrTribeNotFound, "tribe %d", id)
	}
	return t, nil
}

// UpdatePolicy merges the non-nil fields of u into the tribe's policy. An
// unknown sharing priority rejects the whole update.
func (s *Store) UpdatePolicy(id int64, u model.PolicyUpdate) (model.TribeState, error) {
	if u.SharingPriority != nil && !u.SharingPriority.Valid() {
		return model.TribeState{}, eris.Wrapf(ErrInvalidPolicy, "unknown sharing priority %q", *u.SharingPriority)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tribes[id]
	if !ok {
		return model.TribeState{}, eris.Wrapf(ErrTribeNotFound, "tribe %d", id)
	}
	t.Policy = u.Apply(t.Policy)
	s.tribes[id] = t
	return t, nil
}

// Tick advances the tribe's day counter.
func (s *Store) Tick(id int64) (model.TribeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tribes[id]
	if !ok {
		return model.TribeState{}, eris.Wrapf(ErrTribeNotFound, "tribe %d", id)
	}
	t.CurrentTick++
	s.tribes[id] = t
	return t, nil
}
