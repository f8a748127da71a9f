package group

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/atlasbio/atlas-search/internal/storage"
)

// maxConcurrentDecodes bounds result decoding when a group holds many
// searches
const maxConcurrentDecodes = 8

// Service manages named sample groups built from search results
type Service struct {
	store storage.Storage
}

// NewService creates a group service
func NewService(store storage.Storage) *Service {
	return &Service{store: store}
}

// Member is one sample that appeared in a group's search results
type Member struct {
	SampleID string  `json:"sample_id"`
	Percent  float64 `json:"percent"`
}

// Detail is a group with its searches and derived membership
type Detail struct {
	Group    *storage.Group
	Searches []*storage.Search
	Members  []Member
}

// Create registers a new named group
func (s *Service) Create(ctx context.Context, name string) (*storage.Group, error) {
	if name == "" {
		return nil, fmt.Errorf("group name cannot be empty")
	}
	g := &storage.Group{
		UID:  uuid.NewString(),
		Name: name,
	}
	if err := s.store.CreateGroup(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// AddSearch attaches an existing search to a group by name
func (s *Service) AddSearch(ctx context.Context, name string, searchID int64) error {
	g, err := s.store.GetGroupByName(ctx, name)
	if err != nil {
		return fmt.Errorf("lookup group %s: %w", name, err)
	}
	if _, err := s.store.GetSearchByID(ctx, searchID); err != nil {
		return fmt.Errorf("lookup search %d: %w", searchID, err)
	}
	return s.store.AddSearchToGroup(ctx, g.ID, searchID)
}

// Get returns a group with membership derived from its completed
// searches. Pending searches contribute nothing until they complete.
func (s *Service) Get(ctx context.Context, name string) (*Detail, error) {
	g, err := s.store.GetGroupByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("lookup group %s: %w", name, err)
	}

	searches, err := s.store.ListGroupSearches(ctx, g.ID)
	if err != nil {
		return nil, fmt.Errorf("list group searches: %w", err)
	}

	members, err := deriveMembers(ctx, searches)
	if err != nil {
		return nil, err
	}

	return &Detail{Group: g, Searches: searches, Members: members}, nil
}

// List returns all groups
func (s *Service) List(ctx context.Context) ([]*storage.Group, error) {
	return s.store.ListGroups(ctx)
}

// deriveMembers unions the sample sets of all completed results.
// A sample hit by several searches keeps its highest match percent.
func deriveMembers(ctx context.Context, searches []*storage.Search) ([]Member, error) {
	var mu sync.Mutex
	best := make(map[string]float64)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentDecodes)

	for _, search := range searches {
		if search.Status != storage.StatusComplete || len(search.Result) == 0 {
			continue
		}
		search := search
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var result map[string]struct {
				Percent float64 `json:"percent"`
			}
			if err := json.Unmarshal(search.Result, &result); err != nil {
				return fmt.Errorf("decode result for %s: %w", search.Fingerprint, err)
			}
			mu.Lock()
			for sampleID, hit := range result {
				if hit.Percent > best[sampleID] {
					best[sampleID] = hit.Percent
				}
			}
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	members := make([]Member, 0, len(best))
	for sampleID, percent := range best {
		members = append(members, Member{SampleID: sampleID, Percent: percent})
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].SampleID < members[j].SampleID
	})
	return members, nil
}
