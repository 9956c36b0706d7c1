// Copyright (c) 2026 Motorparc. All rights reserved.

package directory

import (
	"context"
	"sync"

	"github.com/motorparc/motorparc/internal/platform/sec"
)

// # In-Memory Repository

// MemoryUserRepository implements [UserRepository] with an ordered in-memory
// collection. It backs single-node deployments and the test suite.
//
// # Concurrency
//
// A RWMutex guards the collection: reads run concurrently, writes are
// exclusive, and every returned record is a copy so readers can never
// observe a partially-written entry.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	records []*UserRecord          // insertion order
	index   map[string]*UserRecord // folded username -> record
}

// NewMemoryUserRepository creates an empty in-memory repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		index: make(map[string]*UserRecord),
	}
}

// FindByUsername returns a copy of the record with the folded username.
func (repository *MemoryUserRepository) FindByUsername(_ context.Context, normalized string) (*UserRecord, error) {
	repository.mu.RLock()
	defer repository.mu.RUnlock()

	record, found := repository.index[normalized]
	if !found {
		return nil, ErrUserNotFound
	}

	clone := *record
	return &clone, nil
}

// Create appends a new record, enforcing folded-username uniqueness.
func (repository *MemoryUserRepository) Create(_ context.Context, record *UserRecord) error {
	normalized := NormalizeUsername(record.Username)

	repository.mu.Lock()
	defer repository.mu.Unlock()

	if _, exists := repository.index[normalized]; exists {
		return ErrUsernameTaken
	}

	clone := *record
	repository.records = append(repository.records, &clone)
	repository.index[normalized] = &clone

	return nil
}

// Delete removes the record with the folded username. The last-admin
// re-check runs under the same lock as the removal, so the repository
// upholds the invariant even without the service's write mutex.
func (repository *MemoryUserRepository) Delete(_ context.Context, normalized string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	record, found := repository.index[normalized]
	if !found {
		return ErrUserNotFound
	}

	if record.Role == sec.RoleAdmin {
		adminCount := 0
		for _, candidate := range repository.records {
			if candidate.Role == sec.RoleAdmin {
				adminCount++
			}
		}
		if adminCount <= 1 {
			return ErrLastAdmin
		}
	}

	delete(repository.index, normalized)
	for i, candidate := range repository.records {
		if candidate == record {
			repository.records = append(repository.records[:i], repository.records[i+1:]...)
			break
		}
	}

	return nil
}

// List returns a page of record copies in insertion order.
func (repository *MemoryUserRepository) List(_ context.Context, limit, offset int) ([]*UserRecord, error) {
	repository.mu.RLock()
	defer repository.mu.RUnlock()

	if offset >= len(repository.records) {
		return []*UserRecord{}, nil
	}

	end := offset + limit
	if limit <= 0 || end > len(repository.records) {
		end = len(repository.records)
	}

	page := make([]*UserRecord, 0, end-offset)
	for _, record := range repository.records[offset:end] {
		clone := *record
		page = append(page, &clone)
	}

	return page, nil
}

// Count returns the total number of records.
func (repository *MemoryUserRepository) Count(_ context.Context) (int, error) {
	repository.mu.RLock()
	defer repository.mu.RUnlock()
	return len(repository.records), nil
}

// CountAdmins returns how many records hold the Admin role.
func (repository *MemoryUserRepository) CountAdmins(_ context.Context) (int, error) {
	repository.mu.RLock()
	defer repository.mu.RUnlock()

	count := 0
	for _, record := range repository.records {
		if record.Role == sec.RoleAdmin {
			count++
		}
	}
	return count, nil
}

// UpdatePassword replaces the stored hash for the folded username.
func (repository *MemoryUserRepository) UpdatePassword(_ context.Context, normalized, newHash string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	record, found := repository.index[normalized]
	if !found {
		return ErrUserNotFound
	}

	record.PasswordHash = newHash
	return nil
}
