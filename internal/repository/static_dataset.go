package repository

import (
	"context"
	"sync"

	"EconCast/internal/domain/models"
	domrepo "EconCast/internal/domain/repository"
)

// StaticDataset serves an in-memory table that can be swapped at runtime.
type StaticDataset struct {
	mu sync.RWMutex
	t  *models.Table
}

func NewStaticDataset(t *models.Table) *StaticDataset {
	return &StaticDataset{t: t}
}

// Replace swaps the served table.
func (d *StaticDataset) Replace(t *models.Table) {
	d.mu.Lock()
	d.t = t
	d.mu.Unlock()
}

func (d *StaticDataset) Table(_ context.Context) (*models.Table, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.t == nil {
		return nil, domrepo.ErrDatasetUnavailable
	}
	return d.t, nil
}

var _ domrepo.DatasetReader = (*StaticDataset)(nil)
