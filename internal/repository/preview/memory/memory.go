package memory

import (
	"context"
	"sync"
	"time"

	"tryon-web/internal/domain"
	"tryon-web/internal/repository/preview"

	"github.com/google/uuid"
)

type entry struct {
	meta domain.Preview
	data []byte
}

// PreviewRepository keeps previews in process memory. Released refs are
// forgotten, so a second Release reports ErrPreviewNotFound.
type PreviewRepository struct {
	mu      sync.RWMutex
	entries map[domain.PreviewRef]entry
}

func NewPreviewRepository() *PreviewRepository {
	return &PreviewRepository{
		entries: make(map[domain.PreviewRef]entry),
	}
}

func (r *PreviewRepository) Put(_ context.Context, file *domain.File) (domain.PreviewRef, error) {
	if file == nil || len(file.Data) == 0 {
		return "", preview.ErrEmptyPreview
	}

	ref := domain.PreviewRef(uuid.New().String())
	data := make([]byte, len(file.Data))
	copy(data, file.Data)

	r.mu.Lock()
	r.entries[ref] = entry{
		meta: domain.Preview{
			Ref:       ref,
			MimeType:  file.MimeType,
			Size:      int64(len(data)),
			CreatedAt: time.Now(),
		},
		data: data,
	}
	r.mu.Unlock()

	return ref, nil
}

func (r *PreviewRepository) Get(_ context.Context, ref domain.PreviewRef) (*domain.Preview, []byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[ref]
	if !ok {
		return nil, nil, preview.ErrPreviewNotFound
	}
	meta := e.meta
	return &meta, e.data, nil
}

func (r *PreviewRepository) Release(_ context.Context, ref domain.PreviewRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[ref]; !ok {
		return preview.ErrPreviewNotFound
	}
	delete(r.entries, ref)
	return nil
}

func (r *PreviewRepository) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *PreviewRepository) Close() error {
	r.mu.Lock()
	r.entries = make(map[domain.PreviewRef]entry)
	r.mu.Unlock()
	return nil
}
