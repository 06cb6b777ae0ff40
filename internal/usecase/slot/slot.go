package slot

import (
	"context"
	"fmt"

	"tryon-web/internal/domain"
	"tryon-web/internal/usecase/validation"

	"github.com/dustin/go-humanize"
	"github.com/wb-go/wbf/zlog"
)

// Slot holds the file selected for one upload target. It is not safe for
// concurrent use; the owning session serialises access.
type Slot struct {
	kind     domain.SlotKind
	policy   validation.Policy
	previews previewRepository
	logger   *zlog.Zerolog

	file    *domain.File
	preview domain.PreviewRef
	err     string
}

// Snapshot is a read-only copy of a slot used for rendering.
type Snapshot struct {
	Kind      domain.SlotKind `json:"kind"`
	Label     string          `json:"label"`
	FileName  string          `json:"file_name,omitempty"`
	Size      int64           `json:"size,omitempty"`
	SizeHuman string          `json:"size_human,omitempty"`
	MimeType  string          `json:"mime_type,omitempty"`
	PreviewID string          `json:"preview_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	HasFile   bool            `json:"has_file"`
}

func NewSlot(kind domain.SlotKind, policy validation.Policy, previews previewRepository, logger *zlog.Zerolog) *Slot {
	return &Slot{
		kind:     kind,
		policy:   policy,
		previews: previews,
		logger:   logger,
	}
}

// Select validates file and stores it. A nil file clears the slot. The
// returned error is a *validation.Error on rejection, or wraps
// ErrPreviewUnavailable when the file was kept but no preview exists.
func (s *Slot) Select(ctx context.Context, file *domain.File) error {
	if file == nil {
		s.Remove(ctx)
		return nil
	}

	if err := validation.Validate(file, s.policy); err != nil {
		s.releasePreview(ctx)
		s.file = nil
		s.err = validation.Message(err)

		s.logger.Info().
			Str("slot", string(s.kind)).
			Str("filename", file.Name).
			Str("mime_type", file.MimeType).
			Int64("size", file.Size).
			Str("reason", s.err).
			Msg("File rejected")
		return err
	}

	s.releasePreview(ctx)
	s.file = file
	s.err = ""

	ref, err := s.previews.Put(ctx, file)
	if err != nil {
		s.logger.Error().Err(err).Str("slot", string(s.kind)).Str("filename", file.Name).Msg("Failed to create preview")
		return fmt.Errorf("%w: %v", ErrPreviewUnavailable, err)
	}
	s.preview = ref

	s.logger.Debug().
		Str("slot", string(s.kind)).
		Str("filename", file.Name).
		Int64("size", file.Size).
		Str("preview", string(ref)).
		Msg("File selected")
	return nil
}

// Remove clears the file, preview and error.
func (s *Slot) Remove(ctx context.Context) {
	s.releasePreview(ctx)
	s.file = nil
	s.err = ""
}

func (s *Slot) Kind() domain.SlotKind {
	return s.kind
}

func (s *Slot) File() *domain.File {
	return s.file
}

func (s *Slot) Preview() domain.PreviewRef {
	return s.preview
}

func (s *Slot) Err() string {
	return s.err
}

// Ready reports whether the slot holds a validated file.
func (s *Slot) Ready() bool {
	return s.file != nil && s.err == ""
}

func (s *Slot) Snapshot() Snapshot {
	snap := Snapshot{
		Kind:      s.kind,
		Label:     s.kind.Label(),
		PreviewID: string(s.preview),
		Error:     s.err,
	}
	if s.file != nil {
		snap.HasFile = true
		snap.FileName = s.file.Name
		snap.Size = s.file.Size
		snap.SizeHuman = humanize.IBytes(uint64(s.file.Size))
		snap.MimeType = s.file.MimeType
	}
	return snap
}

func (s *Slot) releasePreview(ctx context.Context) {
	if s.preview == "" {
		return
	}

	ref := s.preview
	s.preview = ""
	if err := s.previews.Release(ctx, ref); err != nil {
		s.logger.Warn().Err(err).Str("slot", string(s.kind)).Str("preview", string(ref)).Msg("Failed to release preview")
	}
}
