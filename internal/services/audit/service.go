package audit

import (
	"context"
	"fmt"

	"docpay/internal/store/repositories"
)

// Service handles audit/export reads over the session archive.
type Service struct {
	archive repositories.SessionArchive
}

func NewService(archive repositories.SessionArchive) *Service {
	return &Service{archive: archive}
}

// ListRequest carries pagination parameters.
type ListRequest struct {
	Limit  int
	Offset int
}

// ListResponse wraps a page of archived sessions.
type ListResponse struct {
	Sessions []repositories.ArchivedSession `json:"sessions"`
	Limit    int                            `json:"limit"`
	Offset   int                            `json:"offset"`
}

// ListSessions returns archived checkouts with clamped pagination.
func (s *Service) ListSessions(ctx context.Context, req ListRequest) (*ListResponse, error) {
	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	sessions, err := s.archive.ListSessions(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("audit list sessions: %w", err)
	}
	return &ListResponse{Sessions: sessions, Limit: limit, Offset: offset}, nil
}
