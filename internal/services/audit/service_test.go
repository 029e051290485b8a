package audit

import (
	"context"
	"testing"

	"docpay/internal/domain/session"
	"docpay/internal/store/repositories"
)

type fakeArchive struct {
	limit, offset int
}

func (a *fakeArchive) ArchiveSession(context.Context, *session.Session) error { return nil }

func (a *fakeArchive) ListSessions(_ context.Context, limit, offset int) ([]repositories.ArchivedSession, error) {
	a.limit, a.offset = limit, offset
	return nil, nil
}

func TestListSessionsClampsPagination(t *testing.T) {
	cases := []struct {
		name       string
		req        ListRequest
		wantLimit  int
		wantOffset int
	}{
		{"defaults", ListRequest{}, 50, 0},
		{"negative", ListRequest{Limit: -1, Offset: -10}, 50, 0},
		{"over cap", ListRequest{Limit: 1000}, 50, 0},
		{"in range", ListRequest{Limit: 25, Offset: 100}, 25, 100},
		{"at cap", ListRequest{Limit: 200}, 200, 0},
	}
	for _, tc := range cases {
		archive := &fakeArchive{}
		svc := NewService(archive)
		resp, err := svc.ListSessions(context.Background(), tc.req)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if archive.limit != tc.wantLimit || archive.offset != tc.wantOffset {
			t.Errorf("%s: archive saw limit=%d offset=%d, want %d/%d",
				tc.name, archive.limit, archive.offset, tc.wantLimit, tc.wantOffset)
		}
		if resp.Limit != tc.wantLimit || resp.Offset != tc.wantOffset {
			t.Errorf("%s: response limit=%d offset=%d, want %d/%d",
				tc.name, resp.Limit, resp.Offset, tc.wantLimit, tc.wantOffset)
		}
	}
}
