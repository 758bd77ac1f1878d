package report

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemSink keeps reports and reactions in process memory. Used when the
// Directory runs on the blob backend and no relational store is open.
type MemSink struct {
	mu        sync.Mutex
	reports   []Report
	reactions map[int64]map[int64]ReactionKind
}

func NewMemSink() *MemSink {
	return &MemSink{reactions: map[int64]map[int64]ReactionKind{}}
}

var _ Sink = (*MemSink)(nil)

func (s *MemSink) File(ctx context.Context, reporterID int64, reason Reason, detail string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := Report{
		ID:         uuid.NewString(),
		ReporterID: reporterID,
		Reason:     reason,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	s.reports = append(s.reports, rep)
	return rep.ID, nil
}

func (s *MemSink) ListRecent(ctx context.Context, limit int) ([]Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Report, 0, limit)
	for i := len(s.reports) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.reports[i])
	}
	return out, nil
}

func (s *MemSink) React(ctx context.Context, userID, partnerID int64, kind ReactionKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reactions[userID] == nil {
		s.reactions[userID] = map[int64]ReactionKind{}
	}
	s.reactions[userID][partnerID] = kind
	return nil
}

func (s *MemSink) ReactionFor(ctx context.Context, userID, partnerID int64) (ReactionKind, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind, ok := s.reactions[userID][partnerID]
	return kind, ok, nil
}
