package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/masig/pricebook/internal/shared"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Service reads and exports the activity log.
type Service struct {
	repo     Repository
	company  string
	location *time.Location
	now      func() time.Time
}

// NewService constructs a Service. company is printed on exported reports.
func NewService(repo Repository, company string, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{repo: repo, company: company, location: location, now: time.Now}
}

// List returns entries matching filter, newest first. The limit applies
// after the date and action bounds.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	filter.Limit = clampLimit(filter.Limit)
	return s.find(ctx, filter)
}

func (s *Service) find(ctx context.Context, filter ListFilter) ([]Entry, error) {
	if filter.Action != "" && filter.Action != "all" {
		if _, err := ParseAction(filter.Action); err != nil {
			return nil, err
		}
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, fmt.Errorf("%w: from must not be after to", shared.ErrValidation)
	}
	entries, err := s.repo.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	entries = FilterByDateRange(entries, filter.From, filter.To)
	entries = FilterByAction(entries, filter.Action)
	return entries, nil
}

// Export is a rendered activity report.
type Export struct {
	FileName    string
	ContentType string
	Body        []byte
}

// Export renders every entry matching filter. An empty result is a
// validation error.
func (s *Service) Export(ctx context.Context, filter ListFilter, title string, format Format) (Export, error) {
	filter.Limit = 0
	entries, err := s.find(ctx, filter)
	if err != nil {
		return Export{}, err
	}
	if len(entries) == 0 {
		return Export{}, fmt.Errorf("%w: no data to export", shared.ErrValidation)
	}

	now := s.now().In(s.location)
	body, err := Render(format, Report{
		Title:       title,
		Company:     s.company,
		GeneratedAt: now,
		Location:    s.location,
		Rows:        entries,
	})
	if err != nil {
		return Export{}, err
	}

	contentType := "application/pdf"
	if format == FormatCSV {
		contentType = "text/csv"
	}
	return Export{
		FileName:    ExportFileName(filter.Action, now, format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
