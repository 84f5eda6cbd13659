// Package scheduler keeps per-user farm task calendars.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/kjstillabower/plants-doctor/internal/models"
	"github.com/kjstillabower/plants-doctor/internal/observability"
	"github.com/kjstillabower/plants-doctor/internal/repository"
	"github.com/kjstillabower/plants-doctor/internal/validation"
)

const (
	MsgTitleRequired = "Please enter a task title."
	MsgInvalidDate   = "Please choose a valid date."

	exportSheet = "Tasks"
)

// Service adds and lists calendar events. Events belong to the owner that created them.
type Service struct {
	repo   repository.EventRepository
	logger *zap.Logger
}

func NewService(repo repository.EventRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// AddEvent appends an event to the date's bucket and returns it with a fresh ID.
func (s *Service) AddEvent(ctx context.Context, owner, date, title, description string) (models.CalendarEvent, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.CalendarEvent{}, fmt.Errorf("%w: %s", validation.ErrInvalidRequest, MsgTitleRequired)
	}
	date, err := validation.ValidateDate(date)
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("%w: %s", validation.ErrInvalidRequest, MsgInvalidDate)
	}
	e := models.CalendarEvent{
		ID:          uuid.New().String(),
		Date:        date,
		Title:       title,
		Description: strings.TrimSpace(description),
	}
	if err := s.repo.AddEvent(ctx, owner, e); err != nil {
		return models.CalendarEvent{}, fmt.Errorf("add event: %w", err)
	}
	observability.SchedulerEventsTotal.Inc()
	s.logger.Debug("event added", zap.String("date", date), zap.String("event_id", e.ID))
	return e, nil
}

// EventsOn returns the owner's events for date, in the order they were added.
func (s *Service) EventsOn(ctx context.Context, owner, date string) ([]models.CalendarEvent, error) {
	date, err := validation.ValidateDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", validation.ErrInvalidRequest, MsgInvalidDate)
	}
	events, err := s.repo.EventsOn(ctx, owner, date)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Export writes every event of owner to w as an XLSX workbook with one row per event.
func (s *Service) Export(ctx context.Context, owner string, w io.Writer) error {
	events, err := s.repo.AllEvents(ctx, owner)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := []interface{}{"Date", "Title", "Description"}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, e := range events {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{e.Date, e.Title, e.Description}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Debug("events exported", zap.Int("count", len(events)))
	return nil
}
