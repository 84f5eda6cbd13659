package scheduler

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kjstillabower/plants-doctor/internal/repository"
	"github.com/kjstillabower/plants-doctor/internal/validation"
)

func newService() *Service {
	return NewService(repository.NewMemoryEventRepository(), nil)
}

func TestAddEvent_OnlyVisibleOnItsDate(t *testing.T) {
	s := newService()
	ctx := context.Background()

	e, err := s.AddEvent(ctx, "farmer@example.com", "2024-05-01", "  Apply fertilizer ", "Nitrogen for corn")
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "Apply fertilizer", e.Title)

	got, err := s.EventsOn(ctx, "farmer@example.com", "2024-05-01")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e, got[0])

	other, err := s.EventsOn(ctx, "farmer@example.com", "2024-05-02")
	require.NoError(t, err)
	assert.Empty(t, other)

	stranger, err := s.EventsOn(ctx, "someone@example.com", "2024-05-01")
	require.NoError(t, err)
	assert.Empty(t, stranger)
}

func TestAddEvent_KeepsInsertionOrder(t *testing.T) {
	s := newService()
	ctx := context.Background()
	for _, title := range []string{"one", "two", "three"} {
		_, err := s.AddEvent(ctx, "u", "2024-05-01", title, "")
		require.NoError(t, err)
	}
	got, err := s.EventsOn(ctx, "u", "2024-05-01")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "one", got[0].Title)
	assert.Equal(t, "three", got[2].Title)
}

func TestAddEvent_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		date  string
		title string
	}{
		{"empty title", "2024-05-01", ""},
		{"blank title", "2024-05-01", "   "},
		{"empty date", "", "Sow"},
		{"bad format", "01/05/2024", "Sow"},
		{"impossible day", "2024-02-30", "Sow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService()
			_, err := s.AddEvent(context.Background(), "u", tt.date, tt.title, "")
			assert.ErrorIs(t, err, validation.ErrInvalidRequest)
		})
	}
}

func TestExport_WritesOneRowPerEvent(t *testing.T) {
	s := newService()
	ctx := context.Background()
	_, err := s.AddEvent(ctx, "u", "2024-05-02", "Weed", "North field")
	require.NoError(t, err)
	_, err = s.AddEvent(ctx, "u", "2024-05-01", "Sow", "Maize rows")
	require.NoError(t, err)
	_, err = s.AddEvent(ctx, "other", "2024-05-01", "Not mine", "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.Export(ctx, "u", &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Date", "Title", "Description"}, rows[0])
	assert.Equal(t, []string{"2024-05-01", "Sow", "Maize rows"}, rows[1])
	assert.Equal(t, []string{"2024-05-02", "Weed", "North field"}, rows[2])
}
