package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func progressDataset() Dataset {
	d := Dataset{Headers: []string{"Student", "Progress (%)", "Completed Lessons"}}
	d.Append(map[string]string{"Student": "a@example.com", "Progress (%)": "66.67", "Completed Lessons": "2"})
	d.Append(map[string]string{"Student": "b@example.com", "Progress (%)": "0.00"})
	return d
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(progressDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Student,Progress (%),Completed Lessons", lines[0])
	require.Equal(t, "a@example.com,66.67,2", lines[1])
	require.Equal(t, "b@example.com,0.00,", lines[2])
}

func TestCSVExporterEmptyDataset(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(progressDataset(), "Progress Report Go Basics")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(out), "%PDF"))
}

func TestPDFExporterEmptyDataset(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "title")
	require.Error(t, err)
}

func TestColumnWidthsFavorFirstColumn(t *testing.T) {
	widths := columnWidths(5)
	require.Len(t, widths, 5)
	require.InDelta(t, widths[1]*2, widths[0], 0.001)

	var total float64
	for _, w := range widths {
		total += w
	}
	require.InDelta(t, pdfTableWidth, total, 0.001)
}
