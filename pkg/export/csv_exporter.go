package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// TicketRow is one exported ticket line.
type TicketRow struct {
	TicketID   string
	MovieTitle string
	Showtime   string
	Seat       int
	Status     string
	Price      string
	Purchased  string
}

var ticketHeaders = []string{"ticket_id", "movie", "showtime", "seat", "status", "price", "purchased_at"}

// CSVExporter renders ticket rows into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the tickets.
func (e *CSVExporter) Render(rows []TicketRow) ([]byte, error) {
	return e.RenderDataset(ticketDataset(rows))
}

// RenderDataset produces CSV encoded bytes for an arbitrary tabular dataset.
func (e *CSVExporter) RenderDataset(data Dataset) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, record := range data.Rows {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func ticketDataset(rows []TicketRow) Dataset {
	data := Dataset{Headers: ticketHeaders}
	for _, row := range rows {
		data.Rows = append(data.Rows, []string{
			row.TicketID,
			row.MovieTitle,
			row.Showtime,
			strconv.Itoa(row.Seat),
			row.Status,
			row.Price,
			row.Purchased,
		})
	}
	return data
}
