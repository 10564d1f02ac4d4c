package export

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/smartgrow/irrigation-edge/internal/models"
)

// ExportService handles data export functionality
type ExportService struct{}

// NewExportService creates a new export service instance
func NewExportService() *ExportService {
	return &ExportService{}
}

// ExportData represents data to be exported
type ExportData struct {
	DecisionEvents []models.DecisionEvent
	AnomalyEvents  []models.AnomalyEvent
	Metadata       Metadata
}

// Metadata contains information about the export
type Metadata struct {
	GeneratedAt    time.Time `json:"generated_at"`
	DateRange      string    `json:"date_range"`
	TotalDecisions int       `json:"total_decisions"`
	TotalAnomalies int       `json:"total_anomalies"`
	DeviceInfo     string    `json:"device_info"`
}

// GenerateExcel creates an Excel file with irrigation history
func (es *ExportService) GenerateExcel(data ExportData) (*excelize.File, error) {
	f := excelize.NewFile()

	// Set document properties
	f.SetDocProps(&excelize.DocProperties{
		Category:       "SmartGrow Irrigation",
		ContentStatus:  "Final",
		Created:        data.Metadata.GeneratedAt.Format(time.RFC3339),
		Creator:        "SmartGrow Edge Controller",
		Description:    "Watering decision and anomaly history export",
		LastModifiedBy: "SmartGrow Edge Controller",
		Modified:       data.Metadata.GeneratedAt.Format(time.RFC3339),
		Subject:        "Irrigation Decision History",
		Title:          "SmartGrow Irrigation Report",
		Version:        "1.0",
	})

	// Create Summary sheet
	es.createSummarySheet(f, data)

	// Create Decisions sheet
	es.createDecisionSheet(f, data.DecisionEvents)

	// Create Anomalies sheet
	es.createAnomalySheet(f, data.AnomalyEvents)

	// Set active sheet to Summary
	f.SetActiveSheet(0)

	return f, nil
}

// createSummarySheet creates the summary overview sheet
func (es *ExportService) createSummarySheet(f *excelize.File, data ExportData) error {
	sheetName := "Summary"
	f.SetSheetName("Sheet1", sheetName)

	// Header styling
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})

	// Title
	f.SetCellValue(sheetName, "A1", "SmartGrow Irrigation Report")
	f.MergeCell(sheetName, "A1", "D1")
	f.SetCellStyle(sheetName, "A1", "D1", headerStyle)
	f.SetRowHeight(sheetName, 1, 25)

	// Export metadata
	f.SetCellValue(sheetName, "A3", "Generated At:")
	f.SetCellValue(sheetName, "B3", data.Metadata.GeneratedAt.Format("2006-01-02 15:04:05"))
	f.SetCellValue(sheetName, "A4", "Date Range:")
	f.SetCellValue(sheetName, "B4", data.Metadata.DateRange)
	f.SetCellValue(sheetName, "A5", "Device:")
	f.SetCellValue(sheetName, "B5", data.Metadata.DeviceInfo)

	// Statistics
	f.SetCellValue(sheetName, "A7", "System Statistics")
	f.SetCellStyle(sheetName, "A7", "A7", headerStyle)

	f.SetCellValue(sheetName, "A8", "Watering Decisions:")
	f.SetCellValue(sheetName, "B8", len(data.DecisionEvents))
	f.SetCellValue(sheetName, "A9", "Anomaly Events:")
	f.SetCellValue(sheetName, "B9", len(data.AnomalyEvents))

	executed := 0
	totalMl := 0.0
	for _, event := range data.DecisionEvents {
		if event.Executed {
			executed++
			totalMl += event.Action.AmountMl
		}
	}
	f.SetCellValue(sheetName, "A10", "Waterings Executed:")
	f.SetCellValue(sheetName, "B10", executed)
	f.SetCellValue(sheetName, "A11", "Total Water Dispensed (ml):")
	f.SetCellValue(sheetName, "B11", totalMl)

	// Column widths
	f.SetColWidth(sheetName, "A", "A", 26)
	f.SetColWidth(sheetName, "B", "D", 15)

	return nil
}

// createDecisionSheet creates the watering decision sheet
func (es *ExportService) createDecisionSheet(f *excelize.File, events []models.DecisionEvent) error {
	sheetName := "Decisions"
	f.NewSheet(sheetName)

	// Headers
	headers := []string{"Timestamp", "Channel", "Moisture", "Temperature (°C)", "Humidity (%)", "Light", "Tier", "Duration (ms)", "Amount (ml)", "Failsafe", "Executed", "Refusal Reason", "Anomaly Score"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	// Header styling
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"70AD47"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	f.SetCellStyle(sheetName, "A1", "M1", headerStyle)

	// Data rows
	for i, event := range events {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), event.Timestamp.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), event.Channel)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), event.Sample.Moisture)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), event.Sample.Temperature)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), event.Sample.Humidity)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), event.Sample.LightLevel)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), event.Action.Tier.String())
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), event.Action.DurationMs)
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), event.Action.AmountMl)
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), event.Action.IsFailsafe)
		f.SetCellValue(sheetName, fmt.Sprintf("K%d", row), event.Executed)
		f.SetCellValue(sheetName, fmt.Sprintf("L%d", row), event.RefusalReason)
		f.SetCellValue(sheetName, fmt.Sprintf("M%d", row), event.AnomalyScore)
	}

	// Format columns
	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "M", 13)

	return nil
}

// createAnomalySheet creates the anomaly events sheet
func (es *ExportService) createAnomalySheet(f *excelize.File, events []models.AnomalyEvent) error {
	sheetName := "Anomalies"
	f.NewSheet(sheetName)

	// Headers
	headers := []string{"Timestamp", "Channel", "Kind", "Score", "Description", "Moisture", "Temperature (°C)", "Humidity (%)", "Light"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	// Header styling
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"C55A11"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	f.SetCellStyle(sheetName, "A1", "I1", headerStyle)

	// Data rows
	for i, event := range events {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), event.Timestamp.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), event.Channel)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), event.Kind)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), event.Score)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), event.Description)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), event.Sample.Moisture)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), event.Sample.Temperature)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), event.Sample.Humidity)
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), event.Sample.LightLevel)
	}

	// Format columns
	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "D", 12)
	f.SetColWidth(sheetName, "E", "E", 40)
	f.SetColWidth(sheetName, "F", "I", 13)

	return nil
}

// GenerateCSV creates CSV data for watering decisions
func (es *ExportService) GenerateCSV(events []models.DecisionEvent) ([][]string, error) {
	// CSV headers
	records := [][]string{
		{"Timestamp", "Channel", "Moisture", "Temperature", "Humidity", "Light", "Tier", "Duration (ms)", "Amount (ml)", "Failsafe", "Executed", "Refusal Reason"},
	}

	// Add data rows
	for _, event := range events {
		record := []string{
			event.Timestamp.Format("2006-01-02 15:04:05"),
			strconv.Itoa(event.Channel),
			strconv.FormatFloat(event.Sample.Moisture, 'f', 0, 64),
			strconv.FormatFloat(event.Sample.Temperature, 'f', 1, 64),
			strconv.FormatFloat(event.Sample.Humidity, 'f', 1, 64),
			strconv.FormatFloat(event.Sample.LightLevel, 'f', 0, 64),
			event.Action.Tier.String(),
			strconv.FormatInt(event.Action.DurationMs, 10),
			strconv.FormatFloat(event.Action.AmountMl, 'f', 0, 64),
			strconv.FormatBool(event.Action.IsFailsafe),
			strconv.FormatBool(event.Executed),
			event.RefusalReason,
		}
		records = append(records, record)
	}

	return records, nil
}

// WriteCSV writes CSV data to a writer
func (es *ExportService) WriteCSV(w *csv.Writer, records [][]string) error {
	return w.WriteAll(records)
}
