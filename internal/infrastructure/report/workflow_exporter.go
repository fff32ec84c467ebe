// Package report renders workflows as spreadsheets
package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/cost-approval/internal/application/workflow"
)

const (
	sheetName  = "Workflow"
	dateLayout = "2006-01-02 15:04"
	// first row of the approvals table
	tableRow = 10
)

var tableHeader = []string{
	"Step", "Approval Type", "Approver", "Status", "Assigned", "Deadline",
	"Decided", "Days Remaining", "Overdue", "Delegated To", "Comments", "Rejection Reason",
}

// WorkflowExporter writes a workflow view to an XLSX workbook
type WorkflowExporter struct {
	logger *zap.Logger
}

// NewWorkflowExporter creates a new exporter
func NewWorkflowExporter(logger *zap.Logger) *WorkflowExporter {
	return &WorkflowExporter{logger: logger}
}

// Export renders view and returns the workbook bytes
func (e *WorkflowExporter) Export(view *workflow.WorkflowView) ([]byte, error) {
	if view == nil || view.CostTable == nil {
		return nil, fmt.Errorf("workflow view is empty")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	ct := view.CostTable
	summary := [][]interface{}{
		{"Cost Table", ct.ID},
		{"Category", ct.Category},
		{"Version", ct.Version},
		{"Status", string(ct.Status)},
		{"Impact Level", string(view.ImpactLevel)},
		{"Monthly Impact", ct.MonthlyImpact.StringFixed(2) + " " + ct.Currency},
		{"Deadline", ct.Deadline.Format(dateLayout)},
		{"Days Remaining", view.DaysRemaining},
	}
	for i, row := range summary {
		if err := e.setRow(f, 1, i+1, row); err != nil {
			return nil, err
		}
	}

	header := make([]interface{}, len(tableHeader))
	for i, h := range tableHeader {
		header[i] = h
	}
	if err := e.setRow(f, 1, tableRow, header); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(tableHeader), tableRow)
	if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", tableRow), last, bold); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", fmt.Sprintf("A%d", len(summary)), bold); err != nil {
		return nil, fmt.Errorf("failed to style summary: %w", err)
	}

	for i, a := range view.Approvals {
		row := []interface{}{
			a.SequenceOrder,
			a.ApprovalTypeDisplay,
			userName(a.Approver),
			string(a.Status),
			a.AssignedAt.Format(dateLayout),
			a.Deadline.Format(dateLayout),
			formatTime(a.DecisionDate),
			a.DaysRemaining,
			yesNo(a.IsOverdue),
			userName(a.Delegate),
			a.Comments,
			a.RejectionReason,
		}
		if err := e.setRow(f, 1, tableRow+1+i, row); err != nil {
			return nil, err
		}
	}

	if err := f.SetColWidth(sheetName, "A", "L", 18); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Workflow exported",
		zap.Int64("cost_table_id", ct.ID),
		zap.Int("approvals", len(view.Approvals)),
		zap.Int("bytes", buf.Len()))

	return buf.Bytes(), nil
}

func (e *WorkflowExporter) setRow(f *excelize.File, col, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		e.logger.Warn("Failed to set row", zap.String("cell", cell), zap.Error(err))
		return fmt.Errorf("failed to set row %d: %w", row, err)
	}
	return nil
}

func userName(u *workflow.UserRef) string {
	if u == nil {
		return ""
	}
	return u.Name
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
