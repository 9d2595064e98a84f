// Package export writes metric results to spreadsheet workbooks.
package export

import (
	"io"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/practice-metrics/internal/aggregator"
)

// Sheet names of an overview workbook.
const (
	SheetRisk    = "Risk"
	SheetBilling = "Billing"
	SheetTasks   = "Tasks"
)

const unavailable = "unavailable"

// SaveOverview writes o to a new workbook at path.
func SaveOverview(path string, o *aggregator.Overview) error {
	f, err := overviewWorkbook(o)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// WriteOverview streams o as a workbook to w.
func WriteOverview(w io.Writer, o *aggregator.Overview) error {
	f, err := overviewWorkbook(o)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

// overviewWorkbook lays out one sheet per overview section. A section the
// engine could not compute is written as a single "unavailable" row with
// the reason instead of being left out, so the workbook always has the
// same sheets.
func overviewWorkbook(o *aggregator.Overview) (*xlsx.File, error) {
	if o == nil {
		return nil, eris.New("export: nil overview")
	}
	f := xlsx.NewFile()

	risk, err := addSheet(f, SheetRisk, "Risk Level", "Matters")
	if err != nil {
		return nil, err
	}
	if e, ok := o.Errors[aggregator.MetricRiskDistribution]; ok {
		unavailableRow(risk, e)
	} else {
		for _, b := range o.RiskDistribution {
			row := risk.AddRow()
			row.AddCell().SetString(string(b.Level))
			row.AddCell().SetInt(b.Count)
		}
	}

	billing, err := addSheet(f, SheetBilling, "Measure", "Value")
	if err != nil {
		return nil, err
	}
	if o.Billing == nil {
		unavailableRow(billing, o.Errors[aggregator.MetricBillingTotals])
	} else {
		intRow(billing, "Matters", o.Billing.Matters)
		floatRow(billing, "Total Hours", o.Billing.TotalHours, "0.00")
		floatRow(billing, "Total Billed", o.Billing.TotalBilled, "#,##0.00")
		floatRow(billing, "Average Hourly Rate", o.Billing.AverageHourlyRate, "#,##0.00")
	}

	tasks, err := addSheet(f, SheetTasks, "Measure", "Value")
	if err != nil {
		return nil, err
	}
	if o.Tasks == nil {
		unavailableRow(tasks, o.Errors[aggregator.MetricTaskTotals])
	} else {
		intRow(tasks, "Total Tasks", o.Tasks.TotalTasks)
		intRow(tasks, "Completed Tasks", o.Tasks.CompletedTasks)
		intRow(tasks, "Overdue Tasks", o.Tasks.OverdueTasks)
		floatRow(tasks, "Completion Rate %", o.Tasks.CompletionRate, "0.0")
		floatRow(tasks, "Overdue Rate %", o.Tasks.OverdueRate, "0.0")
	}

	if len(o.Errors) > 0 {
		if err := errorSheet(f, o.Errors); err != nil {
			return nil, err
		}
	}

	return f, nil
}

func addSheet(f *xlsx.File, name string, header ...string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "export: add sheet %s", name)
	}
	row := sheet.AddRow()
	for _, h := range header {
		row.AddCell().SetString(h)
	}
	return sheet, nil
}

func intRow(s *xlsx.Sheet, label string, v int) {
	row := s.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetInt(v)
}

func floatRow(s *xlsx.Sheet, label string, v float64, format string) {
	row := s.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetFloatWithFormat(v, format)
}

func unavailableRow(s *xlsx.Sheet, e aggregator.MetricError) {
	row := s.AddRow()
	row.AddCell().SetString(unavailable)
	row.AddCell().SetString(string(e.Reason))
}

func errorSheet(f *xlsx.File, errs map[string]aggregator.MetricError) error {
	sheet, err := addSheet(f, "Errors", "Metric", "Reason", "Message")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		row := sheet.AddRow()
		row.AddCell().SetString(name)
		row.AddCell().SetString(string(errs[name].Reason))
		row.AddCell().SetString(errs[name].Message)
	}
	return nil
}
