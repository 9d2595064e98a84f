package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/practice-metrics/internal/aggregator"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

const na = "n/a"

func validFormat(f string) error {
	switch f {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return eris.Errorf("unsupported output format %q (want table, json or yaml)", f)
	}
}

// render writes v to out in the given format. Table output is delegated to
// table, which receives a printer that groups thousands.
func render(out io.Writer, format string, v any, table func(p *message.Printer, w io.Writer)) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "encode json")
	case formatYAML:
		// Round-trip through JSON so YAML keys match the API field names.
		raw, err := json.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "encode json")
		}
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return eris.Wrap(err, "decode yaml")
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	default:
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		table(message.NewPrinter(language.English), w)
		return eris.Wrap(w.Flush(), "write table")
	}
}

// row writes a label and value pair. Values are formatted with p.
func row(p *message.Printer, w io.Writer, label, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "%s:\t%s\n", label, p.Sprintf(format, args...))
}

// missing writes a metric the engine could not compute.
func missing(w io.Writer, label string, errs map[string]aggregator.MetricError, metric string) {
	reason := na
	if e, ok := errs[metric]; ok {
		reason = fmt.Sprintf("%s (%s)", na, e.Reason)
	}
	_, _ = fmt.Fprintf(w, "%s:\t%s\n", label, reason)
}

// errorRows lists the metric errors in name order.
func errorRows(w io.Writer, errs map[string]aggregator.MetricError) {
	if len(errs) == 0 {
		return
	}
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)

	_, _ = fmt.Fprintln(w, "\t")
	_, _ = fmt.Fprintln(w, "UNAVAILABLE\tREASON\tMESSAGE")
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, errs[name].Reason, errs[name].Message)
	}
}

func formatMatterMetrics(p *message.Printer, w io.Writer, m *aggregator.MatterMetrics) {
	_, _ = fmt.Fprintf(w, "Matter:\t%s\n", m.MatterID)

	if m.Progress != nil {
		row(p, w, "Progress", "%.1f%% (%d/%d tasks)", m.Progress.Overall, m.Progress.CompletedTasks, m.Progress.TotalTasks)
	} else {
		missing(w, "Progress", m.Errors, aggregator.MetricProgress)
	}

	if m.Efficiency != nil {
		row(p, w, "Efficiency", "%d (completion %.1f%%, avg %.1f days, %d overdue)",
			m.Efficiency.Score, m.Efficiency.CompletionRate, m.Efficiency.AverageDurationDays, m.Efficiency.OverdueTasks)
	} else {
		missing(w, "Efficiency", m.Errors, aggregator.MetricEfficiency)
	}

	if m.Billing != nil {
		row(p, w, "Billing", "%d%% (billed %.2f of predicted %.2f, %.2f h)",
			m.Billing.EfficiencyRatio, m.Billing.Actual, m.Billing.Predicted, m.Billing.TotalHours)
	} else {
		missing(w, "Billing", m.Errors, aggregator.MetricBilling)
	}

	if m.Risk != nil {
		row(p, w, "Risk", "%s (%.0f)", m.Risk.Level, m.Risk.Score)
	} else {
		missing(w, "Risk", m.Errors, aggregator.MetricRisk)
	}

	errorRows(w, m.Errors)
}

func formatProfileMetrics(p *message.Printer, w io.Writer, m *aggregator.ProfileMetrics) {
	_, _ = fmt.Fprintf(w, "Profile:\t%s\n", m.ProfileID)

	if m.Workflow != nil {
		row(p, w, "Workflow", "%d (%d/%d required fields)", m.Workflow.Score, m.Workflow.PresentFields, m.Workflow.RequiredFields)
	} else {
		missing(w, "Workflow", m.Errors, aggregator.MetricWorkflow)
	}

	if m.ProfileCompletion != nil {
		row(p, w, "Profile completion", "%d%%", *m.ProfileCompletion)
	} else {
		missing(w, "Profile completion", m.Errors, aggregator.MetricProfileCompletion)
	}

	if m.ClientFeedback != nil {
		row(p, w, "Client feedback", "%.1f (%d ratings)", m.ClientFeedback.AverageRating, m.ClientFeedback.Ratings)
	} else {
		missing(w, "Client feedback", m.Errors, aggregator.MetricClientFeedback)
	}

	if m.Productivity != nil {
		row(p, w, "Productivity", "%d%%", *m.Productivity)
	} else {
		missing(w, "Productivity", m.Errors, aggregator.MetricProductivity)
	}

	errorRows(w, m.Errors)
}

func formatOverview(p *message.Printer, w io.Writer, o *aggregator.Overview) {
	_, _ = fmt.Fprintf(w, "Profile:\t%s\n", o.ProfileID)

	if _, failed := o.Errors[aggregator.MetricRiskDistribution]; failed {
		missing(w, "Risk", o.Errors, aggregator.MetricRiskDistribution)
	} else {
		for _, b := range o.RiskDistribution {
			row(p, w, "Risk "+string(b.Level), "%d", b.Count)
		}
	}

	if o.Billing != nil {
		row(p, w, "Matters billed", "%d", o.Billing.Matters)
		row(p, w, "Total hours", "%.2f", o.Billing.TotalHours)
		row(p, w, "Total billed", "%.2f", o.Billing.TotalBilled)
		row(p, w, "Avg hourly rate", "%.2f", o.Billing.AverageHourlyRate)
	} else {
		missing(w, "Billing", o.Errors, aggregator.MetricBillingTotals)
	}

	if o.Tasks != nil {
		row(p, w, "Tasks", "%d (%d completed, %d overdue)", o.Tasks.TotalTasks, o.Tasks.CompletedTasks, o.Tasks.OverdueTasks)
		row(p, w, "Completion rate", "%.1f%%", o.Tasks.CompletionRate)
		row(p, w, "Overdue rate", "%.1f%%", o.Tasks.OverdueRate)
	} else {
		missing(w, "Tasks", o.Errors, aggregator.MetricTaskTotals)
	}

	errorRows(w, o.Errors)
}
