package classify

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
)

// WriteComparisonWorkbook renders the comparison results into one XLSX
// workbook: a summary sheet with metric bar charts, a per-label
// accuracy heatmap across models, one confusion-matrix sheet per model
// and a timings sheet.
func WriteComparisonWorkbook(path string, results []ComparisonResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSummarySheet(f, results); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if err := writeHeatmapSheet(f, results); err != nil {
		return fmt.Errorf("heatmap sheet: %w", err)
	}
	if err := writeTimingSheet(f, results); err != nil {
		return fmt.Errorf("timing sheet: %w", err)
	}
	for _, result := range results {
		if result.Skipped {
			continue
		}
		if err := writeConfusionSheet(f, result); err != nil {
			return fmt.Errorf("confusion sheet %s: %w", result.Key, err)
		}
	}

	f.DeleteSheet("Sheet1")
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any) {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	_ = f.SetCellValue(sheet, cell, value)
}

func writeSummarySheet(f *excelize.File, results []ComparisonResult) error {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"Model", "Accuracy", "Macro Precision", "Macro Recall", "Macro F1", "Status"}
	for i, h := range headers {
		setCell(f, sheet, i+1, 1, h)
	}
	row := 2
	for _, result := range results {
		setCell(f, sheet, 1, row, result.ModelName)
		if result.Skipped {
			setCell(f, sheet, 6, row, "skipped: "+result.SkipReason)
		} else {
			setCell(f, sheet, 2, row, result.Metrics.Accuracy)
			setCell(f, sheet, 3, row, result.Metrics.MacroPrecision)
			setCell(f, sheet, 4, row, result.Metrics.MacroRecall)
			setCell(f, sheet, 5, row, result.Metrics.MacroF1)
			setCell(f, sheet, 6, row, "ok")
		}
		row++
	}
	_ = f.SetColWidth(sheet, "A", "A", 28)
	_ = f.SetColWidth(sheet, "B", "E", 16)
	_ = f.SetColWidth(sheet, "F", "F", 30)

	// One bar chart per metric, anchored below the table.
	lastRow := row - 1
	metrics := []struct {
		column string
		title  string
		anchor string
	}{
		{"B", "Accuracy", "A" + fmt.Sprint(row+1)},
		{"C", "Macro Precision", "I" + fmt.Sprint(row+1)},
		{"D", "Macro Recall", "A" + fmt.Sprint(row+17)},
		{"E", "Macro F1", "I" + fmt.Sprint(row+17)},
	}
	for _, metric := range metrics {
		chart := &excelize.Chart{
			Type:  excelize.Col,
			Title: []excelize.RichTextRun{{Text: metric.title}},
			Series: []excelize.ChartSeries{{
				Name:       fmt.Sprintf("%s!$%s$1", sheet, metric.column),
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheet, lastRow),
				Values:     fmt.Sprintf("%s!$%s$2:$%s$%d", sheet, metric.column, metric.column, lastRow),
			}},
		}
		if err := f.AddChart(sheet, metric.anchor, chart); err != nil {
			return err
		}
	}
	return nil
}

func writeHeatmapSheet(f *excelize.File, results []ComparisonResult) error {
	const sheet = "Heatmap"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	labelSet := make(map[string]struct{})
	for _, result := range results {
		for label := range result.PerLabel {
			labelSet[label] = struct{}{}
		}
	}
	labels := make([]string, 0, len(labelSet))
	for label := range labelSet {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	setCell(f, sheet, 1, 1, "Label")
	col := 2
	for _, result := range results {
		if result.Skipped {
			continue
		}
		setCell(f, sheet, col, 1, result.ModelName)
		col++
	}
	for i, label := range labels {
		setCell(f, sheet, 1, i+2, label)
		col = 2
		for _, result := range results {
			if result.Skipped {
				continue
			}
			setCell(f, sheet, col, i+2, result.PerLabel[label])
			col++
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 40)

	if col > 2 && len(labels) > 0 {
		last, _ := excelize.CoordinatesToCellName(col-1, len(labels)+1)
		format := []excelize.ConditionalFormatOptions{{
			Type:     "3_color_scale",
			Criteria: "=",
			MinType:  "num", MinValue: "0", MinColor: "#F8696B",
			MidType: "num", MidValue: "50", MidColor: "#FFEB84",
			MaxType: "num", MaxValue: "99", MaxColor: "#63BE7B",
		}}
		if err := f.SetConditionalFormat(sheet, "B2:"+last, format); err != nil {
			return err
		}
	}
	return nil
}

func writeTimingSheet(f *excelize.File, results []ComparisonResult) error {
	const sheet = "Timings"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []string{"Model", "Load (ms)", "Predict total (ms)", "Predict per doc (ms)"}
	for i, h := range headers {
		setCell(f, sheet, i+1, 1, h)
	}
	row := 2
	for _, result := range results {
		if result.Skipped {
			continue
		}
		setCell(f, sheet, 1, row, result.ModelName)
		setCell(f, sheet, 2, row, float64(result.LoadTime.Microseconds())/1000)
		setCell(f, sheet, 3, row, float64(result.PredictTime.Microseconds())/1000)
		setCell(f, sheet, 4, row, float64(result.PerSample.Microseconds())/1000)
		row++
	}
	_ = f.SetColWidth(sheet, "A", "A", 28)
	_ = f.SetColWidth(sheet, "B", "D", 20)

	if row > 2 {
		chart := &excelize.Chart{
			Type:  excelize.Col,
			Title: []excelize.RichTextRun{{Text: "Prediction time per document (ms)"}},
			Series: []excelize.ChartSeries{{
				Name:       fmt.Sprintf("%s!$D$1", sheet),
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheet, row-1),
				Values:     fmt.Sprintf("%s!$D$2:$D$%d", sheet, row-1),
			}},
		}
		if err := f.AddChart(sheet, "F2", chart); err != nil {
			return err
		}
	}
	return nil
}

func writeConfusionSheet(f *excelize.File, result ComparisonResult) error {
	sheet := "Confusion " + result.Key
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	setCell(f, sheet, 1, 1, result.ModelName)
	for j, class := range result.Metrics.Classes {
		setCell(f, sheet, j+2, 2, class)
	}
	for i, class := range result.Metrics.Classes {
		setCell(f, sheet, 1, i+3, class)
		for j := range result.Metrics.Classes {
			setCell(f, sheet, j+2, i+3, result.Metrics.Confusion[i][j])
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 40)
	return nil
}
