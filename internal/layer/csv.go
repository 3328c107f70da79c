package layer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/2chong/Change-Detection/internal/core/classify"
	"github.com/2chong/Change-Detection/internal/core/model"
)

// WriteCSV writes the attribute table of a set without geometry, using the
// Columns order.
func WriteCSV(w io.Writer, set *model.PolygonSet, components []model.Component) error {
	cw := csv.NewWriter(w)
	cols := Columns(set)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(cols))
	for _, p := range set.Polygons {
		values := Values(set.Side, p, componentOf(p, components))
		for i, c := range cols {
			v, ok := values[c]
			if !ok {
				v = p.Attributes[c]
			}
			record[i] = formatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", p.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCombinationsCSV writes the audit table of combination rows.
func WriteCombinationsCSV(w io.Writer, rows []model.CombinationRow) error {
	cw := csv.NewWriter(w)
	header := []string{ColCompIdx, ColRelation, ColPoly1Set, ColPoly2Set, "combi", "iou", "ol_pl1", "ol_pl2"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			strconv.Itoa(r.CompIdx),
			string(r.Relation),
			formatCell(r.Poly1Set),
			formatCell(r.Poly2Set),
			string(r.Kind),
			formatCell(nilIfNaN(r.Metrics.IoU)),
			formatCell(nilIfNaN(r.Metrics.OverlapA)),
			formatCell(nilIfNaN(r.Metrics.OverlapB)),
		}); err != nil {
			return fmt.Errorf("failed to write combination row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteClassReportCSV writes a class report with percentages rounded to
// two decimals.
func WriteClassReportCSV(w io.Writer, rows []classify.ClassRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColClass10, "count", "count_percent", "area", "area_percent"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.Class,
			strconv.Itoa(r.Count),
			strconv.FormatFloat(r.CountPercent, 'f', 2, 64),
			strconv.FormatFloat(r.Area, 'f', -1, 64),
			strconv.FormatFloat(r.AreaPercent, 'f', 2, 64),
		}); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
