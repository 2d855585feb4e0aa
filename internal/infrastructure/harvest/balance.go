package harvest

import (
	"sort"
)

const (
	// Per-subject balancing target and the floor below which a label
	// is dropped entirely.
	DefaultPerSubject  = 200
	DefaultMinPerLabel = 20

	// Per-type balancing target.
	DefaultPerType = 500
)

// BalancePerSubject selects up to target rows per FORD label,
// newest-first. Labels with fewer than minAvailable rows are dropped;
// remaining capacity is filled with the newest unselected rows across
// all kept labels.
func BalancePerSubject(rows []Row, target, minAvailable int) []Row {
	if target <= 0 {
		target = DefaultPerSubject
	}
	if minAvailable <= 0 {
		minAvailable = DefaultMinPerLabel
	}

	byLabel := map[string][]Row{}
	for _, row := range rows {
		if row.Subject == "" {
			continue
		}
		byLabel[row.Subject] = append(byLabel[row.Subject], row)
	}

	labels := make([]string, 0, len(byLabel))
	for label, group := range byLabel {
		if len(group) >= minAvailable {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)

	var selected []Row
	var leftovers []Row
	shortfall := 0
	for _, label := range labels {
		group := byLabel[label]
		sortNewestFirst(group)
		if len(group) > target {
			selected = append(selected, group[:target]...)
			leftovers = append(leftovers, group[target:]...)
			continue
		}
		selected = append(selected, group...)
		shortfall += target - len(group)
	}

	// Fill shortfalls with the newest spare rows so the corpus keeps
	// its intended size even when some labels run thin.
	sortNewestFirst(leftovers)
	if shortfall > len(leftovers) {
		shortfall = len(leftovers)
	}
	selected = append(selected, leftovers[:shortfall]...)
	return selected
}

// BalancePerType selects up to perType rows per document type,
// newest-first.
func BalancePerType(rows []Row, perType int) []Row {
	if perType <= 0 {
		perType = DefaultPerType
	}

	byType := map[string][]Row{}
	for _, row := range rows {
		byType[row.Type] = append(byType[row.Type], row)
	}

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	var selected []Row
	for _, t := range types {
		group := byType[t]
		sortNewestFirst(group)
		if len(group) > perType {
			group = group[:perType]
		}
		selected = append(selected, group...)
	}
	return selected
}

// LabelMappingBySubject projects selected rows to the id→subject
// supervision map.
func LabelMappingBySubject(rows []Row) map[string]string {
	mapping := make(map[string]string, len(rows))
	for _, row := range rows {
		if row.Subject != "" {
			mapping[row.ID] = row.Subject
		}
	}
	return mapping
}

// LabelMappingByType projects selected rows to the id→type supervision
// map.
func LabelMappingByType(rows []Row) map[string]string {
	mapping := make(map[string]string, len(rows))
	for _, row := range rows {
		mapping[row.ID] = row.Type
	}
	return mapping
}

func sortNewestFirst(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Year > rows[j].Year
	})
}
