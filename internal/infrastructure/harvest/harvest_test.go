package harvest

import (
	"reflect"
	"strings"
	"testing"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

const exportHeader = "dc.type[es],dc.identifier.uri[],dc.date.issued[es],dc.title[es],sedici.subject.materias[es],sedici.creator.person[es],dc.subject[es],thesis.degree.name[es]\n"

func projectRows(t *testing.T, csvBody string) []Row {
	t.Helper()
	tax, err := LoadTaxonomy("")
	if err != nil {
		t.Fatalf("load taxonomy: %v", err)
	}
	rows, err := ProjectCSV(strings.NewReader(exportHeader+csvBody), tax)
	if err != nil {
		t.Fatalf("project csv: %v", err)
	}
	return rows
}

func TestProjectCSVProjectsRecord(t *testing.T) {
	rows := projectRows(t,
		`Artículo,http://sedici.unlp.edu.ar/handle/10915/33141,2020-05-01,Genotoxicidad en anfibios,Geofísica::materias||Historia,"Pérez, Juan::8470||López, Ana",anfibios||plaguicidas,Doctor en Ciencias Naturales::grado`+"\n")

	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.ID != "10915-33141" {
		t.Fatalf("id = %q", row.ID)
	}
	if row.Type != "Articulo" {
		t.Fatalf("type = %q, want folded spelling", row.Type)
	}
	if row.Subject != "Ciencias físicas" {
		t.Fatalf("subject = %q, want taxonomy label", row.Subject)
	}
	if row.Year != 2020 {
		t.Fatalf("year = %d", row.Year)
	}

	creators, ok := row.Record[domain.FieldCreator].([]string)
	if !ok || !reflect.DeepEqual(creators, []string{"Pérez, Juan", "López, Ana"}) {
		t.Fatalf("creators = %#v", row.Record[domain.FieldCreator])
	}
	keywords, ok := row.Record[domain.FieldKeywords].([]string)
	if !ok || !reflect.DeepEqual(keywords, []string{"anfibios", "plaguicidas"}) {
		t.Fatalf("keywords = %#v", row.Record[domain.FieldKeywords])
	}
	if got := row.Record.String(domain.FieldDegreeName); got != "Doctor en Ciencias Naturales" {
		t.Fatalf("degree name = %q, want qualifier stripped", got)
	}
	if got := row.Record.String(domain.FieldTitle); got != "Genotoxicidad en anfibios" {
		t.Fatalf("title = %q", got)
	}
}

func TestProjectCSVFiltersRows(t *testing.T) {
	rows := projectRows(t,
		"Tesis,http://sedici.unlp.edu.ar/handle/10915/1,2017-03-01,Demasiado vieja,,,,\n"+
			"Tesis,http://sedici.unlp.edu.ar/handle/10915/2,2018-12-31,Anio limite,,,,\n"+
			"Revista,http://sedici.unlp.edu.ar/handle/10915/3,2021-01-01,Tipo fuera de lista,,,,\n"+
			"Tesis,http://example.com/no-handle/10915/4,2021-01-01,Sin handle,,,,\n"+
			"Tesis,http://sedici.unlp.edu.ar/handle/10915/5,2021-01-01,Se queda,,,,\n")

	if len(rows) != 1 {
		t.Fatalf("rows = %d, want only the valid record", len(rows))
	}
	if rows[0].ID != "10915-5" {
		t.Fatalf("surviving id = %q", rows[0].ID)
	}
}

func TestProjectCSVSortsRichestFirst(t *testing.T) {
	rows := projectRows(t,
		"Tesis,http://sedici.unlp.edu.ar/handle/10915/10,2021-01-01,Solo titulo,,,,\n"+
			`Tesis,http://sedici.unlp.edu.ar/handle/10915/11,2021-01-01,Completa,Geofísica,"Pérez, Juan",clave,Doctor`+"\n")

	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].ID != "10915-11" {
		t.Fatalf("first row = %s, want the record with more fields", rows[0].ID)
	}
}

func TestTransformURI(t *testing.T) {
	cases := map[string]string{
		"http://sedici.unlp.edu.ar/handle/10915/33141":          "10915-33141",
		"http://sedici.unlp.edu.ar/handle/10915/33141||mirror":  "10915-33141",
		"http://sedici.unlp.edu.ar/handle/10915/33141/extra":    "",
		"http://example.com/record/33141":                       "",
		"http://sedici.unlp.edu.ar/handle/10915/tesis-doctoral": "",
		"": "",
	}
	for uri, want := range cases {
		if got := TransformURI(uri); got != want {
			t.Errorf("TransformURI(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestTaxonomyMapStripsQualifiers(t *testing.T) {
	tax, err := LoadTaxonomy("")
	if err != nil {
		t.Fatalf("load taxonomy: %v", err)
	}
	if got := tax.Map("Geofísica::materias||Historia"); got != "Ciencias físicas" {
		t.Fatalf("mapped = %q", got)
	}
	if got := tax.Map("Materia inventada"); got != "" {
		t.Fatalf("unmapped label = %q, want empty", got)
	}
	if len(tax.Labels()) == 0 {
		t.Fatal("embedded taxonomy has no labels")
	}
}

func subjectRows(label string, years ...int) []Row {
	rows := make([]Row, len(years))
	for i, year := range years {
		rows[i] = Row{ID: label + "-" + string(rune('a'+i)), Type: "Tesis", Subject: label, Year: year}
	}
	return rows
}

func TestBalancePerSubjectFillsShortfallFromLeftovers(t *testing.T) {
	var rows []Row
	rows = append(rows, subjectRows("Artes", 2019, 2020, 2021, 2022, 2023, 2024)...)
	rows = append(rows, subjectRows("Derecho", 2019, 2020, 2021)...)
	rows = append(rows, subjectRows("Educación", 2022)...)

	selected := BalancePerSubject(rows, 4, 2)

	perLabel := map[string]int{}
	for _, row := range selected {
		perLabel[row.Subject]++
	}
	// Derecho is one short of the target, so one Artes leftover fills
	// in; Educación is below the availability floor and drops out.
	if perLabel["Artes"] != 5 || perLabel["Derecho"] != 3 || perLabel["Educación"] != 0 {
		t.Fatalf("per label = %v", perLabel)
	}
	if len(selected) != 8 {
		t.Fatalf("selected = %d, want 8", len(selected))
	}

	oldest := 10000
	for _, row := range selected {
		if row.Subject == "Artes" && row.Year < oldest {
			oldest = row.Year
		}
	}
	if oldest != 2020 {
		t.Fatalf("oldest selected Artes year = %d, want newest-first selection", oldest)
	}
}

func TestBalancePerTypeKeepsNewest(t *testing.T) {
	rows := []Row{
		{ID: "1-1", Type: "Tesis", Year: 2019},
		{ID: "1-2", Type: "Tesis", Year: 2023},
		{ID: "1-3", Type: "Tesis", Year: 2021},
		{ID: "2-1", Type: "Libro", Year: 2020},
	}

	selected := BalancePerType(rows, 2)
	if len(selected) != 3 {
		t.Fatalf("selected = %d, want 3", len(selected))
	}
	years := map[string][]int{}
	for _, row := range selected {
		years[row.Type] = append(years[row.Type], row.Year)
	}
	if !reflect.DeepEqual(years["Tesis"], []int{2023, 2021}) {
		t.Fatalf("tesis years = %v", years["Tesis"])
	}
	if !reflect.DeepEqual(years["Libro"], []int{2020}) {
		t.Fatalf("libro years = %v", years["Libro"])
	}
}

func TestLabelMappings(t *testing.T) {
	rows := []Row{
		{ID: "10915-1", Type: "Tesis", Subject: "Artes"},
		{ID: "10915-2", Type: "Libro"},
	}

	bySubject := LabelMappingBySubject(rows)
	if len(bySubject) != 1 || bySubject["10915-1"] != "Artes" {
		t.Fatalf("subject mapping = %v", bySubject)
	}
	byType := LabelMappingByType(rows)
	if len(byType) != 2 || byType["10915-2"] != "Libro" {
		t.Fatalf("type mapping = %v", byType)
	}
}
