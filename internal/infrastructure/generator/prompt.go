package generator

import (
	"strings"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

const (
	headerPrompt = ` Extract the metadata from the text and provide it in JSON format:
You have to extract the metadata:
language, title, subtitle, creator, subject, rights, rightsurl, date, originPlaceInfo,isrelatedwith`

	middlePrompt = `Here is a JSON Example format:`

	endPrompt = `Now, extract the information from the following text and provide it in the specified JSON format:`
)

// promptExtras names the additional fields appended to the header for
// each type, exactly as they read in the prompt.
var promptExtras = map[domain.DocumentType]string{
	domain.TypeTesis:       " ,codirector, director,degree.grantor, degree.name\n",
	domain.TypeArticulo:    ", journalTitle, journalVolumeAndIssue, issn, event\n",
	domain.TypeConferencia: ", event\n",
	domain.TypeLibro:       ", publisher, isbn, compiler\n",
}

// promptExamples embed one worked repository record per type.
var promptExamples = map[domain.DocumentType]string{
	domain.TypeGeneral: `{
  "language": "es",
  "title": "SIMULACIÓN MEDIANTE MODELOS ANALÍTICOS DE ESTELA EN PARQUES EÓLICOS Y VALIDACIÓN CON MEDICIONES DEL PARQUE EÓLICO RAWSON",
  "subtitle": "Estadisticas y Desempeño de los Modelos Analíticos de Estelas",
  "creator": ["Lazzari, Florencia", "Otero, Alejandro"],
  "subject": "Otras ingenierías y tecnologías",
  "rights": "Creative Commons Attribution-NonCommercial-ShareAlike 4.0 International (CC BY-NC-SA 4.0)",
  "rightsurl": "http://creativecommons.org/licenses/by-nc-sa/4.0/",
  "date": "2018-01-01",
  "originPlaceInfo": "ASADES",
  "isRelatedWith": "http://sedici.unlp.edu.ar/handle/10915/128795"
}`,
	domain.TypeTesis: `{
  "language": "es",
  "title": "¿Es compatible la producción forestal con la producción forrajera en plantaciones de Eucalyptus híbrido?",
  "subtitle": "Una experiencia para la provincia de Buenos Aires",
  "creator": "Siccardi, Bárbara",
  "subject": "Agricultura,silvicultura y pesca",
  "rights": "Creative Commons Attribution-NonCommercial-ShareAlike 4.0 International (CC BY-NC-SA 4.0)",
  "rightsurl": "http://creativecommons.org/licenses/by-nc-sa/4.0/",
  "date": "2023-01-01",
  "originPlaceInfo": "Facultad de Ciencias Agrarias y Forestales",
  "isRelatedWith": "http://sedici.unlp.edu.ar/handle/10915/118764",
  "codirector": "Bárbara Heguy",
  "director": "Carolina Pérez",
  "degree.grantor": "Universidad Nacional de La Plata",
  "degree.name": "Ingeniero Forestal"
}`,
	domain.TypeArticulo: `{
  "language": "en",
  "creator": ["J.I. Soto", "S.V. Jeffers", "D.R.G. Schleicher", "J.A. Rosales"],
  "title": "Exploring the magnetism of stars using TESS data",
  "subtitle": "A new method for the detection of magnetic fields in stars",
  "subject": "Ciencias físicas",
  "rights": "Creative Commons Attribution-NonCommercial-ShareAlike 4.0 International (CC BY-NC-SA 4.0)",
  "rightsurl": "http://creativecommons.org/licenses/by-nc-sa/4.0/",
  "date": "2022-01-01",
  "originPlaceInfo": "Asociación Argentina de Astronomía",
  "isRelatedWith": "http://sedici.unlp.edu.ar/handle/10915/118464",
  "journalTitle": "Boletín de la Asociación Argentina de Astronomía",
  "journalVolumeAndIssue": "Vol. 63",
  "issn": "1669-9521",
  "event": "LXIII Reunión Anual de la Asociación Argentina de Astronomía (Córdoba, 25 al 29 de octubre de 2021)"
}`,
	domain.TypeLibro: `{
  "language": "es",
  "creator": ["Ruiz de Arcaute, Celeste", "Laborde, Milagros Rosa Raquel", "Soloneski, Sonia María Elsa", "Larramendy, Marcelo Luis"],
  "title": "Genotoxicidad y carcinogénesis",
  "subtitle": "Estudios de la genética toxicológica",
  "subject": "Ciencias biológicas",
  "rights": "Creative Commons Attribution-NonCommercial-ShareAlike 4.0 International (CC BY-NC-SA 4.0)",
  "rightsurl": "http://creativecommons.org/licenses/by-nc-sa/4.0/",
  "date": "2021-01-01",
  "originPlaceInfo": ["Facultad de Ciencias Naturales y Museo", "Facultad de Ciencias Exactas"],
  "isRelatedWith": "http://sedici.unlp.edu.ar/handle/10915/118183",
  "publisher": "Editorial de la Universidad Nacional de La Plata (EDULP)",
  "isbn": "978-950-34-1987-8",
  "compiler": "Pedro Carriquiriborde"
}`,
}

// PromptFor assembles the natural-language prompt for one document
// type: header plus type extras, the worked example, and the closing
// instruction. Types without their own example borrow the article one
// (conference objects) or fall back to general.
func PromptFor(docType domain.DocumentType) string {
	example, ok := promptExamples[docType]
	if !ok {
		if docType == domain.TypeConferencia {
			example = promptExamples[domain.TypeArticulo]
		} else {
			example = promptExamples[domain.TypeGeneral]
		}
	}
	var b strings.Builder
	b.WriteString(headerPrompt)
	b.WriteString(promptExtras[docType])
	b.WriteString(middlePrompt)
	b.WriteString(example)
	b.WriteString(endPrompt)
	return b.String()
}
