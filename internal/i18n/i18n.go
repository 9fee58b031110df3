// Package i18n holds the two fixed user-facing language packs.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Pack is the set of user-facing strings for one locale.
type Pack struct {
	Lang        string `json:"lang"`
	Title       string `json:"title"`
	UploadLabel string `json:"upload_label"`
	Placeholder string `json:"placeholder"`
	Processing  string `json:"processing"`
	NoDocument  string `json:"no_document"`
	ParseFailed string `json:"parse_failed"`
	Busy        string `json:"busy"`
}

var (
	Spanish = Pack{
		Lang:        "es",
		Title:       "Preguntas y respuestas sobre PDF",
		UploadLabel: "Sube tu archivo PDF",
		Placeholder: "Escribe tu pregunta sobre el PDF...",
		Processing:  "Procesando el PDF...",
		NoDocument:  "Por favor, sube un archivo PDF primero.",
		ParseFailed: "No se pudo leer el PDF.",
		Busy:        "Espera a que termine la respuesta anterior.",
	}
	English = Pack{
		Lang:        "en",
		Title:       "PDF Q&A",
		UploadLabel: "Upload your PDF file",
		Placeholder: "Ask a question about the PDF...",
		Processing:  "Processing the PDF...",
		NoDocument:  "Please upload a PDF file first.",
		ParseFailed: "The PDF could not be read.",
		Busy:        "Wait for the previous answer to finish.",
	}
)

// Default is the pack used when no locale matches.
var Default = Spanish

var matcher = language.NewMatcher([]language.Tag{
	language.Spanish, // first entry is the fallback
	language.English,
})

// Lookup returns the pack closest to locale, e.g. "es-MX" or "en_US".
// Unknown or malformed locales fall back to Default.
func Lookup(locale string) Pack {
	locale = strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
	if locale == "" {
		return Default
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return Default
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return Default
	}
	if idx == 1 {
		return English
	}
	return Spanish
}
