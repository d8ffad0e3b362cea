package extract

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"strings"
)

// Kind selects the extraction chain for a file.
type Kind string

const (
	KindUnknown Kind = ""
	KindPDF     Kind = "pdf"
	KindSlides  Kind = "slides"
	KindVideo   Kind = "video"
	KindText    Kind = "text"
	KindDOCX    Kind = "docx"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	mimePPT  = "application/vnd.ms-powerpoint"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ParseKind maps a caller-declared kind or format label to a Kind.
func ParseKind(raw string) Kind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pdf", "scanned_pdf", "document":
		return KindPDF
	case "slides", "slide_deck", "powerpoint", "ppt", "pptx", "presentation":
		return KindSlides
	case "video", "training_video", "mp4", "mov", "webm":
		return KindVideo
	case "text", "txt", "markdown", "md", "note":
		return KindText
	case "docx", "word":
		return KindDOCX
	default:
		return KindUnknown
	}
}

// Sniff picks a kind from the declared kind, then mime type, then extension, then content.
func Sniff(declared, mimeType, fileName string, data []byte) Kind {
	if k := ParseKind(declared); k != KindUnknown {
		return k
	}
	mimeKind := kindFromMime(normalizeMimeType(mimeType, fileName, data))
	if mimeKind != KindUnknown {
		return mimeKind
	}
	if k := kindFromExt(fileName); k != KindUnknown {
		return k
	}
	return kindFromMagic(data)
}

func kindFromMime(mimeType string) Kind {
	switch {
	case mimeType == mimePDF:
		return KindPDF
	case mimeType == mimePPTX || mimeType == mimePPT:
		return KindSlides
	case mimeType == mimeDOCX:
		return KindDOCX
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	case mimeType == "text/plain" || mimeType == "text/markdown":
		return KindText
	default:
		return KindUnknown
	}
}

func kindFromExt(fileName string) Kind {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return KindPDF
	case ".ppt", ".pptx", ".key", ".odp":
		return KindSlides
	case ".mp4", ".mov", ".m4v", ".webm", ".avi", ".mkv":
		return KindVideo
	case ".txt", ".md":
		return KindText
	case ".docx":
		return KindDOCX
	default:
		return KindUnknown
	}
}

func kindFromMagic(data []byte) Kind {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return KindPDF
	case len(data) >= 12 && string(data[4:8]) == "ftyp":
		return KindVideo
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return KindVideo
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "AVI ":
		return KindVideo
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return kindFromMime(mapOOXMLFromZip(data))
	default:
		return KindUnknown
	}
}

// normalizeMimeType strips parameters and resolves generic zip uploads to their OOXML type.
func normalizeMimeType(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean != "application/zip" && clean != "application/octet-stream" {
		return clean
	}

	if mapped := mapOOXMLFromZip(data); mapped != "" {
		return mapped
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".docx":
		return mimeDOCX
	case ".xlsx":
		return mimeXLSX
	case ".pptx":
		return mimePPTX
	default:
		return clean
	}
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		switch strings.ReplaceAll(f.Name, "\\", "/") {
		case "word/document.xml":
			return mimeDOCX
		case "xl/workbook.xml":
			return mimeXLSX
		case "ppt/presentation.xml":
			return mimePPTX
		}
	}
	return ""
}
