package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfInfo is what pdfcpu can tell about a PDF without extracting text.
type pdfInfo struct {
	Pages     int
	Encrypted bool
	Invalid   bool
}

func inspectPDF(data []byte) (info pdfInfo) {
	if len(data) == 0 {
		return pdfInfo{Invalid: true}
	}
	defer func() {
		if r := recover(); r != nil {
			info = pdfInfo{Invalid: true}
		}
	}()
	conf := model.NewDefaultConfiguration()
	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "password") || strings.Contains(msg, "encrypt") {
			return pdfInfo{Encrypted: true}
		}
		return pdfInfo{Invalid: true}
	}
	return pdfInfo{Pages: pages}
}

// pdfDiagnostic explains a failed PDF chain in operator terms.
func pdfDiagnostic(info pdfInfo, minChars int) string {
	switch {
	case info.Encrypted:
		return "PDF is password-protected; remove the password and re-upload"
	case info.Invalid:
		return "file could not be read as a PDF; it may be corrupt or mislabelled"
	case info.Pages > 0:
		return fmt.Sprintf("no readable text (more than %d characters) could be extracted from a %d-page PDF; it may be a low-quality scan", minChars, info.Pages)
	default:
		return fmt.Sprintf("no readable text (more than %d characters) could be extracted from the PDF", minChars)
	}
}
