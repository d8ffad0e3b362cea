package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

var slideNamePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// pdfTextLayer reads the embedded text layer; scanned PDFs yield little or nothing.
func pdfTextLayer(data []byte) (text string, err error) {
	defer func() {
		// ledongthuc/pdf panics on some malformed xref tables.
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf text layer: %v", r)
		}
	}()
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func docxText(data []byte) (string, error) {
	zr, err := openZip(data)
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			raw, err := readZipFile(f)
			if err != nil {
				return "", err
			}
			return stripOOXML(raw, "p", "br"), nil
		}
	}
	return "", errors.New("word/document.xml not found")
}

// pptxText concatenates slide text in slide order.
func pptxText(data []byte) (string, error) {
	zr, err := openZip(data)
	if err != nil {
		return "", err
	}
	type slide struct {
		n int
		f *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideNamePattern.FindStringSubmatch(strings.ReplaceAll(f.Name, "\\", "/"))
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, f: f})
	}
	if len(slides) == 0 {
		return "", errors.New("no slides found in presentation")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var b strings.Builder
	for _, s := range slides {
		raw, err := readZipFile(s.f)
		if err != nil {
			return "", err
		}
		text := stripOOXML(raw, "p")
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "Slide %d:\n%s\n\n", s.n, text)
	}
	return strings.TrimSpace(b.String()), nil
}

func openZip(data []byte) (*zip.Reader, error) {
	if len(data) == 0 {
		return nil, errors.New("empty archive")
	}
	return zip.NewReader(bytes.NewReader(data), int64(len(data)))
}

func readZipFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// stripOOXML keeps character data and breaks lines after the given element names.
func stripOOXML(raw string, lineBreaks ...string) string {
	breaks := make(map[string]bool, len(lineBreaks))
	for _, name := range lineBreaks {
		breaks[name] = true
	}
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return strings.TrimSpace(buf.String())
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.EndElement:
			if breaks[t.Name.Local] && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
