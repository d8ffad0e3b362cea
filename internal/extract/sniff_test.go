package extract

import "testing"

func TestSniff(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		mime     string
		fileName string
		data     []byte
		want     Kind
	}{
		{name: "declared wins", declared: "video", mime: "application/pdf", fileName: "a.pdf", want: KindVideo},
		{name: "mime pdf", mime: "application/pdf; charset=binary", want: KindPDF},
		{name: "mime pptx", mime: mimePPTX, want: KindSlides},
		{name: "mime video", mime: "video/mp4", want: KindVideo},
		{name: "extension", fileName: "Deck.PPTX", want: KindSlides},
		{name: "extension mov", fileName: "clip.mov", want: KindVideo},
		{name: "magic pdf", data: []byte("%PDF-1.7\n..."), want: KindPDF},
		{name: "magic mp4", data: []byte("\x00\x00\x00\x18ftypmp42"), want: KindVideo},
		{name: "magic webm", data: []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}, want: KindVideo},
		{name: "unknown", data: []byte("hello"), want: KindUnknown},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.declared, tt.mime, tt.fileName, tt.data); got != tt.want {
				t.Fatalf("Sniff() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSniffZipByContents(t *testing.T) {
	docx := buildZip(t, map[string]string{"word/document.xml": "<w:document/>"})
	if got := Sniff("", "application/zip", "upload.zip", docx); got != KindDOCX {
		t.Fatalf("Sniff(docx zip) = %q", got)
	}
	plain := buildZip(t, map[string]string{"notes.txt": "hello"})
	if got := Sniff("", "application/zip", "notes.zip", plain); got != KindUnknown {
		t.Fatalf("Sniff(plain zip) = %q, want unknown", got)
	}
}

func TestIsRefusal(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{text: "NO_TEXT", want: true},
		{text: "I'm sorry, I can't read this frame.", want: true},
		{text: "There is no text visible in this image.", want: true},
		{text: "Patient unable to ambulate without assistance", want: false},
		{text: "Step 3: Document the wound measurements", want: false},
	}
	for _, tt := range tests {
		if got := isRefusal(tt.text); got != tt.want {
			t.Fatalf("isRefusal(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
