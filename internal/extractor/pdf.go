package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

func extractPDF(data []byte) (text string, err error) {
	// the parser panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = corrupt("pdf", fmt.Errorf("%v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", corrupt("pdf", err)
	}

	var out strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}

		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return "", corrupt("pdf", err)
		}
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		out.WriteString(pageText)
	}

	return out.String(), nil
}
