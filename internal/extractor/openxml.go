package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// maxPartSize caps how much of one archive entry is decompressed.
const maxPartSize = 64 << 20

var slidePartName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", corrupt("docx", err)
	}

	f := findZipFile(zr, "word/document.xml")
	if f == nil {
		return "", corrupt("docx", errors.New("missing word/document.xml"))
	}
	b, err := readZipFile(f)
	if err != nil {
		return "", corrupt("docx", err)
	}

	var (
		out  strings.Builder
		para strings.Builder
	)
	dec := xml.NewDecoder(bytes.NewReader(b))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", corrupt("docx", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				var v string
				if err := dec.DecodeElement(&v, &el); err != nil {
					return "", corrupt("docx", err)
				}
				para.WriteString(v)
			case "tab":
				para.WriteString("\t")
			case "br", "cr":
				para.WriteString("\n")
			}
		case xml.EndElement:
			if el.Name.Local == "p" {
				out.WriteString(para.String())
				out.WriteString("\n")
				para.Reset()
			}
		}
	}
	out.WriteString(para.String())

	return strings.TrimRight(out.String(), "\n"), nil
}

type slidePart struct {
	number int
	file   *zip.File
}

// extractPPTX joins the text runs of each slide with a space and the slides
// with a blank line. Slides are ordered by the number in their part name.
func extractPPTX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", corrupt("pptx", err)
	}

	var slides []slidePart
	for _, f := range zr.File {
		m := slidePartName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slidePart{number: n, file: f})
	}
	sort.SliceStable(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	texts := make([]string, 0, len(slides))
	for _, s := range slides {
		b, err := readZipFile(s.file)
		if err != nil {
			return "", corrupt("pptx", err)
		}
		runs, err := textRuns(b)
		if err != nil {
			return "", corrupt("pptx", err)
		}
		if len(runs) > 0 {
			texts = append(texts, strings.Join(runs, " "))
		}
	}

	return strings.Join(texts, "\n\n"), nil
}

// textRuns collects the non-empty <a:t> runs of a DrawingML part in order.
func textRuns(xmlBytes []byte) ([]string, error) {
	var runs []string
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return runs, nil
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "t" {
			continue
		}
		var v string
		if err := dec.DecodeElement(&v, &se); err != nil {
			return nil, err
		}
		if v != "" {
			runs = append(runs, v)
		}
	}
}

func findZipFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxPartSize))
}
