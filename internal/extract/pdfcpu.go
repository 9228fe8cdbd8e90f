package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFCPUSource reads page counts and embedded images with pdfcpu.
type PDFCPUSource struct{}

func NewPDFCPUSource() *PDFCPUSource {
	return &PDFCPUSource{}
}

// pdfcpu mutates its configuration per command, so every call gets its own.
func newPDFCPUConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func (s *PDFCPUSource) PageCount(_ context.Context, data []byte) (n int, err error) {
	defer recoverPDF(&err)
	n, err = api.PageCount(bytes.NewReader(data), newPDFCPUConfig())
	if err != nil {
		return 0, fmt.Errorf("pdfcpu page count: %w", err)
	}
	return n, nil
}

func (s *PDFCPUSource) PageImages(_ context.Context, data []byte, page int) (out [][]byte, err error) {
	defer recoverPDF(&err)
	pages, err := api.ExtractImagesRaw(bytes.NewReader(data), []string{strconv.Itoa(page)}, newPDFCPUConfig())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu extract images page %d: %w", page, err)
	}

	var imgs []model.Image
	for _, byObj := range pages {
		for _, img := range byObj {
			imgs = append(imgs, img)
		}
	}
	sort.Slice(imgs, func(i, j int) bool { return imgs[i].ObjNr < imgs[j].ObjNr })

	out = make([][]byte, 0, len(imgs))
	for _, img := range imgs {
		if img.Reader == nil {
			continue
		}
		b, err := io.ReadAll(img.Reader)
		if err != nil {
			return nil, fmt.Errorf("read image obj %d: %w", img.ObjNr, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// recoverPDF turns a parser panic on a malformed document into an error.
func recoverPDF(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("pdfcpu panic: %v", r)
	}
}
