package pdf

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/tsawler/intelliparse/imagedoc"
	"github.com/tsawler/intelliparse/model"
)

var disableConfigDir sync.Once

// imageContext parses the file a second time with pdfcpu, which decodes
// image XObjects into standalone files.
func (r *Reader) imageContext() (*pdfmodel.Context, error) {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(r.data), conf)
	if err != nil {
		return nil, fmt.Errorf("reading images: %w", err)
	}
	return ctx, nil
}

// attachImages fills in the images of each page. Failures are warnings;
// the pages keep their text.
func (r *Reader) attachImages(pages []*page) {
	ctx, err := r.imageContext()
	if err != nil {
		r.warnings = append(r.warnings, err.Error())
		return
	}
	for _, p := range pages {
		imgs, err := pageImages(ctx, p.num)
		if err != nil {
			r.warnings = append(r.warnings, fmt.Sprintf("page %d images: %v", p.num, err))
			continue
		}
		p.images = imgs
	}
}

// pageImages extracts the image XObjects of one page in object order.
func pageImages(ctx *pdfmodel.Context, pageNr int) (images []*model.Image, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			images, err = nil, fmt.Errorf("%v", rec)
		}
	}()

	found, err := pdfcpu.ExtractPageImages(ctx, pageNr, false)
	if err != nil {
		return nil, err
	}
	objNrs := make([]int, 0, len(found))
	for nr := range found {
		objNrs = append(objNrs, nr)
	}
	sort.Ints(objNrs)

	for _, nr := range objNrs {
		pi := found[nr]
		if pi.Reader == nil {
			continue
		}
		data, err := io.ReadAll(pi)
		if err != nil {
			return images, fmt.Errorf("image %d: %w", nr, err)
		}
		if len(data) == 0 {
			continue
		}
		img := imagedoc.NewImage(fmt.Sprintf("page%d_img%d.%s", pageNr, nr, pi.FileType), data)
		if img.Width == 0 || img.Height == 0 {
			img.Width, img.Height = pi.Width, pi.Height
		}
		images = append(images, img)
	}
	return images, nil
}
