package ocr

import "context"

// StubText is what StubExtractor reports for every image.
const StubText = "Extracted text from uploaded image"

// Extractor recovers text from a screenshot.
type Extractor interface {
	Extract(ctx context.Context, img *Image) (string, error)
}

// StubExtractor stands in for a real OCR engine. It ignores the image.
type StubExtractor struct{}

func (StubExtractor) Extract(context.Context, *Image) (string, error) {
	return StubText, nil
}

var _ Extractor = StubExtractor{}
