package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor turns PDF bytes into plain text and text into candidate tag
// strings. It holds configuration only; both operations are pure.
type Extractor struct {
	config ExtractorConfig
}

type ExtractorConfig struct {
	MaxCandidates   int
	MinWordLength   int
	CustomStopwords []string
}

func NewWithConfig(config ExtractorConfig) Extractor {
	if config.MaxCandidates == 0 {
		config.MaxCandidates = 5
	}
	if config.MinWordLength == 0 {
		config.MinWordLength = 3
	}

	return Extractor{
		config: config,
	}
}

// Text extracts the plain text of every page of a PDF.
func (e Extractor) Text(fileBytes []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(fileBytes), int64(len(fileBytes)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	return strings.TrimSpace(sb.String()), nil
}
