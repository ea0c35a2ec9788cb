// internal/resolver/documents.go
package resolver

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"tender-alerts/internal/common/errors"
	commonhttp "tender-alerts/internal/common/http"
	"tender-alerts/internal/models"
)

const maxDocumentBytes = 25 << 20

// HTTPDocumentFetcher downloads the tender document from the upstream
// source.
type HTTPDocumentFetcher struct {
	baseURL    string
	httpClient *commonhttp.Client
}

func NewHTTPDocumentFetcher(baseURL string, httpClient *commonhttp.Client) *HTTPDocumentFetcher {
	return &HTTPDocumentFetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (f *HTTPDocumentFetcher) FetchDocument(ctx context.Context, ann *models.Announcement) ([]byte, string, error) {
	url := fmt.Sprintf("%s/%s/document", f.baseURL, ann.ProcessID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", errors.NewSourceFetchFailedError(err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", errors.NewSourceFetchFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.NewSourceFetchFailedError(
			fmt.Errorf("document endpoint returned %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, "", errors.NewSourceFetchFailedError(err)
	}

	return data, documentFilename(resp.Header.Get("Content-Disposition"), ann.ProcessID), nil
}

func documentFilename(contentDisposition, processID string) string {
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	return fmt.Sprintf("pliego-%s.pdf", processID)
}

// SummaryAnalyzer builds the analysis and compatibility replies from the
// cached announcement fields alone, without calling an external service.
type SummaryAnalyzer struct{}

func NewSummaryAnalyzer() *SummaryAnalyzer {
	return &SummaryAnalyzer{}
}

func (SummaryAnalyzer) Analyze(ctx context.Context, ann *models.Announcement) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Analisis del proceso %s\n\n", ann.ProcessID)
	if ann.Title != "" {
		fmt.Fprintf(&b, "Objeto: %s\n", ann.Title)
	}
	if ann.Entity != "" {
		fmt.Fprintf(&b, "Entidad: %s\n", ann.Entity)
	}
	if ann.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", ann.Description)
	}
	for key, value := range ann.Fields {
		fmt.Fprintf(&b, "%s: %v\n", key, value)
	}
	return b.String(), nil
}

func (SummaryAnalyzer) Compatibility(ctx context.Context, ann *models.Announcement) (string, error) {
	return fmt.Sprintf(
		"Para evaluar tu compatibilidad con el proceso %s revisa los requisitos habilitantes del pliego. Usa el boton de descarga para obtener el documento completo.",
		ann.ProcessID), nil
}
