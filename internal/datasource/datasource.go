package datasource

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ai-integration/internal/models"
)

// VerifyTimeout bounds a connection check.
const VerifyTimeout = 5 * time.Second

// Store is the persistence the verifier needs.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*models.DataSource, error)
	List(ctx context.Context) ([]models.DataSource, error)
	SetVerified(ctx context.Context, id uuid.UUID, verified bool, at time.Time) error
}

// FullURL returns the source URL with one "field={example}" placeholder per
// filter param. A param without an example uses its field name.
func FullURL(ds *models.DataSource) string {
	var filters []string
	for _, p := range ds.Params {
		if p.Kind != models.ParamFilter {
			continue
		}
		filters = append(filters, fmt.Sprintf("%s={%s}", p.FieldName, example(p)))
	}
	if len(filters) == 0 {
		return ds.URL
	}
	sep := "?"
	if strings.Contains(ds.URL, "?") {
		sep = "&"
	}
	return ds.URL + sep + strings.Join(filters, "&")
}

// JSONBody returns an example request body built from the field params.
func JSONBody(ds *models.DataSource) map[string]string {
	body := make(map[string]string)
	for _, p := range ds.Params {
		if p.Kind == models.ParamField {
			body[p.FieldName] = example(p)
		}
	}
	return body
}

// Headers returns the request headers for a source, including
// "Authorization: <type> <token>" when both are set.
func Headers(authType, authToken string) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	if authType != "" && authToken != "" {
		h.Set("Authorization", authType+" "+authToken)
	}
	return h
}

func example(p models.DataSourceParam) string {
	if p.Example != "" {
		return p.Example
	}
	return p.FieldName
}

// Verifier checks that data sources answer.
type Verifier struct {
	store      Store
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewVerifier creates a Verifier.
func NewVerifier(store Store, logger *zap.Logger) *Verifier {
	return &Verifier{
		store:      store,
		httpClient: &http.Client{Timeout: VerifyTimeout},
		logger:     logger,
		now:        time.Now,
	}
}

// Check GETs url and reports whether it answered 200. Transport failures
// count as unverified, not as errors.
func (v *Verifier) Check(ctx context.Context, url, authType, authToken string) (bool, error) {
	if url == "" {
		return false, &models.ValidationError{Code: models.ErrorCodeMissingURL, Field: "url", Message: "URL is required"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, models.NewValidationError("url", fmt.Sprintf("invalid URL: %v", err))
	}
	req.Header = Headers(authType, authToken)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		v.logger.Info("Data source unreachable", zap.String("url", url), zap.Error(err))
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Verify checks the saved data source id and records the outcome.
func (v *Verifier) Verify(ctx context.Context, id uuid.UUID) (bool, error) {
	ds, err := v.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	ok, err := v.Check(ctx, ds.URL, ds.AuthType, ds.AuthToken)
	if err != nil {
		return false, err
	}
	if err := v.store.SetVerified(ctx, id, ok, v.now().UTC()); err != nil {
		return false, err
	}
	v.logger.Info("Data source verified", zap.String("data_source", ds.Name), zap.Bool("verified", ok))
	return ok, nil
}

// VerifyAll re-checks every data source with a URL, a few at a time, then
// records the outcomes. It returns how many answered.
func (v *Verifier) VerifyAll(ctx context.Context) (int, error) {
	list, err := v.store.List(ctx)
	if err != nil {
		return 0, err
	}

	results := make([]*bool, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range list {
		ds := list[i]
		if ds.URL == "" {
			continue
		}
		g.Go(func() error {
			ok, err := v.Check(gctx, ds.URL, ds.AuthType, ds.AuthToken)
			if err != nil {
				v.logger.Warn("Skipping data source", zap.String("data_source", ds.Name), zap.Error(err))
				return nil
			}
			results[i] = &ok
			return nil
		})
	}
	_ = g.Wait()

	verified := 0
	at := v.now().UTC()
	for i, ok := range results {
		if ok == nil {
			continue
		}
		if err := v.store.SetVerified(ctx, list[i].ID, *ok, at); err != nil {
			return verified, err
		}
		if *ok {
			verified++
		}
	}
	return verified, nil
}
