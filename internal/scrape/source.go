package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesy/jobscraps/internal/storage"
)

// Source produces postings for one search. Implementations own transport
// details; the runner only sees postings and errors.
type Source interface {
	Search(ctx context.Context, params map[string]any) ([]storage.JobPosting, error)
}

// HTTPSource queries the scraper sidecar's JSON API.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// wireJob mirrors the sidecar's posting JSON. Only the fields the store
// models are decoded; anything else the sidecar sends is dropped.
type wireJob struct {
	ID          string   `json:"id"`
	Site        string   `json:"site"`
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	MinAmount   *float64 `json:"min_amount"`
	MaxAmount   *float64 `json:"max_amount"`
	IsRemote    *bool    `json:"is_remote"`
	DatePosted  string   `json:"date_posted"`

	JobURL              string `json:"job_url"`
	JobURLDirect        string `json:"job_url_direct"`
	JobType             string `json:"job_type"`
	SalarySource        string `json:"salary_source"`
	Interval            string `json:"interval"`
	Currency            string `json:"currency"`
	JobLevel            string `json:"job_level"`
	JobFunction         string `json:"job_function"`
	ListingType         string `json:"listing_type"`
	Emails              string `json:"emails"`
	CompanyIndustry     string `json:"company_industry"`
	CompanyURL          string `json:"company_url"`
	CompanyLogo         string `json:"company_logo"`
	CompanyURLDirect    string `json:"company_url_direct"`
	CompanyAddresses    string `json:"company_addresses"`
	CompanyNumEmployees string `json:"company_num_employees"`
	CompanyRevenue      string `json:"company_revenue"`
	CompanyDescription  string `json:"company_description"`
	Skills              string `json:"skills"`
	ExperienceRange     string `json:"experience_range"`
	CompanyRating       string `json:"company_rating"`
	CompanyReviewsCount string `json:"company_reviews_count"`
	VacancyCount        string `json:"vacancy_count"`
	WorkFromHomeType    string `json:"work_from_home_type"`
}

type searchResponse struct {
	Jobs []wireJob `json:"jobs"`
}

// Search posts the merged parameters to the sidecar and decodes the
// returned postings.
func (s *HTTPSource) Search(ctx context.Context, params map[string]any) ([]storage.JobPosting, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding search params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying scraper service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("scraper service returned %d: %s", resp.StatusCode, snippet)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	postings := make([]storage.JobPosting, 0, len(decoded.Jobs))
	for _, j := range decoded.Jobs {
		postings = append(postings, j.toPosting())
	}
	return postings, nil
}

func (j wireJob) toPosting() storage.JobPosting {
	return storage.JobPosting{
		ID:          j.ID,
		Site:        j.Site,
		Title:       j.Title,
		Company:     j.Company,
		Location:    j.Location,
		Description: j.Description,
		MinAmount:   j.MinAmount,
		MaxAmount:   j.MaxAmount,
		IsRemote:    j.IsRemote,
		DatePosted:  j.DatePosted,

		JobURL:              j.JobURL,
		JobURLDirect:        j.JobURLDirect,
		JobType:             j.JobType,
		SalarySource:        j.SalarySource,
		Interval:            j.Interval,
		Currency:            j.Currency,
		JobLevel:            j.JobLevel,
		JobFunction:         j.JobFunction,
		ListingType:         j.ListingType,
		Emails:              j.Emails,
		CompanyIndustry:     j.CompanyIndustry,
		CompanyURL:          j.CompanyURL,
		CompanyLogo:         j.CompanyLogo,
		CompanyURLDirect:    j.CompanyURLDirect,
		CompanyAddresses:    j.CompanyAddresses,
		CompanyNumEmployees: j.CompanyNumEmployees,
		CompanyRevenue:      j.CompanyRevenue,
		CompanyDescription:  j.CompanyDescription,
		Skills:              j.Skills,
		ExperienceRange:     j.ExperienceRange,
		CompanyRating:       j.CompanyRating,
		CompanyReviewsCount: j.CompanyReviewsCount,
		VacancyCount:        j.VacancyCount,
		WorkFromHomeType:    j.WorkFromHomeType,
	}
}
