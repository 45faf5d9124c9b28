package api

import "github.com/tautaras/review-crawler/internal/reviews"

type extractRequest struct {
	URL string `json:"url"`
}

type extractResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
}

type statusResponse struct {
	JobID    string              `json:"job_id"`
	Status   reviews.JobStatus   `json:"status"`
	Progress reviews.JobProgress `json:"progress"`
	Error    string              `json:"error,omitempty"`
}

type ingestResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type searchResponse struct {
	Status       string                 `json:"status"`
	Page         int                    `json:"page"`
	PageSize     int                    `json:"page_size"`
	TotalResults int                    `json:"total_results"`
	TotalPages   int                    `json:"total_pages"`
	Reviews      []reviews.ReviewRecord `json:"reviews"`
}
