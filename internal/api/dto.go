package api

import (
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/recordservice"
)

// InitializeRecordRequest is the request body for creating a record.
type InitializeRecordRequest struct {
	Owner models.Identity `json:"owner" validate:"required"`
}

// AppendContributionRequest is the request body for appending a word.
type AppendContributionRequest struct {
	Author models.Identity `json:"author" validate:"required"`
	Text   string          `json:"text" example:"ocean" validate:"required"`
}

// RecordDetail is the record response type (aliased from the domain layer).
type RecordDetail = recordservice.RecordDetail

// RecordListResponse wraps the records of one program.
type RecordListResponse struct {
	Records []models.RecordAddress `json:"records" validate:"required"`
}
