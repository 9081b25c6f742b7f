package types

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

// GenerateRequest asks for a full ICF generation run.
type GenerateRequest struct {
	Collection string                 `json:"protocol_collection_name" validate:"required"`
	Metadata   map[string]interface{} `json:"protocol_metadata,omitempty"`
}

// RegenerateRequest asks for a single-section regeneration run.
type RegenerateRequest struct {
	Collection  string                 `json:"protocol_collection_name" validate:"required"`
	SectionName string                 `json:"section_name" validate:"required"`
	Metadata    map[string]interface{} `json:"protocol_metadata,omitempty"`
}

// UploadProtocolRequest carries an extracted protocol document for indexing.
type UploadProtocolRequest struct {
	StudyAcronym  string `json:"study_acronym" validate:"required"`
	ProtocolTitle string `json:"protocol_title" validate:"required"`
	Filename      string `json:"filename,omitempty"`
	Text          string `json:"text" validate:"required"`
}

// UploadProtocolResponse reports the created collection.
type UploadProtocolResponse struct {
	Collection string `json:"collection_name"`
	ChunkCount int    `json:"chunk_count"`
	Status     string `json:"status"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (r *GenerateRequest) Validate() map[string]string       { return validateStruct(r) }
func (r *RegenerateRequest) Validate() map[string]string     { return validateStruct(r) }
func (r *UploadProtocolRequest) Validate() map[string]string { return validateStruct(r) }

func validateStruct(v interface{}) map[string]string {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: http.StatusUnprocessableEntity,
		Errors: errors,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}
