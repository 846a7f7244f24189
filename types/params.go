package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

type CreateSessionParams struct {
	DocumentID string `json:"document_id" validate:"required,uuid"`
}

type ChatParams struct {
	Message string `json:"message" validate:"required"`
}

func (params *CreateSessionParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *ChatParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(v any) map[string]string {
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

type ChatResponse struct {
	Assistant string   `json:"assistant"`
	Progress  Progress `json:"progress"`
}
