// Package validation checks request structs against their `validate` tags
// and reports failures as INVALID_INPUT AppErrors.
//
//	type credentialRequest struct {
//	    Key string `json:"key" validate:"required,max=512"`
//	}
//	if err := validation.Validate(&req); err != nil {
//	    server.RespondWithError(c, err)
//	}
package validation
