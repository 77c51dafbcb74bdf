package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

var structValidate = validator.New()

// GenerateObject requests a structured generation. The JSON Schema sent to
// the gateway is reflected from T, and the returned object is decoded into T
// and checked against its `validate` struct tags. T is typically a struct;
// fields the gateway must supply should carry `validate:"required"`.
//
// This is a free function because Go methods cannot be generic.
func GenerateObject[T any](ctx context.Context, c *Client, req TextRequest) (*ObjectResult[T], error) {
	schema, err := reflectSchema[T]()
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, c.http, "/generate-object", requestBody{
		System:    req.System,
		Prompt:    req.Prompt,
		Schema:    schema,
		SessionID: req.SessionID,
		Model:     c.cfg.Model,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		gerr := parseErrorBody(resp.StatusCode, body)
		c.logger.Error("Object generation failed", "status", resp.StatusCode, "code", gerr.Code)
		return nil, gerr
	}

	var or objectResponse
	if err := json.Unmarshal(body, &or); err != nil || or.Usage == nil || or.SessionID == "" || len(or.Object) == 0 {
		return nil, NewError(CodeInvalidResponse, "invalid response from Koine gateway", err)
	}

	var obj T
	if err := json.Unmarshal(or.Object, &obj); err != nil {
		return nil, &Error{
			Code:    CodeValidationError,
			Message: "response validation failed",
			RawText: or.RawText,
			Err:     err,
		}
	}
	if err := validateObject(obj); err != nil {
		return nil, &Error{
			Code:    CodeValidationError,
			Message: "response validation failed",
			RawText: or.RawText,
			Err:     err,
		}
	}

	c.logger.Debug("Object generated", "session_id", or.SessionID)
	return &ObjectResult[T]{
		Object:    obj,
		RawText:   or.RawText,
		Usage:     *or.Usage,
		SessionID: or.SessionID,
	}, nil
}

// reflectSchema builds an inline JSON Schema for T, without $ref indirection,
// since the gateway expects a self-contained schema object.
func reflectSchema[T any]() (json.RawMessage, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(new(T))
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return raw, nil
}

// validateObject applies `validate` struct tags. Non-struct targets (maps,
// slices, primitives) have no tags to check and pass through.
func validateObject(obj any) error {
	err := structValidate.Struct(obj)
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	return err
}
