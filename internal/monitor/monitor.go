package monitor

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// CheckoutRequestSchema is the contract of the pay endpoint body.
//
//go:embed schemas/checkout_request.json
var CheckoutRequestSchema []byte

// ContractMonitor validates incoming requests against a JSON schema.
type ContractMonitor struct {
	schema *gojsonschema.Schema
}

// NewContractMonitor loads the schema at schemaPath, an absolute path or one
// relative to the working directory.
func NewContractMonitor(schemaPath string) (*ContractMonitor, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewReferenceLoader("file://" + schemaPath))
	if err != nil {
		return nil, fmt.Errorf("error loading or compiling schema %s: %w", schemaPath, err)
	}
	return &ContractMonitor{schema: schema}, nil
}

// NewContractMonitorFromJSON compiles an in-memory schema.
func NewContractMonitorFromJSON(schemaJSON []byte) (*ContractMonitor, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("error compiling schema: %w", err)
	}
	return &ContractMonitor{schema: schema}, nil
}

// NewCheckoutMonitor validates pay request bodies.
func NewCheckoutMonitor() (*ContractMonitor, error) {
	return NewContractMonitorFromJSON(CheckoutRequestSchema)
}

// Validate validates requestBody against the schema. It returns true if
// valid, or false and the validation errors if not. The error is set only
// when the body could not be validated at all (e.g. it is not JSON).
func (cm *ContractMonitor) Validate(requestBody []byte) (bool, []string, error) {
	result, err := cm.schema.Validate(gojsonschema.NewBytesLoader(requestBody))
	if err != nil {
		return false, nil, fmt.Errorf("error during validation: %w", err)
	}
	if result.Valid() {
		return true, nil, nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return false, errs, nil
}

// FormatErrors joins validation errors into one message.
func FormatErrors(validationErrors []string) string {
	if len(validationErrors) == 0 {
		return ""
	}
	return "Validation errors: " + strings.Join(validationErrors, "; ")
}
