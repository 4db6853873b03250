package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Amendment types. Each type constrains the shape of the changes payload via
// its JSON Schema below.
const (
	AmendmentTypeRentChange           = "RENT_CHANGE"
	AmendmentTypeTermExtension        = "TERM_EXTENSION"
	AmendmentTypeUtilityChange        = "UTILITY_CHANGE"
	AmendmentTypeResponsibilityChange = "RESPONSIBILITY_CHANGE"
	AmendmentTypeTenantChange         = "TENANT_CHANGE"
	AmendmentTypeDepositChange        = "DEPOSIT_CHANGE"
	AmendmentTypeFeeStructureChange   = "FEE_STRUCTURE_CHANGE"
	AmendmentTypeOther                = "OTHER"
)

const changeProperties = `{
    "startDate": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "endDate": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "rentAmount": {"type": "number", "exclusiveMinimum": 0},
    "securityDeposit": {"type": "number", "minimum": 0},
    "tenantEmail": {"type": "string", "format": "email", "minLength": 3},
    "tenantPaysElectric": {"type": "boolean"},
    "tenantPaysWater": {"type": "boolean"},
    "tenantPaysTrash": {"type": "boolean"},
    "tenantPaysInternet": {"type": "boolean"}
}`

// changesSchemas maps each amendment type to the schema its changes payload
// must satisfy. All payloads are restricted to the known change keys; the
// per-type entries add the required fields on top.
var changesSchemas = map[string]string{
	AmendmentTypeRentChange: `{
        "type": "object",
        "properties": ` + changeProperties + `,
        "additionalProperties": false,
        "required": ["rentAmount"]
    }`,
	AmendmentTypeTermExtension: `{
        "type": "object",
        "properties": ` + changeProperties + `,
        "additionalProperties": false,
        "required": ["endDate"]
    }`,
	AmendmentTypeUtilityChange: `{
        "type": "object",
        "properties": ` + changeProperties + `,
        "additionalProperties": false,
        "minProperties": 1,
        "anyOf": [
            {"required": ["tenantPaysElectric"]},
            {"required": ["tenantPaysWater"]},
            {"required": ["tenantPaysTrash"]},
            {"required": ["tenantPaysInternet"]}
        ]
    }`,
	AmendmentTypeResponsibilityChange: `{
        "type": "object",
        "properties": ` + changeProperties + `,
        "additionalProperties": false,
        "minProperties": 1
    }`,
	AmendmentTypeTenantChange: `{
        "type": "object",
        "properties": ` + changeProperties + `,
        "additionalProperties": false,
        "required": ["tenantEmail"]
    }`,
	AmendmentTypeDepositChange: `{
        "type": "object",
        "properties": ` + changeProperties + `,
        "additionalProperties": false,
        "required": ["securityDeposit"]
    }`,
	AmendmentTypeFeeStructureChange: `{
        "type": "object",
        "properties": ` + changeProperties + `,
        "additionalProperties": false,
        "minProperties": 1
    }`,
	AmendmentTypeOther: `{
        "type": "object",
        "properties": ` + changeProperties + `,
        "additionalProperties": false,
        "minProperties": 1
    }`,
}

// ChangesValidator validates amendment changes payloads against the per-type
// JSON Schemas, compiled via santhosh-tekuri/jsonschema and cached.
type ChangesValidator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewChangesValidator returns a validator with an empty schema cache.
func NewChangesValidator() *ChangesValidator {
	return &ChangesValidator{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// KnownAmendmentType reports whether the given type has a changes schema.
func KnownAmendmentType(amendmentType string) bool {
	_, ok := changesSchemas[amendmentType]
	return ok
}

// Validate ensures the changes payload matches the schema for the amendment type.
func (v *ChangesValidator) Validate(ctx context.Context, amendmentType string, changes []byte) error {
	if len(changes) == 0 {
		return fmt.Errorf("changes payload is required for validation")
	}

	compiled, err := v.getOrCompile(amendmentType)
	if err != nil {
		return err
	}

	var document any
	if err := json.Unmarshal(changes, &document); err != nil {
		return fmt.Errorf("decode changes: %w", err)
	}

	if err := compiled.Validate(document); err != nil {
		return fmt.Errorf("changes validation: %w", err)
	}

	return nil
}

func (v *ChangesValidator) getOrCompile(amendmentType string) (*jsonschema.Schema, error) {
	definition, ok := changesSchemas[amendmentType]
	if !ok {
		return nil, fmt.Errorf("unknown amendment type %q", amendmentType)
	}

	v.mu.RLock()
	compiled, ok := v.cache[amendmentType]
	v.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// another goroutine may have populated the cache while we were waiting
	if compiled, ok = v.cache[amendmentType]; ok {
		return compiled, nil
	}

	key := fmt.Sprintf("memory://amendments/%s", strings.ToLower(amendmentType))
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(key, strings.NewReader(definition)); err != nil {
		return nil, fmt.Errorf("register schema %s: %w", key, err)
	}

	newCompiled, err := compiler.Compile(key)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", key, err)
	}

	v.cache[amendmentType] = newCompiled
	return newCompiled, nil
}
