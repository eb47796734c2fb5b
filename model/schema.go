package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSchema is returned by Schema.Validate.
var ErrInvalidSchema = errors.New("invalid schema")

// Schema is the entity/relation vocabulary of a document, as inferred by
// the AI stage.
type Schema struct {
	Entities  []string `json:"entities"`
	Relations []string `json:"relations"`
	// ValidationSchema maps each relation to the entity types it may link.
	ValidationSchema map[string][]string `json:"validation_schema"`
}

// Validate checks that the schema names at least one entity and one
// relation, and that the validation schema only references declared names.
func (s *Schema) Validate() error {
	if len(s.Entities) == 0 {
		return fmt.Errorf("%w: no entities", ErrInvalidSchema)
	}
	if len(s.Relations) == 0 {
		return fmt.Errorf("%w: no relations", ErrInvalidSchema)
	}
	entities := make(map[string]bool, len(s.Entities))
	for _, e := range s.Entities {
		entities[e] = true
	}
	relations := make(map[string]bool, len(s.Relations))
	for _, r := range s.Relations {
		relations[r] = true
	}
	for rel, ents := range s.ValidationSchema {
		if !relations[rel] {
			return fmt.Errorf("%w: undeclared relation %q", ErrInvalidSchema, rel)
		}
		for _, e := range ents {
			if !entities[e] {
				return fmt.Errorf("%w: relation %q references undeclared entity %q", ErrInvalidSchema, rel, e)
			}
		}
	}
	return nil
}

// JobMetadata describes the work done to produce one result.
type JobMetadata struct {
	Pages    int           `json:"pages"`
	CacheHit bool          `json:"cache_hit"`
	AICalls  int           `json:"ai_calls"`
	OCRCalls int           `json:"ocr_calls"`
	Duration time.Duration `json:"duration_ns"`
}
