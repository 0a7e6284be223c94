package scheduler

import (
	"fmt"
)

// Validator validates assistant and run requests
type Validator struct{}

// NewValidator creates a new request validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAssistant validates an assistant registration request
func (v *Validator) ValidateAssistant(name, graphID string) error {
	if name == "" {
		return fmt.Errorf("assistant name is required")
	}
	if graphID == "" {
		return fmt.Errorf("graph_id is required")
	}
	return nil
}

// ValidateRunRequest validates a run submission request
func (v *Validator) ValidateRunRequest(assistantID string) error {
	if assistantID == "" {
		return fmt.Errorf("assistant_id is required")
	}
	return nil
}
