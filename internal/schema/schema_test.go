package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Question string `json:"question" validate:"required,notblank"`
	Document string `json:"document" validate:"required,pdf_datauri"`
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		input      sample
		wantFields []string
		wantRules  []string
	}{
		{
			name:  "valid",
			input: sample{Question: "What is the main conclusion?", Document: "data:application/pdf;base64,aGk="},
		},
		{
			name:       "missing question",
			input:      sample{Document: "data:application/pdf;base64,aGk="},
			wantFields: []string{"question"},
			wantRules:  []string{"required"},
		},
		{
			name:       "blank question",
			input:      sample{Question: "   ", Document: "data:application/pdf;base64,aGk="},
			wantFields: []string{"question"},
			wantRules:  []string{"notblank"},
		},
		{
			name:       "non pdf data uri",
			input:      sample{Question: "q", Document: "data:image/png;base64,aGk="},
			wantFields: []string{"document"},
			wantRules:  []string{TagPDFDataURI},
		},
		{
			name:       "not a data uri",
			input:      sample{Question: "q", Document: "https://example.com/a.pdf"},
			wantFields: []string{"document"},
			wantRules:  []string{TagPDFDataURI},
		},
		{
			name:       "everything missing",
			input:      sample{},
			wantFields: []string{"question", "document"},
			wantRules:  []string{"required", "required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.input)
			if tt.wantFields == nil {
				require.NoError(t, err)
				return
			}

			var serr *Error
			require.True(t, errors.As(err, &serr), "expected *schema.Error, got %T", err)
			var fields, rules []string
			for _, f := range serr.Fields {
				fields = append(fields, f.Field)
				rules = append(rules, f.Rule)
				assert.NotEmpty(t, f.Message)
			}
			assert.Equal(t, tt.wantFields, fields)
			assert.Equal(t, tt.wantRules, rules)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Fields: []FieldError{
		{Field: "question", Rule: "required", Message: "question is required"},
		{Field: "document", Rule: "required", Message: "document is required"},
	}}
	assert.Equal(t, "schema violation: question is required; document is required", err.Error())
}
