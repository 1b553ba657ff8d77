package resolve

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agenthands/relate/internal/core/common"
	"github.com/agenthands/relate/internal/core/model"
	"github.com/agenthands/relate/internal/llm"
)

// LLMArbiter resolves record conflicts by asking a language model for a
// complete merged record. It is an optional enhancement: any failure here is
// absorbed by the resolver's fail-closed fallback.
type LLMArbiter struct {
	LLM llm.LLMClient
}

func NewLLMArbiter(client llm.LLMClient) *LLMArbiter {
	return &LLMArbiter{LLM: client}
}

func (a *LLMArbiter) Resolve(ctx context.Context, x, y *model.Contact) (*model.Contact, error) {
	xJSON, err := json.Marshal(x)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize survivor: %w", err)
	}
	yJSON, err := json.Marshal(y)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize loser: %w", err)
	}

	prompt := fmt.Sprintf(`<SURVIVOR>
%s
</SURVIVOR>

<DUPLICATE>
%s
</DUPLICATE>

Instructions:
The two contact records above describe the same person. Merge them into a single record.
For each field, pick the value most likely to be correct and current. Do not invent values.
Keep the SURVIVOR's "id" and "tenant_id" unchanged.
Return ONLY a JSON object with the same shape as the input records.

Example JSON:
{"id": "c-1", "tenant_id": "t-1", "email": "jane@acme.com", "name": "Jane Doe", "phone": "+1 555 0100", "company": "Acme"}
`, xJSON, yJSON)

	response, err := a.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate merged record: %w", err)
	}

	merged, err := common.ParseJSON[model.Contact](response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse merged record: %w", err)
	}

	return &merged, nil
}
