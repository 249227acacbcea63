package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
)

// MsgMalformedTrigger is the result body for payloads that are not a trigger object
const MsgMalformedTrigger = "The incrementals-publisher invocation was poorly formed and missing attributes"

// DecodeTrigger validates a raw trigger payload and extracts the build URL.
// An empty payload decodes to an empty trigger so the pipeline reports the missing attribute.
func (v *Validator) DecodeTrigger(data []byte) (entities.Trigger, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return entities.Trigger{}, nil
	}
	if err := v.Validate(Trigger, data); err != nil {
		return entities.Trigger{}, err
	}

	var trigger entities.Trigger
	if err := json.Unmarshal(data, &trigger); err != nil {
		return entities.Trigger{}, fmt.Errorf("decode trigger: %w", err)
	}
	return trigger, nil
}
