// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package sharelink

import (
	"fmt"
	"time"

	"github.com/satchel-foundation/satchel/lib/vault"
)

// Payload is the shareable slice of a configuration. Every section is
// optional; an empty payload encodes (and round-trips) fine. Runtime
// state — function execution results, connector sessions — is never
// part of a payload, only the definitions needed to reproduce the
// setup.
type Payload struct {
	// Credentials maps provider name to API credential.
	Credentials map[string]string `cbor:"credentials,omitempty" json:"credentials,omitempty"`

	// Model is the model selection and its parameters.
	Model *ModelConfig `cbor:"model,omitempty" json:"model,omitempty"`

	// Messages is the shared conversation history.
	Messages []Message `cbor:"messages,omitempty" json:"messages,omitempty"`

	// Prompts are reusable prompt templates.
	Prompts []Prompt `cbor:"prompts,omitempty" json:"prompts,omitempty"`

	// Functions carry definitions only: name, description, code.
	Functions []Function `cbor:"functions,omitempty" json:"functions,omitempty"`

	// Connectors are external service bindings.
	Connectors []Connector `cbor:"connectors,omitempty" json:"connectors,omitempty"`
}

// ModelConfig selects a model and its generation parameters.
type ModelConfig struct {
	Provider string         `cbor:"provider" json:"provider"`
	Name     string         `cbor:"name" json:"name"`
	Params   map[string]any `cbor:"params,omitempty" json:"params,omitempty"`
}

// Message is one conversation turn.
type Message struct {
	Role      string    `cbor:"role" json:"role"`
	Content   string    `cbor:"content" json:"content"`
	CreatedAt time.Time `cbor:"created_at,omitempty" json:"created_at,omitempty"`
}

// Prompt is a named prompt template.
type Prompt struct {
	Name string `cbor:"name" json:"name"`
	Body string `cbor:"body" json:"body"`
}

// Function is a user-defined function definition. Code only: results
// and runtime state stay on the machine that produced them.
type Function struct {
	Name        string `cbor:"name" json:"name"`
	Description string `cbor:"description,omitempty" json:"description,omitempty"`
	Code        string `cbor:"code" json:"code"`
}

// Connector binds an external service.
type Connector struct {
	Name     string            `cbor:"name" json:"name"`
	Kind     string            `cbor:"kind" json:"kind"`
	Settings map[string]string `cbor:"settings,omitempty" json:"settings,omitempty"`
}

// Empty reports whether the payload carries no sections at all.
func (p *Payload) Empty() bool {
	return len(p.Credentials) == 0 &&
		p.Model == nil &&
		len(p.Messages) == 0 &&
		len(p.Prompts) == 0 &&
		len(p.Functions) == 0 &&
		len(p.Connectors) == 0
}

// Import decomposes a decoded payload into individual entries of the
// target namespace, through its encrypting store. Existing entries
// with the same keys are overwritten; sections absent from the
// payload are left untouched (no partial wipe).
func Import(target *vault.Vault, payload *Payload) error {
	for provider, credential := range payload.Credentials {
		if err := target.Set("credentials/"+provider, []byte(credential)); err != nil {
			return fmt.Errorf("sharelink: importing credential %s: %w", provider, err)
		}
	}
	if payload.Model != nil {
		if err := target.SetRecord("model", payload.Model); err != nil {
			return fmt.Errorf("sharelink: importing model config: %w", err)
		}
	}
	if len(payload.Messages) > 0 {
		if err := target.SetRecord("history", payload.Messages); err != nil {
			return fmt.Errorf("sharelink: importing history: %w", err)
		}
	}
	for _, prompt := range payload.Prompts {
		if err := target.SetRecord("prompts/"+prompt.Name, prompt); err != nil {
			return fmt.Errorf("sharelink: importing prompt %s: %w", prompt.Name, err)
		}
	}
	for _, function := range payload.Functions {
		if err := target.SetRecord("functions/"+function.Name, function); err != nil {
			return fmt.Errorf("sharelink: importing function %s: %w", function.Name, err)
		}
	}
	for _, connector := range payload.Connectors {
		if err := target.SetRecord("connectors/"+connector.Name, connector); err != nil {
			return fmt.Errorf("sharelink: importing connector %s: %w", connector.Name, err)
		}
	}
	return nil
}
