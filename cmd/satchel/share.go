// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/satchel-foundation/satchel/lib/config"
	"github.com/satchel-foundation/satchel/lib/derive"
	"github.com/satchel-foundation/satchel/lib/namespace"
	"github.com/satchel-foundation/satchel/lib/secret"
	"github.com/satchel-foundation/satchel/lib/sharelink"
)

func (a *app) runShare(arguments []string) error {
	if len(arguments) == 0 {
		return fmt.Errorf("share: a subcommand is required (encode, decode, import)")
	}

	switch arguments[0] {
	case "encode":
		return a.shareEncode(arguments[1:])
	case "decode":
		return a.shareDecode(arguments[1:])
	case "import":
		return a.shareImport(arguments[1:])
	default:
		return fmt.Errorf("share: unknown subcommand %q", arguments[0])
	}
}

func (a *app) shareEncode(arguments []string) error {
	var payloadPath string
	flagSet := pflag.NewFlagSet("share encode", pflag.ContinueOnError)
	flagSet.StringVar(&payloadPath, "payload", "", "JSONC file describing the payload")
	if err := flagSet.Parse(arguments); err != nil {
		return err
	}
	if payloadPath == "" {
		return fmt.Errorf("share encode: --payload is required")
	}

	raw, err := config.LoadPayloadFile(payloadPath)
	if err != nil {
		return err
	}
	var payload sharelink.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("share encode: parsing %s: %w", payloadPath, err)
	}
	if payload.Empty() {
		return fmt.Errorf("share encode: %s describes an empty payload", payloadPath)
	}

	password, err := promptPassword("Share password: ", true)
	if err != nil {
		return err
	}
	defer secret.Zero(password)

	fragment, err := sharelink.Encode(&payload, password)
	if err != nil {
		return err
	}
	fmt.Printf("#%s\n", fragment)
	return nil
}

func (a *app) shareDecode(arguments []string) error {
	if len(arguments) != 1 {
		return fmt.Errorf("share decode: exactly one fragment is required")
	}

	decoded, err := a.decodeWithRetry(arguments[0])
	if err != nil {
		return err
	}
	defer decoded.Close()

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(decoded.Payload)
}

func (a *app) shareImport(arguments []string) error {
	var chosenNamespace string
	flagSet := pflag.NewFlagSet("share import", pflag.ContinueOnError)
	flagSet.StringVar(&chosenNamespace, "namespace", "", "namespace id to import into when the link is ambiguous")
	if err := flagSet.Parse(arguments); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("share import: exactly one fragment is required")
	}

	decoded, err := a.decodeWithRetry(flagSet.Arg(0))
	if err != nil {
		return err
	}
	defer decoded.Close()

	candidate, err := pickCandidate(decoded, chosenNamespace)
	if err != nil {
		return err
	}

	derived := &derive.Derived{NamespaceID: candidate.NamespaceID, Key: candidate.Key}
	descriptor, err := a.registry.AdoptShared(derived, decoded.Salt, "")
	if err != nil {
		return err
	}

	// Shared sessions need cross-process visibility, so the durable
	// medium becomes active for the remainder of the session.
	if err := a.registry.SwitchMedium(namespace.MediumDurable); err != nil {
		return err
	}
	session, err := a.registry.SwitchTo(descriptor.ID)
	if err != nil {
		return err
	}
	if err := sharelink.Import(session.Vault(), decoded.Payload); err != nil {
		return err
	}

	fmt.Printf("imported into namespace %s (%s)\n", descriptor.ID, descriptor.Label)
	return nil
}

// decodeWithRetry decodes a fragment, re-prompting on a wrong
// password. Cached session keys are tried alongside, so re-opening a
// link already adopted this session needs no password at all.
func (a *app) decodeWithRetry(fragment string) (*sharelink.Decoded, error) {
	decoded, err := sharelink.Decode(fragment, nil, a.registry)
	if err == nil {
		return decoded, nil
	}
	if !errors.Is(err, sharelink.ErrBadPassword) {
		return nil, err
	}

	for {
		password, err := promptPassword("Link password: ", false)
		if err != nil {
			return nil, err
		}
		decoded, err = sharelink.Decode(fragment, password, a.registry)
		secret.Zero(password)
		if err == nil {
			return decoded, nil
		}
		if !errors.Is(err, sharelink.ErrBadPassword) {
			return nil, err
		}
		fmt.Fprintln(os.Stderr, "wrong password, try again")
	}
}

// pickCandidate resolves disambiguation: a single match is taken, an
// ambiguous link requires --namespace.
func pickCandidate(decoded *sharelink.Decoded, chosenNamespace string) (sharelink.Candidate, error) {
	if chosenNamespace != "" {
		for _, candidate := range decoded.Candidates {
			if candidate.NamespaceID == chosenNamespace {
				return candidate, nil
			}
		}
		return sharelink.Candidate{}, fmt.Errorf("namespace %s does not match this link", chosenNamespace)
	}

	candidate, err := decoded.Single()
	if err == nil {
		return candidate, nil
	}

	fmt.Fprintln(os.Stderr, "this link matches more than one namespace:")
	for _, ambiguous := range decoded.Candidates {
		fmt.Fprintf(os.Stderr, "  %s\n", ambiguous.NamespaceID)
	}
	return sharelink.Candidate{}, fmt.Errorf("rerun with --namespace ID to choose")
}
