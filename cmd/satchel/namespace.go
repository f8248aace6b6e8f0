// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

func (a *app) runNamespace(arguments []string) error {
	if len(arguments) == 0 {
		return fmt.Errorf("namespace: a subcommand is required (list, create, switch, delete)")
	}

	switch arguments[0] {
	case "list":
		return a.namespaceList()
	case "create":
		return a.namespaceCreate(arguments[1:])
	case "switch":
		if len(arguments) != 2 {
			return fmt.Errorf("namespace switch: exactly one namespace id is required")
		}
		return a.namespaceSwitch(arguments[1])
	case "delete":
		if len(arguments) != 2 {
			return fmt.Errorf("namespace delete: exactly one namespace id is required")
		}
		return a.registry.Delete(arguments[1])
	default:
		return fmt.Errorf("namespace: unknown subcommand %q", arguments[0])
	}
}

func (a *app) namespaceList() error {
	descriptors, err := a.registry.List()
	if err != nil {
		return err
	}
	current := a.registry.Current()

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, " \tID\tLABEL\tKIND\tCREATED")
	for _, descriptor := range descriptors {
		marker := " "
		if current != nil && descriptor.ID == current.ID() {
			marker = "*"
		}
		created := "-"
		if !descriptor.CreatedAt.IsZero() {
			created = descriptor.CreatedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			marker, descriptor.ID, descriptor.Label, descriptor.Kind, created)
	}
	return writer.Flush()
}

func (a *app) namespaceCreate(arguments []string) error {
	var label string
	flagSet := pflag.NewFlagSet("namespace create", pflag.ContinueOnError)
	flagSet.StringVar(&label, "label", "", "display name for the namespace")
	if err := flagSet.Parse(arguments); err != nil {
		return err
	}

	positional := flagSet.Args()
	if len(positional) < 1 || len(positional) > 2 {
		return fmt.Errorf("namespace create: TITLE [SUBTITLE] required")
	}
	title := positional[0]
	subtitle := ""
	if len(positional) == 2 {
		subtitle = positional[1]
	}

	descriptor, err := a.registry.Create(title, subtitle, label)
	if err != nil {
		return err
	}
	fmt.Println(descriptor.ID)
	return nil
}

func (a *app) namespaceSwitch(id string) error {
	session, err := a.registry.SwitchTo(id)
	if err != nil {
		return err
	}
	fmt.Printf("active namespace: %s (%s)\n", session.ID(), session.Descriptor().Label)
	return nil
}
