package cli

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"repoctl/internal/identity"
	"repoctl/internal/records"
)

// The identifiers commands operate on metadata.identifiers of rdm records;
// scheme is unique per record.
func newIdentifiersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identifiers",
		Short: "Management commands for record identifiers",
	}
	cmd.AddCommand(
		newIdentifiersListCmd(app),
		newIdentifiersAddCmd(app),
		newIdentifiersReplaceCmd(app),
	)
	return cmd
}

func newIdentifiersListCmd(app *App) *cobra.Command {
	var pid string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the record's identifiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.dataModelService("rdm")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ident := identity.AnyCaller()

			p := app.Printer()

			exists, err := records.ExistsRecord(ctx, svc, pid, ident)
			if err != nil {
				return err
			}
			if !exists {
				p.Error("'%s', does not exist or is deleted", pid)
				return batchResult(1, 1)
			}

			doc, err := svc.Read(ctx, pid, ident)
			if err != nil {
				return err
			}

			identifiers := doc.Identifiers()
			if len(identifiers) == 0 {
				p.Warning("record does not have any identifiers")
			}
			for index, identifier := range identifiers {
				rendered, err := json.MarshalIndent(identifier, "", "  ")
				if err != nil {
					return err
				}
				p.Alternate(index, string(rendered))
			}
			return nil
		},
	}

	addPidFlag(cmd, &pid)
	return cmd
}

// identifierFromFlag converts a validated --identifier payload.
func identifierFromFlag(flag *JSONValue) (records.Identifier, error) {
	obj, err := flag.Object()
	if err != nil {
		return records.Identifier{}, err
	}
	value, ok := obj["identifier"].(string)
	if !ok {
		return records.Identifier{}, errors.New("ERROR - Invalid JSON provided.")
	}
	scheme, ok := obj["scheme"].(string)
	if !ok {
		return records.Identifier{}, errors.New("ERROR - Invalid JSON provided.")
	}
	return records.Identifier{Identifier: value, Scheme: scheme}, nil
}

func newIdentifiersAddCmd(app *App) *cobra.Command {
	var pid string
	identifierFlag := NewJSONValue("identifier", "scheme")

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an identifier to the record",
		RunE: func(cmd *cobra.Command, args []string) error {
			identifier, err := identifierFromFlag(identifierFlag)
			if err != nil {
				return err
			}

			svc, err := app.dataModelService("rdm")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ident, err := app.adminIdentity(ctx)
			if err != nil {
				return err
			}

			p := app.Printer()

			exists, err := records.ExistsRecord(ctx, svc, pid, ident)
			if err != nil {
				return err
			}
			if !exists {
				p.Error("'%s', does not exist or is deleted", pid)
				return batchResult(1, 1)
			}

			oldData, err := svc.Read(ctx, pid, ident)
			if err != nil {
				return err
			}

			current := oldData.Identifiers()
			for _, existing := range current {
				if existing.Scheme == identifier.Scheme {
					p.Error("scheme '%s' already in identifiers", identifier.Scheme)
					return batchResult(1, 1)
				}
			}

			newData := oldData.Clone()
			newData.SetIdentifiers(append(current, identifier))

			if err := records.UpdateRecord(ctx, svc, pid, ident, newData, oldData); err != nil {
				p.Error("'%s', Error during update, %v", pid, err)
				return batchResult(1, 1)
			}

			p.Success("Identifier for '%s' added.", pid)
			return nil
		},
	}

	addPidFlag(cmd, &pid)
	cmd.Flags().VarP(identifierFlag, "identifier", "i", "metadata identifier as JSON")
	_ = cmd.MarkFlagRequired("identifier")
	return cmd
}

func newIdentifiersReplaceCmd(app *App) *cobra.Command {
	var pid string
	identifierFlag := NewJSONValue("identifier", "scheme")

	cmd := &cobra.Command{
		Use:   "replace",
		Short: "Replace one of the record's identifiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			identifier, err := identifierFromFlag(identifierFlag)
			if err != nil {
				return err
			}

			svc, err := app.dataModelService("rdm")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ident, err := app.adminIdentity(ctx)
			if err != nil {
				return err
			}

			p := app.Printer()

			exists, err := records.ExistsRecord(ctx, svc, pid, ident)
			if err != nil {
				return err
			}
			if !exists {
				p.Error("'%s', does not exist or is deleted", pid)
				return batchResult(1, 1)
			}

			oldData, err := svc.Read(ctx, pid, ident)
			if err != nil {
				return err
			}

			current := oldData.Identifiers()
			replaced := false
			for index, existing := range current {
				if existing.Scheme == identifier.Scheme {
					current[index] = identifier
					replaced = true
					break
				}
			}
			if !replaced {
				p.Error("scheme '%s' not in identifiers", identifier.Scheme)
				return batchResult(1, 1)
			}

			newData := oldData.Clone()
			newData.SetIdentifiers(current)

			if err := records.UpdateRecord(ctx, svc, pid, ident, newData, oldData); err != nil {
				p.Error("'%s', problem during update, %v", pid, err)
				return batchResult(1, 1)
			}

			p.Success("Identifier for '%s' replaced.", pid)
			return nil
		},
	}

	addPidFlag(cmd, &pid)
	cmd.Flags().VarP(identifierFlag, "identifier", "i", "metadata identifier as JSON")
	_ = cmd.MarkFlagRequired("identifier")
	return cmd
}
