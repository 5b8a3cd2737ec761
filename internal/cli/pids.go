package cli

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/spf13/cobra"

	"repoctl/internal/identity"
	"repoctl/internal/records"
)

// The pids commands operate on the record's pids mapping (scheme name to
// identifier/provider).
func newPidsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pids",
		Short: "Management commands for record pids",
	}
	cmd.AddCommand(
		newPidsListCmd(app),
		newPidsAddCmd(app),
		newPidsReplaceCmd(app),
	)
	return cmd
}

func newPidsListCmd(app *App) *cobra.Command {
	var dataModel, pid string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the record's pids",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.dataModelService(dataModel)
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

			pids := doc.PIDs()
			if len(pids) == 0 {
				p.Warning("record does not have any pids")
			}

			schemes := make([]string, 0, len(pids))
			for scheme := range pids {
				schemes = append(schemes, scheme)
			}
			slices.Sort(schemes)

			for index, scheme := range schemes {
				rendered, err := json.MarshalIndent(map[string]records.PIDInfo{scheme: pids[scheme]}, "", "  ")
				if err != nil {
					return err
				}
				p.Alternate(index, string(rendered))
			}
			return nil
		},
	}

	addPidFlag(cmd, &pid)
	addDataModelFlag(cmd, &dataModel)
	return cmd
}

// pidIdentifierFromFlag converts a --pid-identifier payload of the shape
// {"doi": {"identifier": "...", "provider": "..."}} into its single entry.
func pidIdentifierFromFlag(flag *JSONValue) (string, records.PIDInfo, error) {
	obj, err := flag.Object()
	if err != nil {
		return "", records.PIDInfo{}, err
	}
	if len(obj) != 1 {
		return "", records.PIDInfo{}, errors.New("ERROR - Invalid JSON provided.")
	}
	for scheme, raw := range obj {
		entry, ok := raw.(map[string]any)
		if !ok {
			return "", records.PIDInfo{}, errors.New("ERROR - Invalid JSON provided.")
		}
		value, _ := entry["identifier"].(string)
		provider, _ := entry["provider"].(string)
		return scheme, records.PIDInfo{Identifier: value, Provider: provider}, nil
	}
	return "", records.PIDInfo{}, errors.New("ERROR - Invalid JSON provided.")
}

func newPidsAddCmd(app *App) *cobra.Command {
	var dataModel, pid string
	pidIdentifier := NewJSONValue()

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a pid identifier to the record",
		RunE: func(cmd *cobra.Command, args []string) error {
			scheme, info, err := pidIdentifierFromFlag(pidIdentifier)
			if err != nil {
				return err
			}

			svc, err := app.dataModelService(dataModel)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ident, err := app.adminIdentity(ctx)
			if err != nil {
				return err
			}

			p := app.Printer()

			// Schemes without a configured provider cannot be minted.
			providers, configured := app.Config.PIDProviders[scheme]
			if !configured {
				p.Error("no configured provider for pid type '%s'", scheme)
				return batchResult(1, 1)
			}
			if info.Provider != "" && !slices.Contains(providers, info.Provider) {
				p.Error("provider '%s' not configured for pid type '%s'", info.Provider, scheme)
				return batchResult(1, 1)
			}

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

			if _, present := oldData.PIDs()[scheme]; present {
				p.Error("'%s' already has pid identifier '%s'", pid, scheme)
				return batchResult(1, 1)
			}

			newData := oldData.Clone()
			newData.SetPID(scheme, info)

			if err := records.UpdateRecord(ctx, svc, pid, ident, newData, oldData); err != nil {
				p.Error("'%s', problem during update, %v", pid, err)
				return batchResult(1, 1)
			}

			p.Success("'%s', successfully updated", pid)
			return nil
		},
	}

	addPidFlag(cmd, &pid)
	addDataModelFlag(cmd, &dataModel)
	cmd.Flags().Var(pidIdentifier, "pid-identifier", "pid identifier as JSON")
	_ = cmd.MarkFlagRequired("pid-identifier")
	return cmd
}

func newPidsReplaceCmd(app *App) *cobra.Command {
	var dataModel, pid string
	pidIdentifier := NewJSONValue()

	cmd := &cobra.Command{
		Use:   "replace",
		Short: "Replace one of the record's pid identifiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			scheme, info, err := pidIdentifierFromFlag(pidIdentifier)
			if err != nil {
				return err
			}

			svc, err := app.dataModelService(dataModel)
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

			if _, present := oldData.PIDs()[scheme]; !present {
				p.Warning("'%s' does not have pid identifier '%s'", pid, scheme)
				return nil
			}

			newData := oldData.Clone()
			newData.SetPID(scheme, info)

			if err := records.UpdateRecord(ctx, svc, pid, ident, newData, oldData); err != nil {
				p.Error("'%s', problem during update, %v", pid, err)
				return batchResult(1, 1)
			}

			p.Success("'%s', successfully updated", pid)
			return nil
		},
	}

	addPidFlag(cmd, &pid)
	addDataModelFlag(cmd, &dataModel)
	cmd.Flags().Var(pidIdentifier, "pid-identifier", "pid identifier as JSON")
	_ = cmd.MarkFlagRequired("pid-identifier")
	return cmd
}
