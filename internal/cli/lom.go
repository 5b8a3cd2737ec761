package cli

import (
	"github.com/spf13/cobra"

	"repoctl/internal/lom"
	"repoctl/internal/records"
)

// newLomCmd builds one subcommand per entry of the lom operation table. Each
// subcommand reads the record, applies the mutator and writes the result
// through the update protocol.
func newLomCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lom",
		Short: "Metadata commands for lom records",
	}
	for _, op := range lom.Operations {
		cmd.AddCommand(newLomOperationCmd(app, op))
	}
	return cmd
}

func newLomOperationCmd(app *App, op lom.Operation) *cobra.Command {
	var pid string
	values := make(map[string]*string, len(op.Params))

	cmd := &cobra.Command{
		Use:   op.Name,
		Short: op.Help,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.dataModelService(string(records.ModelLOM))
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

			oldData, err := records.GetData(ctx, svc, pid, ident)
			if err != nil {
				return err
			}

			newData := oldData.Clone()
			meta, _ := newData["metadata"].(map[string]any)
			metadata := lom.New(meta)

			opArgs := make(map[string]string, len(values))
			for name, value := range values {
				opArgs[name] = *value
			}
			if err := op.Apply(metadata, opArgs); err != nil {
				return err
			}
			newData["metadata"] = metadata.JSON()

			if err := records.UpdateRecord(ctx, svc, pid, ident, newData, oldData); err != nil {
				p.Error("'%s', problem during update, %v", pid, err)
				return batchResult(1, 1)
			}

			p.Success("JSON for pid \"%s\" successfully updated.", pid)
			return nil
		},
	}

	addPidFlag(cmd, &pid)
	for _, param := range op.Params {
		target := new(string)
		values[param.Name] = target
		cmd.Flags().StringVar(target, param.Name, param.Default, param.Help)
		if param.Required {
			_ = cmd.MarkFlagRequired(param.Name)
		}
	}
	return cmd
}
