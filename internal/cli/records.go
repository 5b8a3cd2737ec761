package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"repoctl/internal/identity"
	"repoctl/internal/marc21"
	"repoctl/internal/records"
)

func newRecordsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Management commands for records",
	}
	cmd.AddCommand(
		newRecordsCountCmd(app),
		newRecordsListCmd(app),
		newRecordsUpdateCmd(app),
		newRecordsCreateCmd(app),
		newRecordsDeleteCmd(app),
		newRecordsDeleteDraftCmd(app),
		newRecordsPublishCmd(app),
		newRecordsModifyAccessCmd(app),
		newRecordsAddCategoryCmd(app),
		newIdentifiersCmd(app),
		newPidsCmd(app),
		newFilesCmd(app),
		newLomCmd(app),
	)
	return cmd
}

func addDataModelFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "data-model", "rdm", "record data model [rdm, marc21, lom]")
}

func addRecordTypeFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "record-type", "record", "[record, draft]")
}

func addPidFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "pid", "p", "", "persistent identifier of the object to operate on")
	_ = cmd.MarkFlagRequired("pid")
}

func newRecordsCountCmd(app *App) *cobra.Command {
	var dataModel, recordType string

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count the repository's records",
		RunE: func(cmd *cobra.Command, args []string) error {
			typ := records.RecordType(recordType)
			if !records.ValidRecordType(typ) {
				return fmt.Errorf("wrong record_type %q", recordType)
			}
			svc, err := app.dataModelService(dataModel)
			if err != nil {
				return err
			}

			n, err := svc.Count(cmd.Context(), identity.AnyCaller(), typ)
			if err != nil {
				return err
			}
			app.Printer().Success("%d records", n)
			return nil
		},
	}

	addDataModelFlag(cmd, &dataModel)
	addRecordTypeFlag(cmd, &recordType)
	return cmd
}

func newRecordsListCmd(app *App) *cobra.Command {
	var (
		dataModel  string
		recordType string
		outputFile string
		jqFilter   string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the repository's records",
		RunE: func(cmd *cobra.Command, args []string) error {
			typ := records.RecordType(recordType)
			if !records.ValidRecordType(typ) {
				return fmt.Errorf("wrong record_type %q", recordType)
			}
			svc, err := app.dataModelService(dataModel)
			if err != nil {
				return err
			}

			query, err := gojq.Parse(jqFilter)
			if err != nil {
				return fmt.Errorf("invalid jq filter: %w", err)
			}

			var out *os.File
			if outputFile != "" {
				out, err = os.Create(outputFile)
				if err != nil {
					return err
				}
				defer out.Close()
				if _, err := out.WriteString("["); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			total, err := svc.Count(ctx, identity.AnyCaller(), typ)
			if err != nil {
				return err
			}

			// One record at a time instead of collecting the whole table.
			index := 0
			err = svc.List(ctx, identity.AnyCaller(), typ, func(pid string, doc records.Document) error {
				defer func() { index++ }()

				output, err := applyFilter(query, map[string]any(doc))
				if err != nil {
					return err
				}
				if output == nil || output == false {
					return nil
				}

				rendered, err := json.MarshalIndent(output, "", "  ")
				if err != nil {
					return err
				}

				if out != nil {
					if _, err := out.Write(rendered); err != nil {
						return err
					}
					if index < total-1 {
						if _, err := out.WriteString(",\n"); err != nil {
							return err
						}
					}
					return nil
				}

				app.Printer().Alternate(index, string(rendered))
				return nil
			})
			if err != nil {
				return err
			}

			var summary string
			if out != nil {
				if _, err := out.WriteString("]\n"); err != nil {
					return err
				}
				summary = fmt.Sprintf("wrote %d records to %s", total, outputFile)
			} else {
				summary = fmt.Sprintf("%d records", total)
			}

			if !quiet {
				app.Printer().Success("%s", summary)
			}
			return nil
		},
	}

	addDataModelFlag(cmd, &dataModel)
	addRecordTypeFlag(cmd, &recordType)
	cmd.Flags().StringVar(&outputFile, "output-file", "", "write the listing to this file instead of stdout")
	cmd.Flags().StringVar(&jqFilter, "jq-filter", ".", "jq expression applied to every record")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress the summary line")
	return cmd
}

// applyFilter runs the jq query and returns the first result.
func applyFilter(query *gojq.Query, doc map[string]any) (any, error) {
	iter := query.Run(doc)
	v, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, isErr := v.(error); isErr {
		return nil, fmt.Errorf("jq filter: %w", err)
	}
	return v, nil
}

func newRecordsUpdateCmd(app *App) *cobra.Command {
	var dataModel string
	input := NewJSONValue()

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Replace records wholesale with the documents from the input file",
		Long: "Replace records wholesale with the documents from the input file.\n\n" +
			"The input is a JSON array of full record documents, each carrying the\n" +
			"target PID in its \"id\" member. WARNING: this command can ruin the\n" +
			"whole database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := input.List()
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
			failed := 0
			for _, record := range items {
				pid, _ := record["id"].(string)
				p.Warning("\n'%s', trying to update", pid)

				exists, err := records.ExistsRecord(ctx, svc, pid, ident)
				if err != nil {
					p.Error("'%s', problem during lookup, %v", pid, err)
					failed++
					continue
				}
				if !exists {
					p.Error("'%s', does not exist or is deleted", pid)
					failed++
					continue
				}

				oldData, err := records.GetData(ctx, svc, pid, ident)
				if err != nil {
					p.Error("'%s', problem during read, %v", pid, err)
					failed++
					continue
				}

				if err := records.UpdateRecord(ctx, svc, pid, ident, records.Document(record), oldData); err != nil {
					p.Error("'%s', problem during update, %v", pid, err)
					failed++
					continue
				}

				p.Success("'%s', successfully updated", pid)
			}
			return batchResult(failed, len(items))
		},
	}

	addDataModelFlag(cmd, &dataModel)
	cmd.Flags().Var(input, "input-file", "JSON array of full record documents")
	_ = cmd.MarkFlagRequired("input-file")
	return cmd
}

func newRecordsCreateCmd(app *App) *cobra.Command {
	var dataModel string
	input := NewJSONValue()

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create and publish records from the documents in the input file",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := input.List()
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
			failed := 0
			for _, doc := range items {
				pid, err := svc.Create(ctx, ident, records.Document(doc))
				if err != nil {
					p.Error("problem during create, %v", err)
					failed++
					continue
				}
				if err := svc.Publish(ctx, pid, ident); err != nil {
					p.Error("'%s', problem during publish, %v", pid, err)
					failed++
					continue
				}
				p.Success("record (%s) created", pid)
			}
			return batchResult(failed, len(items))
		},
	}

	addDataModelFlag(cmd, &dataModel)
	cmd.Flags().Var(input, "input-file", "JSON array of record documents")
	_ = cmd.MarkFlagRequired("input-file")
	return cmd
}

func newRecordsDeleteCmd(app *App) *cobra.Command {
	var dataModel, recordType, pid string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Soft-delete a record or discard its draft",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			switch records.RecordType(recordType) {
			case records.TypeDraft:
				err = svc.DeleteDraft(ctx, pid, ident)
				if errors.Is(err, records.ErrDraftNotFound) {
					p.Warning("'%s' does not have a draft", pid)
					return nil
				}
			case records.TypeRecord:
				err = svc.Delete(ctx, pid, ident)
			default:
				p.Error("wrong record_type")
				return batchResult(1, 1)
			}
			if err != nil {
				return err
			}

			p.Success("'%s', soft-deleted", pid)
			return nil
		},
	}

	addPidFlag(cmd, &pid)
	addRecordTypeFlag(cmd, &recordType)
	addDataModelFlag(cmd, &dataModel)
	return cmd
}

func newRecordsDeleteDraftCmd(app *App) *cobra.Command {
	var dataModel, pid string

	cmd := &cobra.Command{
		Use:   "delete-draft",
		Short: "Discard a record's open draft",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			err = svc.DeleteDraft(ctx, pid, ident)
			switch {
			case errors.Is(err, records.ErrDraftNotFound):
				exists, existsErr := records.ExistsRecord(ctx, svc, pid, ident)
				if existsErr != nil {
					return existsErr
				}
				if !exists {
					p.Error("'%s', does not exist or is deleted", pid)
					return batchResult(1, 1)
				}
				p.Warning("'%s' does not have a draft", pid)
				return nil
			case err != nil:
				return err
			}

			p.Success("'%s', draft deleted", pid)
			return nil
		},
	}

	addPidFlag(cmd, &pid)
	addDataModelFlag(cmd, &dataModel)
	return cmd
}

func newRecordsPublishCmd(app *App) *cobra.Command {
	var dataModel, recordID string
	recordIDs := NewJSONValue()

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the open drafts of the given records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := batchIDs(recordIDs, recordID)
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
			failed := 0
			for _, id := range ids {
				if err := svc.Publish(ctx, id, ident); err != nil {
					p.Error("'%s', problem during publish, %v", id, err)
					failed++
					continue
				}
				p.Success("record (%s) published", id)
			}
			return batchResult(failed, len(ids))
		},
	}

	addDataModelFlag(cmd, &dataModel)
	cmd.Flags().Var(recordIDs, "input-file", "JSON array of ids")
	cmd.Flags().StringVar(&recordID, "record-id", "", "single record id")
	return cmd
}

func newRecordsModifyAccessCmd(app *App) *cobra.Command {
	var dataModel, recordID, accessRecord, accessFile string
	recordIDs := NewJSONValue()

	cmd := &cobra.Command{
		Use:   "modify-access",
		Short: "Modify the access object within the given records",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, level := range []string{accessRecord, accessFile} {
				if level != "" && level != "public" && level != "restricted" {
					return fmt.Errorf("access level should be one of [public, restricted], got %q", level)
				}
			}

			ids, err := batchIDs(recordIDs, recordID)
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
			failed := 0
			for _, id := range ids {
				oldData, err := svc.Read(ctx, id, ident)
				if err != nil {
					p.Error("'%s', problem during read, %v", id, err)
					failed++
					continue
				}

				newData := oldData.Clone()
				if accessRecord != "" {
					newData.SetAccess("record", accessRecord)
				}
				if accessFile != "" {
					newData.SetAccess("files", accessFile)
				}

				if err := records.UpdateRecord(ctx, svc, id, ident, newData, oldData); err != nil {
					p.Error("'%s', problem during update, %v", id, err)
					failed++
					continue
				}
				p.Success("'%s', successfully updated", id)
			}
			return batchResult(failed, len(ids))
		},
	}

	addDataModelFlag(cmd, &dataModel)
	cmd.Flags().Var(recordIDs, "input-file", "JSON array of ids")
	cmd.Flags().StringVar(&recordID, "record-id", "", "single record id")
	cmd.Flags().StringVar(&accessRecord, "access-record", "", "[public, restricted]")
	cmd.Flags().StringVar(&accessFile, "access-file", "", "[public, restricted]")
	return cmd
}

func newRecordsAddCategoryCmd(app *App) *cobra.Command {
	var dataModel string
	input := NewJSONValue()

	cmd := &cobra.Command{
		Use:   "add-category",
		Short: "Merge metadata fields into records",
		Long: "Merge metadata fields into records.\n\n" +
			"The input file looks like:\n" +
			`  [{"id": "ID",` + "\n" +
			`    "metadata": {"fields": {` + "\n" +
			`      "995": [{"ind1": " ", "ind2": " ", "subfields": {"a": ["VALUE"]}}]` + "\n" +
			"    }}}]",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataModel != string(records.ModelMarc21) {
				return errors.New("Only marc21 is implemented for adding metadata to record.")
			}

			items, err := input.List()
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
			failed := 0
			for _, addition := range items {
				pid, _ := addition["id"].(string)
				p.Warning("\n'%s', trying to update", pid)

				oldData, err := records.GetData(ctx, svc, pid, ident)
				if err != nil {
					p.Error("%v", err)
					failed++
					continue
				}

				newData := oldData.Clone()
				if err := marc21.AddToRecord(newData, addition); err != nil {
					p.Error("'%s', %v", pid, err)
					failed++
					continue
				}

				if err := records.UpdateRecord(ctx, svc, pid, ident, newData, oldData); err != nil {
					p.Error("'%s', an error occured on updating the record, %v", pid, err)
					failed++
					continue
				}

				p.Success("'%s', successfully updated", pid)
			}
			return batchResult(failed, len(items))
		},
	}

	cmd.Flags().StringVar(&dataModel, "data-model", "marc21", "record data model [marc21]")
	cmd.Flags().Var(input, "input-file", "JSON array of metadata additions")
	_ = cmd.MarkFlagRequired("input-file")
	return cmd
}

// batchIDs merges the --input-file id list with a single --record-id.
func batchIDs(list *JSONValue, single string) ([]string, error) {
	if list.IsSet() {
		return list.StringList()
	}
	if single != "" {
		return []string{single}, nil
	}
	return nil, errors.New("one of --input-file or --record-id is required")
}
