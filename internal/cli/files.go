package cli

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"repoctl/internal/records"
)

// The files commands manage a record's binary attachments. The filename is
// derived from the input path; payloads go to object storage.
func newFilesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Management commands for record files",
	}
	cmd.AddCommand(
		newFilesAddCmd(app),
		newFilesReplaceCmd(app),
		newFilesDeleteCmd(app),
	)
	return cmd
}

func newFilesAddCmd(app *App) *cobra.Command {
	var dataModel, pid, inputFile string
	var enableFiles bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new file to a published record",
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

			doc, err := records.GetData(ctx, svc, pid, ident)
			if err != nil {
				p.Error("%v", err)
				return batchResult(1, 1)
			}

			filename := filepath.Base(inputFile)

			if doc.FilesEnabled() {
				files, err := svc.Files(ctx, pid, ident)
				if err != nil {
					return err
				}
				for _, f := range files {
					if f.Filename == filename {
						p.Neutral("File already exists if you want to replace use argument replace-file")
						return nil
					}
				}
			}

			if !doc.FilesEnabled() && !enableFiles {
				p.Error("Use --enable-files to add files to (metadata-only) record")
				return batchResult(1, 1)
			}

			file, err := os.Open(inputFile)
			if err != nil {
				return err
			}
			defer file.Close()

			if err := svc.AddFile(ctx, pid, ident, filename, file, enableFiles); err != nil {
				return err
			}

			p.Success("File added successfully.")
			return nil
		},
	}

	addPidFlag(cmd, &pid)
	addDataModelFlag(cmd, &dataModel)
	cmd.Flags().StringVar(&inputFile, "input-file", "", "file to attach")
	_ = cmd.MarkFlagRequired("input-file")
	cmd.Flags().BoolVar(&enableFiles, "enable-files", false, "enable files on a metadata-only record")
	return cmd
}

func newFilesReplaceCmd(app *App) *cobra.Command {
	var dataModel, pid, inputFile string
	var overrideNameMatchCheck bool

	cmd := &cobra.Command{
		Use:   "replace",
		Short: "Replace one of the record's files",
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

			if _, err := records.GetData(ctx, svc, pid, ident); err != nil {
				p.Error("%v", err)
				return batchResult(1, 1)
			}

			files, err := svc.Files(ctx, pid, ident)
			if err != nil {
				return err
			}

			filename := filepath.Base(inputFile)
			matched := false
			for _, f := range files {
				if f.Filename == filename {
					matched = true
					break
				}
			}
			if !matched {
				// Single-file records can be replaced without a name match
				// when explicitly requested.
				switch {
				case overrideNameMatchCheck && len(files) == 1:
					filename = files[0].Filename
				case len(files) > 1:
					p.Error("There is more than 1 file and no matching found, specify filename.")
					return batchResult(1, 1)
				default:
					p.Error("There is only one file but the filename does not match, " +
						"maybe use parameter --override-name-match-check.")
					return batchResult(1, 1)
				}
			}

			file, err := os.Open(inputFile)
			if err != nil {
				return err
			}
			defer file.Close()

			if err := svc.DeleteFile(ctx, pid, ident, filename); err != nil {
				return err
			}
			if err := svc.AddFile(ctx, pid, ident, filename, file, false); err != nil {
				return err
			}

			p.Success("File replaced successfully.")
			return nil
		},
	}

	addPidFlag(cmd, &pid)
	addDataModelFlag(cmd, &dataModel)
	cmd.Flags().StringVar(&inputFile, "input-file", "", "replacement file")
	_ = cmd.MarkFlagRequired("input-file")
	cmd.Flags().BoolVar(&overrideNameMatchCheck, "override-name-match-check", false,
		"replace the single existing file even when names differ")
	return cmd
}

func newFilesDeleteCmd(app *App) *cobra.Command {
	var dataModel, pid, filename string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete one of the record's files",
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

			if _, err := records.GetData(ctx, svc, pid, ident); err != nil {
				p.Error("%v", err)
				return batchResult(1, 1)
			}

			err = svc.DeleteFile(ctx, pid, ident, filename)
			if errors.Is(err, records.ErrFileNotFound) {
				p.Error("File with filename: %s not found. Check filename or PID", filename)
				return batchResult(1, 1)
			}
			if err != nil {
				return err
			}

			p.Success("File deleted successfully")
			return nil
		},
	}

	addPidFlag(cmd, &pid)
	addDataModelFlag(cmd, &dataModel)
	cmd.Flags().StringVar(&filename, "filename", "", "name of the file to delete")
	_ = cmd.MarkFlagRequired("filename")
	return cmd
}
