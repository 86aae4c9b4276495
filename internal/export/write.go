package export

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// WorkbookName is the XLSX file holding every sheet.
const WorkbookName = "artifacts.xlsx"

// Options controls which outputs are written.
type Options struct {
	XLSX bool
}

// Write creates dir and writes one CSV per sheet, plus the workbook when
// requested. It returns the paths written.
func Write(dir string, sheets []Sheet, opts Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create %s", dir)
	}

	var paths []string
	for _, s := range sheets {
		path := filepath.Join(dir, s.Name+".csv")
		if err := WriteCSV(path, s); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	if opts.XLSX {
		path := filepath.Join(dir, WorkbookName)
		if err := WriteXLSX(path, sheets); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	zap.L().Info("export: artifacts written", zap.String("dir", dir), zap.Int("files", len(paths)))
	return paths, nil
}

// WriteCSV writes one sheet as a CSV file with a header row.
func WriteCSV(path string, s Sheet) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(s.Header); err != nil {
		return eris.Wrapf(err, "export: write header %s", s.Name)
	}
	if err := w.WriteAll(s.Rows); err != nil {
		return eris.Wrapf(err, "export: write rows %s", s.Name)
	}
	return eris.Wrapf(f.Sync(), "export: sync %s", path)
}

// WriteXLSX writes every sheet into one workbook.
func WriteXLSX(path string, sheets []Sheet) error {
	f := xlsx.NewFile()
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.Name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", s.Name)
		}
		addRow(sheet, s.Header)
		for _, r := range s.Rows {
			addRow(sheet, r)
		}
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
