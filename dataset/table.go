// Package dataset loads bioactivity tables, filters them and turns them into
// prepared QSAR datasets with standardized structures, a train/test split,
// fingerprint features and scaffold labels.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/pkg/log"
)

// Required input columns.
const (
	ColumnAccession = "accession"
	ColumnQuality   = "Quality"
	ColumnSMILES    = "SMILES"
)

// idColumns are tried in order to identify a record; the row number is used
// when none is present.
var idColumns = []string{"ID", "QSPRID", "InChIKey"}

// Record is one compound-protein measurement. Records are never mutated after
// loading; filtering produces new tables that share them.
type Record struct {
	ID        string
	SMILES    string
	Accession string
	Quality   string
	Value     float64
}

// Table is an ordered collection of records for one target property.
type Table struct {
	Property string
	Records  []Record
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.Records) }

// Values returns the property values in record order.
func (t *Table) Values() []float64 {
	out := make([]float64, len(t.Records))
	for i, r := range t.Records {
		out[i] = r.Value
	}
	return out
}

// LoadTable reads a tab-separated bioactivity file.
func LoadTable(path, property string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataError("load table", "", 0, errors.Wrapf(err, "open %s", path))
	}
	defer f.Close()
	return ReadTable(f, property)
}

// ReadTable parses a tab-separated table with at least the accession, Quality,
// SMILES and property columns. Rows whose property value is missing or not a
// number are skipped with a warning.
func ReadTable(r io.Reader, property string) (*Table, error) {
	if property == "" {
		return nil, errors.NewConfigError("target.property", "must not be empty", property)
	}
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewDataError("read table", "", 0, errors.ErrEmptyData)
	}
	if err != nil {
		return nil, errors.NewDataError("read table", "", 0, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	index := func(name string) int { return slices.Index(header, name) }

	cols := map[string]int{}
	for _, name := range []string{ColumnAccession, ColumnQuality, ColumnSMILES, property} {
		i := index(name)
		if i < 0 {
			return nil, errors.NewDataError("read table", name, 0, errors.ErrMissingColumn)
		}
		cols[name] = i
	}
	idCol := -1
	for _, name := range idColumns {
		if i := index(name); i >= 0 {
			idCol = i
			break
		}
	}

	logger := log.GetLogger().With(log.ComponentKey, "dataset")
	t := &Table{Property: property}
	skipped := 0
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewDataError("read table", "", row, err)
		}
		field := func(i int) string {
			if i < 0 || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		raw := field(cols[property])
		v, perr := strconv.ParseFloat(raw, 64)
		if raw == "" || perr != nil {
			skipped++
			logger.Debug("Skipping row without numeric property",
				"row", row, log.PropertyKey, property, "value", raw)
			continue
		}
		id := field(idCol)
		if id == "" {
			id = fmt.Sprintf("row%d", row)
		}
		t.Records = append(t.Records, Record{
			ID:        id,
			SMILES:    field(cols[ColumnSMILES]),
			Accession: field(cols[ColumnAccession]),
			Quality:   field(cols[ColumnQuality]),
			Value:     v,
		})
	}
	if skipped > 0 {
		errors.Warn(errors.NewDataError("read table", property, 0,
			errors.Newf("%d rows without a numeric value skipped", skipped)))
	}
	logger.Info("Table loaded",
		log.SamplesKey, len(t.Records),
		log.DroppedKey, skipped,
		log.PropertyKey, property,
	)
	return t, nil
}

// WriteTable writes records in the input format so that a filtered table can
// be reloaded with ReadTable.
func WriteTable(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write([]string{"ID", ColumnSMILES, ColumnAccession, ColumnQuality, t.Property}); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, r := range t.Records {
		row := []string{r.ID, r.SMILES, r.Accession, r.Quality, strconv.FormatFloat(r.Value, 'g', -1, 64)}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush table")
}

// Filter returns the records matching the accession and one of the allowed
// quality tiers. The input table is not modified. An empty qualities list
// keeps every tier. Filtering is idempotent.
func Filter(t *Table, accession string, qualities []string) *Table {
	allowed := make(map[string]bool, len(qualities))
	for _, q := range qualities {
		allowed[q] = true
	}
	out := &Table{Property: t.Property}
	for _, r := range t.Records {
		if r.Accession != accession {
			continue
		}
		if len(allowed) > 0 && !allowed[r.Quality] {
			continue
		}
		out.Records = append(out.Records, r)
	}
	log.GetLogger().Info("Table filtered",
		log.OperationKey, log.OperationFilter,
		log.AccessionKey, accession,
		"qualities", qualities,
		log.SamplesKey, len(out.Records),
		log.DroppedKey, len(t.Records)-len(out.Records),
	)
	return out
}
