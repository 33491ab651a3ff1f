package dataset

import (
	"encoding/csv"
	"encoding/gob"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/qsarkit/chem"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/pkg/log"
)

// Meta is the JSON description stored next to a persisted dataset.
type Meta struct {
	Name          string    `json:"name"`
	Property      string    `json:"target_property"`
	Task          string    `json:"task"`
	Records       int       `json:"n_records"`
	Dropped       int       `json:"n_dropped"`
	TestSize      int       `json:"n_test"`
	Radius        int       `json:"fingerprint_radius"`
	NBits         int       `json:"fingerprint_nbits"`
	KeepFrags     bool      `json:"keep_all_fragments"`
	KeepCharges   bool      `json:"keep_charges"`
	Holdout       float64   `json:"holdout_fraction"`
	Seed          uint64    `json:"split_seed"`
	SavedAt       time.Time `json:"saved_at"`
	FormatVersion int       `json:"format_version"`
}

const formatVersion = 1

var dfHeader = []string{"ID", ColumnSMILES, ColumnAccession, ColumnQuality, "value", "SMILES_std", "Scaffold", "Split"}

// Paths returns the artifact file paths of dataset name under dir.
func Paths(dir, name string) (meta, table, features string) {
	base := filepath.Join(dir, name)
	return filepath.Join(base, name+"_meta.json"),
		filepath.Join(base, name+"_df.tsv"),
		filepath.Join(base, name+"_features.gob")
}

// Save writes the prepared dataset to <dir>/<name>/.
func (d *Dataset) Save(dir string) error {
	if !d.Prepared {
		return errors.NewStateError("dataset "+d.Name, "unprepared", "save")
	}
	metaPath, tablePath, featPath := Paths(dir, d.Name)
	if err := os.MkdirAll(filepath.Dir(metaPath), 0o755); err != nil {
		return errors.NewArtifactError("dataset", d.Name, filepath.Dir(metaPath), err)
	}

	meta := Meta{
		Name:          d.Name,
		Property:      d.Property,
		Task:          d.Task,
		Records:       d.Len(),
		Dropped:       len(d.Dropped),
		TestSize:      len(d.TestIndices()),
		Radius:        d.Fingerprint.Radius,
		NBits:         d.Fingerprint.NBits,
		KeepFrags:     d.Standardizer.KeepAllFragments,
		KeepCharges:   d.Standardizer.KeepCharges,
		Holdout:       d.Splitter.TestFraction,
		Seed:          d.Splitter.Seed,
		SavedAt:       time.Now().UTC(),
		FormatVersion: formatVersion,
	}
	if err := writeJSON(metaPath, meta); err != nil {
		return errors.NewArtifactError("dataset", d.Name, metaPath, err)
	}
	if err := writeFile(tablePath, d.writeRows); err != nil {
		return errors.NewArtifactError("dataset", d.Name, tablePath, err)
	}
	if err := writeFile(featPath, d.writeFeatures); err != nil {
		return errors.NewArtifactError("dataset", d.Name, featPath, err)
	}
	log.GetLogger().Info("Dataset saved",
		log.DatasetKey, d.Name,
		log.OperationKey, log.OperationSave,
		log.PathKey, filepath.Dir(metaPath),
		log.SamplesKey, d.Len(),
	)
	return nil
}

func writeJSON(path string, v interface{}) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// writeFile writes through a temporary file and renames it into place.
func writeFile(path string, fn func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := fn(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (d *Dataset) writeRows(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	header := append([]string(nil), dfHeader...)
	header[4] = d.Property
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, r := range d.Records {
		row := []string{
			r.ID, r.SMILES, r.Accession, r.Quality,
			strconv.FormatFloat(r.Value, 'g', -1, 64),
			d.Standardized[i], d.Scaffolds[i], d.Splits[i].String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type featureBlob struct {
	Names  []string
	Matrix []byte // mat.Dense binary encoding, empty for an empty dataset
}

func (d *Dataset) writeFeatures(w io.Writer) error {
	blob := featureBlob{Names: d.FeatureNames}
	if d.X != nil {
		b, err := d.X.MarshalBinary()
		if err != nil {
			return err
		}
		blob.Matrix = b
	}
	return gob.NewEncoder(w).Encode(blob)
}

// Load reads a dataset saved by Save.
func Load(dir, name string) (*Dataset, error) {
	metaPath, tablePath, featPath := Paths(dir, name)
	fail := func(path string, err error) (*Dataset, error) {
		if errors.Is(err, fs.ErrNotExist) {
			err = errors.Wrap(errors.ErrArtifactNotFound, err.Error())
		}
		return nil, errors.NewArtifactError("dataset", name, path, err)
	}

	var meta Meta
	if err := readJSON(metaPath, &meta); err != nil {
		return fail(metaPath, err)
	}
	if meta.FormatVersion != formatVersion {
		return fail(metaPath, errors.Newf("unsupported format version %d", meta.FormatVersion))
	}

	d := &Dataset{
		Name:         meta.Name,
		Property:     meta.Property,
		Task:         meta.Task,
		Fingerprint:  chem.NewMorganFingerprint(meta.Radius, meta.NBits),
		Standardizer: chem.Standardizer{KeepAllFragments: meta.KeepFrags, KeepCharges: meta.KeepCharges},
		Splitter:     RandomSplit{TestFraction: meta.Holdout, Seed: meta.Seed},
		Prepared:     true,
	}
	f, err := os.Open(tablePath)
	if err != nil {
		return fail(tablePath, err)
	}
	err = d.readRows(f)
	f.Close()
	if err != nil {
		return fail(tablePath, err)
	}
	if d.Len() != meta.Records {
		return fail(tablePath, errors.Newf("expected %d records, found %d", meta.Records, d.Len()))
	}

	f, err = os.Open(featPath)
	if err != nil {
		return fail(featPath, err)
	}
	err = d.readFeatures(f)
	f.Close()
	if err != nil {
		return fail(featPath, err)
	}
	log.GetLogger().Info("Dataset loaded",
		log.DatasetKey, name,
		log.OperationKey, log.OperationLoad,
		log.SamplesKey, d.Len(),
	)
	return d, nil
}

func readJSON(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (d *Dataset) readRows(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = len(dfHeader)
	if _, err := cr.Read(); err != nil {
		return errors.Wrap(err, "read header")
	}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return errors.Wrapf(err, "record %s", row[0])
		}
		split, err := ParseSplit(row[7])
		if err != nil {
			return err
		}
		d.Records = append(d.Records, Record{ID: row[0], SMILES: row[1], Accession: row[2], Quality: row[3], Value: v})
		d.Standardized = append(d.Standardized, row[5])
		d.Scaffolds = append(d.Scaffolds, row[6])
		d.Splits = append(d.Splits, split)
	}
}

func (d *Dataset) readFeatures(r io.Reader) error {
	var blob featureBlob
	if err := gob.NewDecoder(r).Decode(&blob); err != nil {
		return errors.Wrap(err, "decode features")
	}
	d.FeatureNames = blob.Names
	if len(blob.Matrix) == 0 {
		if d.Len() != 0 {
			return errors.New("feature matrix missing")
		}
		return nil
	}
	var X mat.Dense
	if err := X.UnmarshalBinary(blob.Matrix); err != nil {
		return errors.Wrap(err, "decode feature matrix")
	}
	if rows, cols := X.Dims(); rows != d.Len() || cols != d.Fingerprint.NBits {
		return errors.Newf("feature matrix is %dx%d, want %dx%d", rows, cols, d.Len(), d.Fingerprint.NBits)
	}
	d.X = &X
	return nil
}
