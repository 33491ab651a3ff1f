package qsar

import (
	"encoding/csv"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/qsarkit/chem"
	"github.com/YuminosukeSato/qsarkit/core/model"
	"github.com/YuminosukeSato/qsarkit/explore"
	"github.com/YuminosukeSato/qsarkit/optimize"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/pkg/log"
)

const formatVersion = 1

// Meta is the JSON record saved next to a fitted model.
type Meta struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Algorithm     string                 `json:"algorithm"`
	Property      string                 `json:"target_property"`
	Task          string                 `json:"task"`
	Dataset       string                 `json:"dataset,omitempty"`
	BaseParams    map[string]interface{} `json:"base_params,omitempty"`
	Params        map[string]interface{} `json:"params"`
	Radius        int                    `json:"fingerprint_radius"`
	NBits         int                    `json:"fingerprint_nbits"`
	KeepFrags     bool                   `json:"keep_all_fragments"`
	KeepCharges   bool                   `json:"keep_charges"`
	Evaluation    *Evaluation            `json:"evaluation,omitempty"`
	FittedAt      time.Time              `json:"fitted_at"`
	FormatVersion int                    `json:"format_version"`
}

// ModelPaths returns the meta and estimator paths of model name under dir.
func ModelPaths(dir, name string) (meta, estimator string) {
	base := filepath.Join(dir, name)
	return filepath.Join(base, name+"_meta.json"), filepath.Join(base, name+".gob")
}

func (m *Model) save() error {
	metaPath, gobPath := ModelPaths(m.Dir, m.Name)
	if err := os.MkdirAll(filepath.Dir(metaPath), 0o755); err != nil {
		return errors.NewArtifactError("model", m.Name, filepath.Dir(metaPath), err)
	}
	meta := Meta{
		ID:            m.ID,
		Name:          m.Name,
		Algorithm:     m.Algorithm,
		Property:      m.Property,
		Task:          "regression",
		BaseParams:    m.BaseParams,
		Params:        m.Params,
		Radius:        m.Fingerprint.Radius,
		NBits:         m.Fingerprint.NBits,
		KeepFrags:     m.Standardizer.KeepAllFragments,
		KeepCharges:   m.Standardizer.KeepCharges,
		Evaluation:    m.Eval,
		FittedAt:      time.Now().UTC(),
		FormatVersion: formatVersion,
	}
	if m.data != nil {
		meta.Dataset = m.data.Name
	}
	if err := writeJSON(metaPath, meta); err != nil {
		return errors.NewArtifactError("model", m.Name, metaPath, err)
	}
	if err := model.SaveModel(m.estimator, gobPath); err != nil {
		return errors.NewArtifactError("model", m.Name, gobPath, err)
	}
	m.logger.Info("Saved model", log.OperationKey, log.OperationSave, log.PathKey, metaPath)
	return nil
}

// LoadModel restores a fitted model saved by FitAttached. The result is in
// state Fitted and predicts exactly like the model that was saved.
func LoadModel(dir, name string) (*Model, error) {
	metaPath, gobPath := ModelPaths(dir, name)
	var meta Meta
	if err := readJSON(metaPath, &meta); err != nil {
		return nil, errors.NewArtifactError("model", name, metaPath, err)
	}
	if meta.FormatVersion != formatVersion {
		return nil, errors.NewArtifactError("model", name, metaPath,
			errors.Newf("unsupported format version %d", meta.FormatVersion))
	}
	fp := chem.NewMorganFingerprint(meta.Radius, meta.NBits)
	if err := fp.Validate(); err != nil {
		return nil, errors.NewArtifactError("model", name, metaPath, err)
	}
	alg, ok := algorithms[meta.Algorithm]
	if !ok {
		return nil, errors.NewArtifactError("model", name, metaPath, unknownAlgorithm(meta.Algorithm))
	}
	est := alg.blank()
	if _, err := os.Stat(gobPath); errors.Is(err, fs.ErrNotExist) {
		return nil, errors.NewArtifactError("model", name, gobPath, errors.Wrap(errors.ErrArtifactNotFound, err.Error()))
	}
	if err := model.LoadModel(est, gobPath); err != nil {
		return nil, errors.NewArtifactError("model", name, gobPath, err)
	}
	if !fitted(est) {
		return nil, errors.NewArtifactError("model", name, gobPath, errors.New("estimator is not fitted"))
	}

	id := meta.ID
	if id == "" {
		id = uuid.NewString()
	}
	m := &Model{
		ID:           id,
		Name:         meta.Name,
		Algorithm:    meta.Algorithm,
		Dir:          dir,
		Property:     meta.Property,
		Fingerprint:  fp,
		Standardizer: chem.Standardizer{KeepAllFragments: meta.KeepFrags, KeepCharges: meta.KeepCharges},
		BaseParams:   meta.BaseParams,
		Params:       optimize.Params(meta.Params),
		Eval:         meta.Evaluation,
		estimator:    est,
		state:        Fitted,
	}
	m.logger = log.GetLogger().With(log.ModelNameKey, m.Algorithm, log.EstimatorIDKey, m.ID)
	m.logger.Info("Loaded model", log.OperationKey, log.OperationLoad, log.PathKey, metaPath)
	return m, nil
}

// writePredictions writes ID, SMILES, observed, predicted (and fold) columns.
func (m *Model) writePredictions(path string, idx []int, pred []float64, fold []int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewArtifactError("predictions", m.Name, path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.NewArtifactError("predictions", m.Name, path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	header := []string{"ID", "SMILES", m.Property, m.Property + "_Prediction"}
	if fold != nil {
		header = append(header, "Fold")
	}
	if err := w.Write(header); err != nil {
		return errors.NewArtifactError("predictions", m.Name, path, err)
	}
	for k, i := range idx {
		rec := m.data.Records[i]
		row := []string{
			rec.ID,
			m.data.Standardized[i],
			strconv.FormatFloat(rec.Value, 'g', -1, 64),
			strconv.FormatFloat(pred[k], 'g', -1, 64),
		}
		if fold != nil {
			row = append(row, strconv.Itoa(fold[k]))
		}
		if err := w.Write(row); err != nil {
			return errors.NewArtifactError("predictions", m.Name, path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.NewArtifactError("predictions", m.Name, path, err)
	}
	return f.Close()
}

// fitted guards against a gob stream without a StateManager.
func fitted(est interface{ IsFitted() bool }) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return est.IsFitted()
}

func parityPlot(path string, observed, predicted []float64, title string) error {
	return explore.PlotParity(path, observed, predicted, title)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode json")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(errors.ErrArtifactNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return errors.Wrap(json.Unmarshal(data, v), "decode json")
}
