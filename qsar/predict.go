package qsar

import (
	"context"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/qsarkit/chem"
	"github.com/YuminosukeSato/qsarkit/core/model"
	"github.com/YuminosukeSato/qsarkit/dataset"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/pkg/log"
)

func predictWith(ctx context.Context, est model.Predictor, st chem.Standardizer, fp chem.MorganFingerprint,
	smiles []string, logger log.Logger) ([]Prediction, error) {
	out := make([]Prediction, len(smiles))
	rows := make([]float64, 0, len(smiles)*fp.NBits)
	var at []int
	for i, s := range smiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = Prediction{SMILES: s, Value: math.NaN()}
		std, mol, err := st.StandardizeSMILES(s)
		if err != nil {
			out[i].Err = errors.NewDataError("predict", dataset.ColumnSMILES, i, err)
			errors.Warn(errors.NewInvalidStructureWarning(strconv.Itoa(i), s, err.Error()))
			logger.Warn("Skipping unparsable structure", log.SMILESKey, s, "error", err)
			continue
		}
		out[i].Standardized = std
		rows = append(rows, fp.ComputeFloat(mol)...)
		at = append(at, i)
	}

	if len(at) > 0 {
		pred, err := est.Predict(mat.NewDense(len(at), fp.NBits, rows))
		if err != nil {
			return nil, errors.NewModelError("predict", "predict", err)
		}
		for k, i := range at {
			out[i].Value = pred.At(k, 0)
		}
	}
	logger.Info("Predicted structures",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.PredsKey, len(at),
		log.FailedKey, len(smiles)-len(at),
	)
	return out, nil
}
