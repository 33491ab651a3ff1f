// Package qsarkit builds QSAR regression models from bioactivity tables.
//
// The workflow has five stages, each usable on its own:
//
//   - filter: keep one target accession and the wanted quality tiers
//     (dataset.LoadTable, dataset.Filter)
//   - prepare: standardize SMILES, split train/test, compute Morgan
//     fingerprints and save the dataset (dataset.Dataset.Prepare)
//   - explore: value histogram, top compounds and Murcko scaffold groups
//     (explore)
//   - train: sequential hyperparameter search with cross-validated R²,
//     evaluation on the held-out set and a final fit on all data
//     (optimize, qsar.Model)
//   - predict: score new SMILES with a fitted or reloaded model
//     (qsar.Model.PredictSMILES, server)
//
// qsar.Pipeline chains the stages from an HCL configuration (config), and
// cmd/qsar exposes them on the command line.
//
// # Quick Start
//
//	cfg, err := config.Load("workshop.hcl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p, err := qsar.NewPipeline(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := p.Run(ctx)
//
// Estimators live under sklearn/ and follow scikit-learn naming:
// DecisionTreeRegressor, RandomForestRegressor, GradientBoostingRegressor
// and Ridge. All of them implement core/model.Regressor and are saved with
// encoding/gob.
package qsarkit
