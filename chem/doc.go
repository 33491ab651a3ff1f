// Package chem is a small molecular graph toolkit for QSAR feature work.
//
// It parses SMILES into a hydrogen-suppressed graph, perceives rings and
// aromaticity, writes canonical SMILES, standardizes structures, extracts
// Bemis-Murcko scaffolds and computes Morgan (ECFP-style) fingerprints.
//
// Stereochemistry is parsed and discarded: canonical SMILES, scaffolds and
// fingerprints are stereo-agnostic.
//
//	m, err := chem.ParseSMILES("CNC(=O)c1nccc2cccn12")
//	if err != nil {
//	    return err
//	}
//	fp := chem.NewMorganFingerprint(3, 2048).Compute(m)
package chem
