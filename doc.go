// Package h5mbl merges per-seed HDF5 physics-simulation output files into
// one target file per parameter set.
//
// A simulation sweep produces one HDF5 file per random seed, scattered
// across one directory per parameter set (a lambda/delta pair, a disorder
// strength, whatever the model varies). h5mbl walks a set of source
// roots, groups files by the parameter set their parent directory
// encodes, and merges every seed's contribution into a single target
// file per set, indexed by seed along the way it appends data.
//
// # Quick start
//
//	ctx := context.Background()
//	m, err := h5mbl.New(
//	    h5mbl.WithSources("/data/sweep/L_16", "/data/sweep/L_20"),
//	    h5mbl.WithTarget("/data/merged", "merged.h5"),
//	    h5mbl.WithVariant(merge.VariantSdual),
//	    h5mbl.WithRequireFinished(),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//	snapshot, err := m.Run(ctx)
//
// # Resuming a large sweep
//
// WithMaxSets and WithMaxFilesPerSet bound how much of a sweep a single
// run covers: WithMaxSets stops before entering a new parameter set, and
// WithMaxFilesPerSet skips a set's files past the cap. Rerunning with the
// same target picks up where the last run left off, since completed files
// are recorded in the target's file database and skipped on the next pass.
//
// # Link-only mode
//
// WithLinkOnly skips every data transfer and records, for each
// discovered parameter-set directory, a skeleton marker pointing back at
// its source directory. Useful for a dry run over a sweep before
// committing to a full merge.
package h5mbl
