package model

// Id is the physical-parameter identity of one merged target file. All
// source files whose Params compare equal share the same BasePath and
// merge into the same target object tree.
type Id struct {
	Params       Params
	ModelSize    uint64
	ModelType    string
	Distribution string
	Algorithm    string
	Key          string
	Path         string
	BasePath     string
}

// NewId constructs an Id and populates BasePath via PathRewriter, so
// callers never forget to rewrite it after changing Params.
func NewId(params Params, modelSize uint64, distribution, algorithm string) Id {
	id := Id{
		Params:       params,
		ModelSize:    modelSize,
		ModelType:    params.Kind(),
		Distribution: distribution,
		Algorithm:    algorithm,
	}
	id.BasePath = PathRewriter(id, DefaultPrecision)
	id.Key = id.BasePath
	return id
}
