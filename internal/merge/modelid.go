package merge

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/DavidAce/h5mbl/internal/h5"
	"github.com/DavidAce/h5mbl/internal/model"
)

// filenameLabels maps a hamiltonian field name to the abbreviated label
// model.PathRewriter embeds in a basepath, reused as the fallback regex
// label when a field is absent from both the source table and its
// attributes (spec.md §6's filename-fallback rule).
var filenameLabels = map[string]string{
	"lambda":     "l",
	"delta":      "d",
	"J2_xcls":    "x",
	"f_mixer":    "f",
	"u_layer":    "u",
	"J2_span":    "r",
	"model_size": "L",
}

func filenameLabel(field string) string {
	if l, ok := filenameLabels[field]; ok {
		return l
	}
	return field
}

// readModelId reconstructs the physical-parameter identity of srcPath's
// file from its `<algo>/model/hamiltonian` table (spec.md §6), falling
// back to that table's attributes and then to the filename when a field is
// missing from both. The result's BasePath is what MergeDriver routes
// every object in this file to.
func readModelId(file h5.File, algo string, variant Variant, srcPath string) (model.Id, error) {
	hamPath := algo + "/model/hamiltonian"
	info, exists, err := file.Table(hamPath)
	if err != nil {
		return model.Id{}, fmt.Errorf("merge: read model table %s: %w", hamPath, err)
	}

	var rec []byte
	haveRecord := false
	if exists {
		if r, ok, err := file.ReadLastTableRecord(hamPath); err != nil {
			return model.Id{}, fmt.Errorf("merge: read model record %s: %w", hamPath, err)
		} else if ok {
			rec, haveRecord = r, true
		}
	}

	base := filepath.Base(srcPath)
	field := func(name string) (float64, bool) {
		if haveRecord {
			if offset, size, dtype, ok := h5.FieldOffset(info.Fields, name); ok {
				if v, err := decodeFloat64(rec, offset, size, dtype); err == nil {
					return v, true
				}
			}
		}
		if v, ok, err := file.ReadAttrFloat64(hamPath, name); err == nil && ok {
			return v, true
		}
		if v, ok := model.ParseFilenameParam(base, filenameLabel(name)); ok {
			return v, true
		}
		return 0, false
	}
	must := func(name string) float64 {
		v, _ := field(name)
		return v
	}

	modelType, _, _ := file.ReadAttrString(hamPath, "model_type")
	distribution, _, _ := file.ReadAttrString(hamPath, "distribution")
	modelSize := uint64(must("model_size"))

	var params model.Params
	switch variant {
	case VariantSdual:
		params = model.Sdual{
			JMean:  must("J_mean"),
			JStdv:  must("J_stdv"),
			HMean:  must("h_mean"),
			HStdv:  must("h_stdv"),
			Lambda: must("lambda"),
			Delta:  must("delta"),
		}
	case VariantLbit:
		j2span, spanFound := field("J2_span")
		span := uint64(j2span)
		if !spanFound && strings.Contains(base, "r_L") {
			span = model.InfiniteRange
		}
		params = model.Lbit{
			J1Mean: must("J1_mean"),
			J2Mean: must("J2_mean"),
			J3Mean: must("J3_mean"),
			J1Wdth: must("J1_wdth"),
			J2Wdth: must("J2_wdth"),
			J3Wdth: must("J3_wdth"),
			J2Xcls: must("J2_xcls"),
			J2Span: span,
			FMixer: must("f_mixer"),
			ULayer: uint64(must("u_layer")),
		}
	default:
		return model.Id{}, fmt.Errorf("merge: unknown model variant %q", variant)
	}

	id := model.NewId(params, modelSize, distribution, algo)
	if modelType != "" {
		id.ModelType = modelType
	}
	return id, nil
}
