package planner

import (
	"fmt"

	dserr "github.com/arkilian/pqdataset/internal/errors"
	"github.com/arkilian/pqdataset/pkg/types"
)

type resolution struct {
	columns []types.ColumnDef
	index   *types.ColumnDef
	shape   Shape
}

// resolve applies the column selection and index spec to a schema.
// recordedIndex is the index column stored with the dataset, or "".
func resolve(schema types.Schema, recordedIndex string, sel ColumnSelection, spec IndexSpec) (*resolution, error) {
	res := &resolution{shape: ShapeFrame}

	var names []string
	switch sel.kind {
	case selectAll:
		names = schema.Names()
	case selectSingle:
		names = sel.names
		res.shape = ShapeSeries
	case selectList:
		names = sel.names
		seen := make(map[string]bool, len(names))
		for _, n := range names {
			if seen[n] {
				return nil, dserr.NewValidationError(dserr.CodeInvalidRequest,
					fmt.Sprintf("column %q selected more than once", n))
			}
			seen[n] = true
		}
	}

	res.columns = make([]types.ColumnDef, 0, len(names))
	for _, n := range names {
		def, _, ok := schema.Lookup(n)
		if !ok {
			return nil, dserr.NewColumnNotFound(n, schema.Names())
		}
		res.columns = append(res.columns, def)
	}

	var indexName string
	switch spec.kind {
	case indexOn:
		if spec.name == "" {
			return nil, dserr.NewValidationError(dserr.CodeInvalidRequest, "index column name is empty")
		}
		indexName = spec.name
	case indexAuto:
		indexName = recordedIndex
	}
	if indexName == "" {
		return res, nil
	}

	def, _, ok := schema.Lookup(indexName)
	if !ok {
		return nil, dserr.NewColumnNotFound(indexName, schema.Names())
	}
	if res.shape == ShapeSeries && res.columns[0].Name == indexName {
		// A series needs a value column besides its index.
		return nil, dserr.NewColumnNotFound(indexName, nonIndexNames(schema, indexName)).
			WithDetails(map[string]interface{}{"column": indexName, "reason": "series column is the index"})
	}
	res.index = &def

	kept := res.columns[:0:0]
	for _, c := range res.columns {
		if c.Name != indexName {
			kept = append(kept, c)
		}
	}
	res.columns = kept
	return res, nil
}

func nonIndexNames(schema types.Schema, index string) []string {
	var out []string
	for _, n := range schema.Names() {
		if n != index {
			out = append(out, n)
		}
	}
	return out
}
