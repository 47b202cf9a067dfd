package leader

import "github.com/flowmesh/dataflow/internal/ferr"

func errTableNotFound(name string) error {
	return ferr.Newf(ferr.KindTableNotFound, "no such table %q", name)
}

func errViewNotFound(name string) error {
	return ferr.Newf(ferr.KindViewNotFound, "no such view %q", name)
}
