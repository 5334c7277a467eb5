package refresh

import (
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/query"
)

// topologicalSort orders closure's query ids so every query comes after
// everything it depends on, directly grounded on schema/tsort.go's
// three-color DFS — generalized from "unvisited/visiting/visited over a
// fixed items slice" to "over a query-id set", and reporting the cycle
// path in the error instead of silently returning an empty slice (spec
// §4.9 step 2: "on back-edge, fail with an error containing the cycle
// path").
func topologicalSort(closure map[string]bool, queries map[string]*query.Query) ([]string, error) {
	var sorted []string
	visited := map[string]bool{}
	visiting := map[string]bool{}
	var path []string

	var visit func(id string) error
	visit = func(id string) error {
		if visiting[id] {
			return pqerr.New(pqerr.KindCycleError, "refresh: cycle detected: "+cyclePath(path, id))
		}
		if visited[id] {
			return nil
		}
		visiting[id] = true
		path = append(path, id)

		for _, dep := range queries[id].DependsOnQueries() {
			if !closure[dep] {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		visiting[id] = false
		visited[id] = true
		sorted = append(sorted, id)
		return nil
	}

	for id := range closure {
		if !visited[id] {
			if err := visit(id); err != nil {
				return nil, err
			}
		}
	}
	return sorted, nil
}

func cyclePath(path []string, repeated string) string {
	s := ""
	for _, id := range path {
		s += id + " -> "
	}
	return s + repeated
}
