package schemaindex

import "fmt"

// buildSubgraphs registers one Subgraph per `join__Graph` enum value,
// reading name/url from its `@join__graph(name:, url:)` directive (§6).
func (b *builder) buildSubgraphs() error {
	b.idx.subgraphByName = make(map[string]SubgraphID)

	graphDef, ok := b.defByName["join__Graph"]
	if !ok {
		// Schema without a join__Graph enum is a single, ungraphed schema
		// (e.g. a unit test fixture); nothing to register.
		return nil
	}
	for _, ev := range graphDef.EnumValues {
		dir := ev.Directives.ForName("join__graph")
		name, _ := stringArg(dir, "name")
		if name == "" {
			name = ev.Name
		}
		url, _ := stringArg(dir, "url")

		sg := Subgraph{
			Name: name,
			URL:  url,
			Retry: RetryPolicy{MaxAttempts: 2, BaseDelayMS: 25, MaxDelayMS: 250},
		}
		id := b.idx.addSubgraph(sg)
		b.idx.subgraphByName[name] = id
		// enum-value identifier (e.g. ACCOUNTS) is also registered so
		// @join__field(graph: ACCOUNTS) directive arguments, which are
		// emitted as enum literals rather than the human name, resolve.
		if ev.Name != name {
			b.idx.subgraphByName[ev.Name] = id
		}
	}
	return nil
}

func (b *builder) subgraphByDirectiveValue(v string) (SubgraphID, error) {
	id, ok := b.idx.subgraphByName[v]
	if !ok {
		return 0, fmt.Errorf("schemaindex: unknown subgraph %q", v)
	}
	return id, nil
}
